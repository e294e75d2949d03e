// Package handlers exposes the pipeline over HTTP. Heavy gateway concerns
// (rate limiting, authentication) belong to the reverse proxy in front;
// this layer only parses requests and maps the error taxonomy onto status
// codes.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"mediahub/media"
	"mediahub/retrieval"
	"mediahub/uploads"
)

// Uploader is the write side of the pipeline.
type Uploader interface {
	Upload(ctx context.Context, req uploads.Request) (*media.Asset, error)
	Delete(ctx context.Context, id uint, requestingUserID string) error
	UpdateMetadata(ctx context.Context, id uint, requestingUserID string, title, description *string, tags []string) (*media.Asset, error)
	Describe(ctx context.Context, id uint) (map[string]interface{}, error)
}

// Retriever is the read side.
type Retriever interface {
	GetMedia(ctx context.Context, id uint) (*media.Asset, error)
	GetOptimizedURL(ctx context.Context, id uint, size, networkHint string) (*retrieval.Optimized, error)
	ListMedia(ctx context.Context, q media.ListQuery) ([]media.Asset, error)
	GetStats(ctx context.Context) (*media.Stats, error)
}

type Handler struct {
	uploader  Uploader
	retriever Retriever
	log       *logrus.Entry
}

func New(uploader Uploader, retriever Retriever, logger *logrus.Logger) *Handler {
	return &Handler{
		uploader:  uploader,
		retriever: retriever,
		log:       logger.WithField("component", "handlers"),
	}
}

// Register mounts the API routes.
func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/media", h.Upload)
	api.GET("/media", h.List)
	api.GET("/media/:id", h.Get)
	api.PATCH("/media/:id", h.Update)
	api.DELETE("/media/:id", h.Delete)
	api.GET("/media/:id/optimized", h.Optimized)
	api.GET("/media/:id/provider", h.Provider)
	api.GET("/stats", h.Stats)
	e.GET("/healthz", h.Healthz)
}

func (h *Handler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, &media.ValidationError{Reason: "missing file field"})
	}
	src, err := fileHeader.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return h.fail(c, err)
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	req := uploads.Request{
		Bytes:        data,
		MimeType:     mimeType,
		OriginalName: fileHeader.Filename,
		Size:         fileHeader.Size,
		UserID:       c.FormValue("user_id"),
		Folder:       c.FormValue("folder"),
		Provider:     c.FormValue("provider"),
		Title:        c.FormValue("title"),
		Description:  c.FormValue("description"),
	}
	if tags := c.FormValue("tags"); tags != "" {
		req.Tags = splitTags(tags)
	}

	asset, err := h.uploader.Upload(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"asset":    asset,
		"variants": asset.Variants,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}
	asset, err := h.retriever.GetMedia(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	if size := c.QueryParam("size"); size != "" {
		v, ok := asset.VariantBySize(size)
		if !ok {
			v, ok = asset.VariantBySize(media.SizeOriginal)
		}
		if !ok {
			return h.fail(c, &media.NotFoundError{What: "variant " + size})
		}
		return c.JSON(http.StatusOK, v)
	}
	return c.JSON(http.StatusOK, asset)
}

func (h *Handler) Optimized(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}
	opt, err := h.retriever.GetOptimizedURL(c.Request().Context(), id,
		c.QueryParam("size"), c.QueryParam("network"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": opt.URL, "size": opt.Size})
}

// Provider returns the storage backend's native view of the asset's
// artifacts.
func (h *Handler) Provider(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}
	info, err := h.uploader.Describe(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) List(c echo.Context) error {
	q := media.ListQuery{
		UserID:    c.QueryParam("user_id"),
		Type:      c.QueryParam("type"),
		SortField: c.QueryParam("sort"),
		SortOrder: c.QueryParam("order"),
	}
	if tags := c.QueryParam("tags"); tags != "" {
		q.Tags = splitTags(tags)
	}
	if limit := c.QueryParam("limit"); limit != "" {
		q.Limit, _ = strconv.Atoi(limit)
	}
	if offset := c.QueryParam("offset"); offset != "" {
		q.Offset, _ = strconv.Atoi(offset)
	}

	assets, err := h.retriever.ListMedia(c.Request().Context(), q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, assets)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}

	var body struct {
		UserID      string   `json:"user_id"`
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.Bind(&body); err != nil {
		return h.fail(c, &media.ValidationError{Reason: "malformed body"})
	}

	asset, err := h.uploader.UpdateMetadata(c.Request().Context(), id, body.UserID,
		body.Title, body.Description, body.Tags)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, asset)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.uploader.Delete(c.Request().Context(), id, c.QueryParam("user_id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.retriever.GetStats(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":          stats.Total,
		"images":         stats.Images,
		"videos":         stats.Videos,
		"totalSizeBytes": stats.TotalSizeBytes,
		"byProvider":     stats.ByProvider,
	})
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

// fail maps the error taxonomy onto HTTP responses. Validation reasons are
// specific; mid-pipeline failures are reported generically with a
// correlation id so raw provider errors never reach the caller.
func (h *Handler) fail(c echo.Context, err error) error {
	correlationID := uuid.Must(uuid.NewV7()).String()
	h.log.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"path":           c.Path(),
	}).Errorln(err)

	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "internal error"

	var ve *media.ValidationError
	var te *media.TransformError
	var pre *media.ProviderError
	switch {
	case errors.As(err, &ve):
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
		message = ve.Reason
	case errors.As(err, &te), errors.As(err, &pre):
		status, code = http.StatusBadRequest, "UPLOAD_FAILED"
		message = "upload failed"
	case media.IsAuthorization(err):
		status, code, message = http.StatusForbidden, "FORBIDDEN", "not the owner"
	case media.IsNotFound(err):
		status, code, message = http.StatusNotFound, "NOT_FOUND", "media not found"
	case media.IsPersistence(err):
		status, code = http.StatusInternalServerError, "PERSISTENCE_ERROR"
		message = "upload stored but metadata write failed; retry persistence"
	}

	return c.JSON(status, errorBody{Error: errorDetail{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
	}})
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, &media.ValidationError{Reason: "invalid media id"}
	}
	return uint(id), nil
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
