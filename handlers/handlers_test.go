package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediahub/media"
	"mediahub/retrieval"
	"mediahub/uploads"
)

type fakeUploader struct {
	uploadErr error
	deleteErr error
	lastReq   uploads.Request
}

func (f *fakeUploader) Upload(ctx context.Context, req uploads.Request) (*media.Asset, error) {
	f.lastReq = req
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &media.Asset{
		Provider:     media.ProviderManagedCDN,
		ProviderID:   "media/x",
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		Format:       "jpeg",
		Variants: []media.Variant{
			{Size: media.SizeOriginal, URL: "http://cdn/orig.jpg", Format: "jpeg"},
			{Size: media.SizeThumbnail, URL: "http://cdn/thumb.jpg", Format: "jpeg"},
		},
	}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, id uint, user string) error {
	return f.deleteErr
}

func (f *fakeUploader) UpdateMetadata(ctx context.Context, id uint, user string, title, description *string, tags []string) (*media.Asset, error) {
	asset := &media.Asset{MimeType: "image/jpeg"}
	if title != nil {
		asset.Title = *title
	}
	return asset, nil
}

func (f *fakeUploader) Describe(ctx context.Context, id uint) (map[string]interface{}, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return map[string]interface{}{"public_id": "media/x"}, nil
}

type fakeRetriever struct {
	asset *media.Asset
}

func (f *fakeRetriever) GetMedia(ctx context.Context, id uint) (*media.Asset, error) {
	if f.asset == nil {
		return nil, &media.NotFoundError{What: "media"}
	}
	return f.asset, nil
}

func (f *fakeRetriever) GetOptimizedURL(ctx context.Context, id uint, size, hint string) (*retrieval.Optimized, error) {
	if f.asset == nil {
		return nil, &media.NotFoundError{What: "media"}
	}
	return &retrieval.Optimized{URL: "http://cdn/medium.jpg", Size: media.SizeMedium}, nil
}

func (f *fakeRetriever) ListMedia(ctx context.Context, q media.ListQuery) ([]media.Asset, error) {
	if f.asset == nil {
		return []media.Asset{}, nil
	}
	return []media.Asset{*f.asset}, nil
}

func (f *fakeRetriever) GetStats(ctx context.Context) (*media.Stats, error) {
	return &media.Stats{Total: 1, Images: 1, ByProvider: map[string]int64{"managed-cdn": 1}}, nil
}

func setup(uploader *fakeUploader, retriever *fakeRetriever) *echo.Echo {
	e := echo.New()
	New(uploader, retriever, logrus.New()).Register(e)
	return e
}

func multipartBody(t *testing.T, filename, contentType string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	part.Write([]byte("file contents"))

	for k, v := range fields {
		writer.WriteField(k, v)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	uploader := &fakeUploader{}
	e := setup(uploader, &fakeRetriever{})

	body, contentType := multipartBody(t, "dish.jpg", "image/jpeg", map[string]string{
		"user_id": "u1",
		"tags":    "menu, dinner",
		"title":   "The dish",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "image/jpeg", uploader.lastReq.MimeType)
	assert.Equal(t, []string{"menu", "dinner"}, uploader.lastReq.Tags)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "asset")
	assert.Contains(t, resp, "variants")
}

func TestUploadValidationFailure(t *testing.T) {
	uploader := &fakeUploader{uploadErr: &media.ValidationError{Reason: `unsupported file type "application/pdf"`}}
	e := setup(uploader, &fakeRetriever{})

	body, contentType := multipartBody(t, "menu.pdf", "application/pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "application/pdf")
	assert.NotEmpty(t, resp.Error.CorrelationID)
}

func TestUploadProviderFailureIsGeneric(t *testing.T) {
	uploader := &fakeUploader{uploadErr: &media.ProviderError{
		Op: "upload", Err: errors.New("401 from backend: key=sek_live_12345")}}
	e := setup(uploader, &fakeRetriever{})

	body, contentType := multipartBody(t, "dish.jpg", "image/jpeg", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	// raw provider detail never leaks to the caller
	assert.NotContains(t, rec.Body.String(), "sek_live_12345")
	var resp errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UPLOAD_FAILED", resp.Error.Code)
	assert.Equal(t, "upload failed", resp.Error.Message)
}

func TestUploadPersistenceFailureIsServerError(t *testing.T) {
	uploader := &fakeUploader{uploadErr: &media.PersistenceError{Err: errors.New("db locked")}}
	e := setup(uploader, &fakeRetriever{})

	body, contentType := multipartBody(t, "dish.jpg", "image/jpeg", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PERSISTENCE_ERROR", resp.Error.Code)
}

func TestGetNotFound(t *testing.T) {
	e := setup(&fakeUploader{}, &fakeRetriever{})

	req := httptest.NewRequest(http.MethodGet, "/api/media/42", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptimizedEndpoint(t *testing.T) {
	retriever := &fakeRetriever{asset: &media.Asset{MimeType: "image/jpeg"}}
	e := setup(&fakeUploader{}, retriever)

	req := httptest.NewRequest(http.MethodGet, "/api/media/1/optimized?size=medium&network=fast", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "http://cdn/medium.jpg", resp["url"])
	assert.Equal(t, media.SizeMedium, resp["size"])
}

func TestProviderEndpoint(t *testing.T) {
	e := setup(&fakeUploader{}, &fakeRetriever{})

	req := httptest.NewRequest(http.MethodGet, "/api/media/1/provider", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "media/x", resp["public_id"])
}

func TestDeleteForbidden(t *testing.T) {
	uploader := &fakeUploader{deleteErr: &media.AuthorizationError{UserID: "u2"}}
	e := setup(uploader, &fakeRetriever{})

	req := httptest.NewRequest(http.MethodDelete, "/api/media/1?user_id=u2", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteSuccess(t *testing.T) {
	e := setup(&fakeUploader{}, &fakeRetriever{})

	req := httptest.NewRequest(http.MethodDelete, "/api/media/1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	e := setup(&fakeUploader{}, &fakeRetriever{})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp["total"])
	assert.Contains(t, resp, "byProvider")
}

func TestInvalidID(t *testing.T) {
	e := setup(&fakeUploader{}, &fakeRetriever{})

	req := httptest.NewRequest(http.MethodGet, "/api/media/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "VALIDATION_ERROR"))
}
