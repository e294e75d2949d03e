// Package uploads is the pipeline's control center: it validates incoming
// files, dispatches variant production through a provider adapter, and
// persists the aggregated asset.
package uploads

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"mediahub/config"
	"mediahub/media"
	"mediahub/metrics"
	"mediahub/providers"
)

// Store is the slice of the repository the orchestrator needs.
type Store interface {
	Create(ctx context.Context, asset *media.Asset) error
	FindByID(ctx context.Context, id uint) (*media.Asset, error)
	Delete(ctx context.Context, id uint) error
	UpdateMetadata(ctx context.Context, id uint, title, description *string, tags media.Tags) error
	CreateOrphan(ctx context.Context, orphan *media.OrphanArtifact) error
	ListOrphans(ctx context.Context) ([]media.OrphanArtifact, error)
	DeleteOrphan(ctx context.Context, id uint) error
}

// Service owns the upload and delete flows.
type Service struct {
	cfg      *config.Config
	store    Store
	adapters map[media.Provider]providers.Adapter
	log      *logrus.Entry

	imageVariants map[string]media.ImageVariantConfig
	videoVariants map[string]media.VideoVariantConfig
}

func NewService(cfg *config.Config, store Store, adapters map[media.Provider]providers.Adapter, logger *logrus.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		adapters: adapters,
		log:      logger.WithField("component", "uploads"),
		imageVariants: media.DefaultImageVariants(),
		videoVariants: media.DefaultVideoVariants(),
	}
}

// Request carries one upload: the file plus caller-supplied metadata.
type Request struct {
	Bytes        []byte
	MimeType     string
	OriginalName string
	Size         int64

	UserID      string
	Tags        []string
	Folder      string
	Provider    string
	Title       string
	Description string
}

// Upload validates the file, produces every configured variant through the
// chosen provider, and persists the assembled asset. No partial asset is
// ever persisted: the adapter cleans up its artifacts when any variant
// fails, and a metadata write failure is surfaced as a distinct persistence
// error with the artifacts recorded for the sweeper.
func (s *Service) Upload(ctx context.Context, req Request) (*media.Asset, error) {
	kind, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	providerName := req.Provider
	if providerName == "" {
		providerName = s.cfg.DefaultProvider
	}
	provider, err := media.ParseProvider(providerName)
	if err != nil {
		return nil, &media.ValidationError{Reason: err.Error()}
	}
	adapter, ok := s.adapters[provider]
	if !ok {
		return nil, &media.ProviderError{Op: "select", Err: fmt.Errorf("provider %s is not configured", provider)}
	}

	start := time.Now()
	file := providers.File{
		Bytes:        req.Bytes,
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
	}

	var meta *providers.MediaMetadata
	if kind == "image" {
		meta, err = adapter.UploadImage(ctx, file, s.imageVariants, req.Folder)
	} else {
		meta, err = adapter.UploadVideo(ctx, file, s.videoVariants, req.Folder)
	}
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(kind, string(provider), "error").Inc()
		return nil, err
	}

	asset := s.assemble(meta, req)
	if err := s.store.Create(ctx, asset); err != nil {
		s.recordOrphan(meta, kind)
		metrics.UploadsTotal.WithLabelValues(kind, string(provider), "persistence_error").Inc()
		return nil, &media.PersistenceError{Err: err}
	}

	metrics.UploadsTotal.WithLabelValues(kind, string(provider), "ok").Inc()
	metrics.UploadDuration.WithLabelValues(kind, string(provider)).Observe(time.Since(start).Seconds())
	metrics.UploadedBytes.Add(float64(req.Size))

	s.log.WithFields(logrus.Fields{
		"id":       asset.ID,
		"provider": provider,
		"variants": len(asset.Variants),
	}).Infof("uploaded %s", req.OriginalName)
	return asset, nil
}

// validate checks size and mime type before any provider work starts.
func (s *Service) validate(req Request) (string, error) {
	if len(req.Bytes) == 0 {
		return "", &media.ValidationError{Reason: "empty file"}
	}
	if req.Size > s.cfg.MaxUploadSize {
		return "", &media.ValidationError{
			Reason: fmt.Sprintf("file size %d exceeds maximum %d", req.Size, s.cfg.MaxUploadSize),
		}
	}
	switch {
	case slices.Contains(s.cfg.ImageMimeTypes, req.MimeType):
		return "image", nil
	case slices.Contains(s.cfg.VideoMimeTypes, req.MimeType):
		return "video", nil
	}
	return "", &media.ValidationError{
		Reason: fmt.Sprintf("unsupported file type %q", req.MimeType),
	}
}

func (s *Service) assemble(meta *providers.MediaMetadata, req Request) *media.Asset {
	tags := media.Tags{}
	if req.Tags != nil {
		tags = media.Tags(req.Tags)
	}

	asset := &media.Asset{
		Provider:     meta.Provider,
		ProviderID:   meta.ProviderID,
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		Format:       meta.Format,
		FileSize:     meta.FileSize,
		Width:        meta.Width,
		Height:       meta.Height,
		Title:        req.Title,
		Description:  req.Description,
		Tags:         tags,
		UserID:       req.UserID,
	}
	for _, v := range meta.Variants {
		asset.Variants = append(asset.Variants, media.Variant{
			Size:       v.Size,
			URL:        v.URL,
			FileSize:   v.FileSize,
			Format:     v.Format,
			Width:      v.Width,
			Height:     v.Height,
			Bitrate:    v.Bitrate,
			Resolution: v.Resolution,
			CreatedAt:  time.Now(),
		})
	}
	return asset
}

// recordOrphan remembers provider artifacts whose metadata write failed so
// the sweeper can reclaim them. Best effort: a failure here only logs.
func (s *Service) recordOrphan(meta *providers.MediaMetadata, kind string) {
	orphan := &media.OrphanArtifact{
		Provider:   meta.Provider,
		ProviderID: meta.ProviderID,
		Kind:       kind,
	}
	if err := s.store.CreateOrphan(context.Background(), orphan); err != nil {
		s.log.Errorf("record orphan %s/%s: %v", meta.Provider, meta.ProviderID, err)
	}
}

// Delete removes the asset's metadata and its provider-side artifacts. A
// missing id is treated as already deleted. When requestingUserID is set it
// must match the asset's owner.
func (s *Service) Delete(ctx context.Context, id uint, requestingUserID string) error {
	asset, err := s.store.FindByID(ctx, id)
	if media.IsNotFound(err) {
		s.log.Debugf("delete of missing media %d", id)
		return nil
	}
	if err != nil {
		return &media.PersistenceError{Err: err}
	}

	if requestingUserID != "" && asset.UserID != requestingUserID {
		return &media.AuthorizationError{UserID: requestingUserID}
	}

	kind := providers.KindImage
	if asset.IsVideo() {
		kind = providers.KindVideo
	}
	if adapter, ok := s.adapters[asset.Provider]; ok {
		// provider-side delete is idempotent and never blocks metadata cleanup
		if err := adapter.Delete(ctx, asset.ProviderID, kind); err != nil {
			s.log.Errorf("provider delete %s/%s: %v", asset.Provider, asset.ProviderID, err)
		}
	} else {
		s.log.Errorf("no adapter for provider %s, artifacts for %s remain", asset.Provider, asset.ProviderID)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return &media.PersistenceError{Err: err}
	}
	return nil
}

// UpdateMetadata changes the caller-editable fields with the same ownership
// rule as Delete.
func (s *Service) UpdateMetadata(ctx context.Context, id uint, requestingUserID string, title, description *string, tags []string) (*media.Asset, error) {
	asset, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requestingUserID != "" && asset.UserID != requestingUserID {
		return nil, &media.AuthorizationError{UserID: requestingUserID}
	}

	var t media.Tags
	if tags != nil {
		t = media.Tags(tags)
	}
	if err := s.store.UpdateMetadata(ctx, id, title, description, t); err != nil {
		return nil, &media.PersistenceError{Err: err}
	}
	return s.store.FindByID(ctx, id)
}

// Describe proxies the provider's native view of an asset's artifacts.
func (s *Service) Describe(ctx context.Context, id uint) (map[string]interface{}, error) {
	asset, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	adapter, ok := s.adapters[asset.Provider]
	if !ok {
		return nil, &media.ProviderError{Op: "describe", Err: fmt.Errorf("provider %s is not configured", asset.Provider)}
	}
	kind := providers.KindImage
	if asset.IsVideo() {
		kind = providers.KindVideo
	}
	return adapter.Describe(ctx, asset.ProviderID, kind)
}
