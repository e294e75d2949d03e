// Package retrieval answers read-side queries: asset lookup, size- and
// network-aware URL selection, listing, and aggregate statistics.
package retrieval

import (
	"context"

	"github.com/sirupsen/logrus"

	"mediahub/media"
)

// Reader is the slice of the repository the read side needs.
type Reader interface {
	FindByID(ctx context.Context, id uint) (*media.Asset, error)
	Find(ctx context.Context, q media.ListQuery) ([]media.Asset, error)
	GetStats(ctx context.Context) (*media.Stats, error)
}

type Service struct {
	reader Reader
	log    *logrus.Entry
}

func NewService(reader Reader, logger *logrus.Logger) *Service {
	return &Service{
		reader: reader,
		log:    logger.WithField("component", "retrieval"),
	}
}

// GetMedia returns the asset with its variants.
func (s *Service) GetMedia(ctx context.Context, id uint) (*media.Asset, error) {
	return s.reader.FindByID(ctx, id)
}

// Optimized is the resolved answer to an optimized-URL request.
type Optimized struct {
	URL  string
	Size string
}

// GetOptimizedURL picks the variant URL for the requested size. A network
// hint, when present, overrides the requested size. A missing size falls
// back to the "original" variant, which every persisted asset carries.
func (s *Service) GetOptimizedURL(ctx context.Context, id uint, size, networkHint string) (*Optimized, error) {
	if hinted := media.SizeForNetworkHint(networkHint); hinted != "" {
		size = hinted
	}
	if size == "" {
		size = media.SizeMedium
	}

	asset, err := s.reader.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if v, ok := asset.VariantBySize(size); ok {
		return &Optimized{URL: v.URL, Size: v.Size}, nil
	}
	if v, ok := asset.VariantBySize(media.SizeOriginal); ok {
		s.log.Debugf("media %d has no %q variant, falling back to original", id, size)
		return &Optimized{URL: v.URL, Size: v.Size}, nil
	}

	// unreachable for assets created by the pipeline, but never trust it
	return nil, &media.NotFoundError{What: "variants for media"}
}

// ListMedia lists assets by owner, type, and tags with sort and pagination.
func (s *Service) ListMedia(ctx context.Context, q media.ListQuery) ([]media.Asset, error) {
	return s.reader.Find(ctx, q)
}

// GetStats returns the aggregate view over all assets.
func (s *Service) GetStats(ctx context.Context) (*media.Stats, error) {
	return s.reader.GetStats(ctx)
}
