// Package providers contains the storage backends that hold uploaded media.
// Every backend implements Adapter; the orchestrator selects one per upload
// and never assumes anything about its I/O style.
package providers

import (
	"context"

	"mediahub/media"
)

// ResourceKind distinguishes provider-side image and video resources.
type ResourceKind string

const (
	KindImage ResourceKind = "image"
	KindVideo ResourceKind = "video"
)

// File is the validated source file handed to an adapter.
type File struct {
	Bytes        []byte
	OriginalName string
	MimeType     string
}

// VariantInfo is one uploaded artifact as reported by the backend.
type VariantInfo struct {
	Size       string
	URL        string
	FileSize   int64
	Format     string
	Width      uint
	Height     uint
	Bitrate    uint // kbps, video only
	Resolution string
}

// MediaMetadata aggregates every artifact produced for one source upload.
type MediaMetadata struct {
	ProviderID string
	Provider   media.Provider
	Format     string
	FileSize   int64
	Width      uint
	Height     uint
	Variants   []VariantInfo
}

// Adapter is the contract a storage backend must satisfy. Delete is
// idempotent: removing an unknown or already-deleted id is not an error.
type Adapter interface {
	UploadImage(ctx context.Context, file File, cfgs map[string]media.ImageVariantConfig, folder string) (*MediaMetadata, error)
	UploadVideo(ctx context.Context, file File, cfgs map[string]media.VideoVariantConfig, folder string) (*MediaMetadata, error)
	Delete(ctx context.Context, providerID string, kind ResourceKind) error
	Describe(ctx context.Context, providerID string, kind ResourceKind) (map[string]interface{}, error)
}

// original returns the VariantInfo labeled "original" from infos.
func original(infos []VariantInfo) (VariantInfo, bool) {
	for _, v := range infos {
		if v.Size == media.SizeOriginal {
			return v, true
		}
	}
	return VariantInfo{}, false
}
