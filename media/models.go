// Package media holds the persisted domain model for uploaded assets and
// their derived variants, plus the variant configuration tiers and the
// failure taxonomy shared by the pipeline.
package media

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Provider identifies which storage backend owns an asset's artifacts.
type Provider string

const (
	ProviderManagedCDN  Provider = "managed-cdn"
	ProviderObjectStore Provider = "object-store"
)

// ParseProvider maps a caller-supplied provider name to a known Provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderManagedCDN, ProviderObjectStore:
		return Provider(s), nil
	case "":
		return "", fmt.Errorf("empty provider")
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// Tags is a set of descriptive strings stored as a JSON array column.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		t = Tags{}
	}
	return json.Marshal(t)
}

func (t *Tags) Scan(value interface{}) error {
	if value == nil {
		*t = Tags{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("cannot scan %T into Tags", value)
	}
}

// Asset is the persisted record for one uploaded source file. Provider and
// ProviderID never change after creation; the backing storage location does
// not migrate in place.
type Asset struct {
	gorm.Model
	Provider     Provider `gorm:"index"`
	ProviderID   string   `gorm:"index"`
	OriginalName string
	MimeType     string `gorm:"index"`
	Format       string
	FileSize     int64
	Width        uint
	Height       uint

	Title       string
	Description string
	Tags        Tags   `gorm:"type:text"`
	UserID      string `gorm:"index"`

	Variants []Variant `gorm:"constraint:OnDelete:CASCADE"`
}

// Variant is one derived rendition of an asset, unique by size label
// within the asset.
type Variant struct {
	ID         uint   `gorm:"primarykey"`
	AssetID    uint   `gorm:"uniqueIndex:idx_asset_size"`
	Size       string `gorm:"uniqueIndex:idx_asset_size"`
	URL        string
	FileSize   int64
	Format     string
	Width      uint
	Height     uint
	Bitrate    uint // kbps, video only
	Resolution string
	CreatedAt  time.Time
}

// IsImage reports whether the asset's mime type marks it as an image.
func (a *Asset) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

// IsVideo reports whether the asset's mime type marks it as a video.
func (a *Asset) IsVideo() bool {
	return strings.HasPrefix(a.MimeType, "video/")
}

// VariantBySize returns the variant with the given size label, if present.
func (a *Asset) VariantBySize(size string) (Variant, bool) {
	for _, v := range a.Variants {
		if v.Size == size {
			return v, true
		}
	}
	return Variant{}, false
}

// OrphanArtifact records a provider-side upload whose metadata write failed.
// The artifacts are live but unreferenced; the sweeper retries the delete.
type OrphanArtifact struct {
	gorm.Model
	Provider   Provider
	ProviderID string
	Kind       string // "image" or "video"
}

// Stats is the aggregate view over all persisted assets.
type Stats struct {
	Total          int64
	Images         int64
	Videos         int64
	TotalSizeBytes int64
	ByProvider     map[string]int64
}

// ListQuery narrows and orders a listing of assets.
type ListQuery struct {
	UserID string
	Type   string // "image" or "video", matched as a mime-type prefix
	Tags   []string

	SortField string // createdAt | fileSize | title
	SortOrder string // asc | desc

	Limit  int
	Offset int
}
