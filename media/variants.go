package media

// Size labels shared by both media kinds. "original" is the untouched
// passthrough and is always present on a persisted asset.
const (
	SizeOriginal  = "original"
	SizeThumbnail = "thumbnail"
	SizeSmall     = "small"
	SizeMedium    = "medium"
	SizeLarge     = "large"
	SizeLow       = "low"
	SizeHigh      = "high"
)

// ImageVariantConfig describes one image tier. The output exactly matches
// Width x Height (fill fit, cropping as needed) re-encoded as JPEG at
// Quality. A zero config means passthrough.
type ImageVariantConfig struct {
	Width   int
	Height  int
	Quality int
}

// VideoVariantConfig describes one video tier: a target bitrate in kbps and
// a named resolution. A zero config means passthrough.
type VideoVariantConfig struct {
	Bitrate    uint // kbps
	Resolution string
}

// DefaultImageVariants returns the fixed image tier set. The map is freshly
// allocated so callers may modify their copy.
func DefaultImageVariants() map[string]ImageVariantConfig {
	return map[string]ImageVariantConfig{
		SizeThumbnail: {Width: 150, Height: 150, Quality: 60},
		SizeSmall:     {Width: 320, Height: 320, Quality: 70},
		SizeMedium:    {Width: 640, Height: 640, Quality: 80},
		SizeLarge:     {Width: 1280, Height: 1280, Quality: 85},
		SizeOriginal:  {},
	}
}

// DefaultVideoVariants returns the fixed video tier set.
func DefaultVideoVariants() map[string]VideoVariantConfig {
	return map[string]VideoVariantConfig{
		SizeLow:      {Bitrate: 500, Resolution: "480p"},
		SizeMedium:   {Bitrate: 1000, Resolution: "720p"},
		SizeHigh:     {Bitrate: 2500, Resolution: "1080p"},
		SizeOriginal: {},
	}
}

// SizeForNetworkHint maps a coarse network-speed hint to a size label. The
// hint is a heuristic, not a measured bandwidth; unknown hints resolve to
// the empty string so the caller's requested size stands.
func SizeForNetworkHint(hint string) string {
	switch hint {
	case "slow":
		return SizeThumbnail
	case "medium":
		return SizeSmall
	case "fast":
		return SizeMedium
	}
	return ""
}
