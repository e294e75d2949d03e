// Package config loads pipeline configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every knob the pipeline recognizes. Provider credentials are
// opaque to the core and passed straight through to the adapters.
type Config struct {
	ListenAddr string
	TempDir    string

	// upload validation
	MaxUploadSize  int64
	ImageMimeTypes []string
	VideoMimeTypes []string

	// per-call bounds
	ProviderTimeout  time.Duration
	TranscodeTimeout time.Duration
	SweepInterval    time.Duration

	DefaultProvider string

	// managed CDN backend
	CDNBaseURL   string
	CDNCloudName string
	CDNAPIKey    string
	CDNAPISecret string

	// object store backend
	S3Region        string
	S3Bucket        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string
}

// Load reads configuration from the environment, applies defaults, and
// validates the few fields that have hard requirements.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getEnvDefault("MEDIAHUB_LISTEN_ADDR", ":8080")
	cfg.TempDir = getEnvDefault("MEDIAHUB_TEMP_DIR", os.TempDir())

	maxUpload, err := getEnvInt64("MEDIAHUB_MAX_UPLOAD_SIZE", 100<<20)
	if err != nil {
		return nil, fmt.Errorf("MEDIAHUB_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("MEDIAHUB_MAX_UPLOAD_SIZE: must be positive, got %d", maxUpload)
	}
	cfg.MaxUploadSize = maxUpload

	cfg.ImageMimeTypes = getEnvList("MEDIAHUB_IMAGE_MIME_TYPES",
		"image/jpeg,image/png,image/gif,image/webp")
	cfg.VideoMimeTypes = getEnvList("MEDIAHUB_VIDEO_MIME_TYPES",
		"video/mp4,video/quicktime,video/webm")

	cfg.ProviderTimeout, err = getEnvDuration("MEDIAHUB_PROVIDER_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MEDIAHUB_PROVIDER_TIMEOUT: %w", err)
	}
	cfg.TranscodeTimeout, err = getEnvDuration("MEDIAHUB_TRANSCODE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MEDIAHUB_TRANSCODE_TIMEOUT: %w", err)
	}
	cfg.SweepInterval, err = getEnvDuration("MEDIAHUB_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MEDIAHUB_SWEEP_INTERVAL: %w", err)
	}

	cfg.DefaultProvider = getEnvDefault("MEDIAHUB_DEFAULT_PROVIDER", "managed-cdn")

	cfg.CDNBaseURL = os.Getenv("MEDIAHUB_CDN_BASE_URL")
	cfg.CDNCloudName = os.Getenv("MEDIAHUB_CDN_CLOUD_NAME")
	cfg.CDNAPIKey = os.Getenv("MEDIAHUB_CDN_API_KEY")
	cfg.CDNAPISecret = os.Getenv("MEDIAHUB_CDN_API_SECRET")
	if cfg.CDNBaseURL != "" && cfg.CDNCloudName == "" {
		return nil, fmt.Errorf("MEDIAHUB_CDN_CLOUD_NAME: required when MEDIAHUB_CDN_BASE_URL is set")
	}

	cfg.S3Region = getEnvDefault("MEDIAHUB_S3_REGION", "us-east-1")
	cfg.S3Bucket = os.Getenv("MEDIAHUB_S3_BUCKET")
	cfg.S3Endpoint = os.Getenv("MEDIAHUB_S3_ENDPOINT")
	cfg.S3AccessKey = os.Getenv("MEDIAHUB_S3_ACCESS_KEY")
	cfg.S3SecretKey = os.Getenv("MEDIAHUB_S3_SECRET_KEY")
	cfg.S3PublicBaseURL = os.Getenv("MEDIAHUB_S3_PUBLIC_BASE_URL")

	return cfg, nil
}

// CDNEnabled reports whether the managed-CDN adapter is configured.
func (c *Config) CDNEnabled() bool {
	return c.CDNBaseURL != ""
}

// ObjectStoreEnabled reports whether the S3 adapter is configured.
func (c *Config) ObjectStoreEnabled() bool {
	return c.S3Bucket != ""
}

func getEnvDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return parsed, nil
}

func getEnvList(key, fallback string) []string {
	raw := getEnvDefault(key, fallback)
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
