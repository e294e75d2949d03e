// Package transform produces variant renditions from source media. Image
// work happens in memory; video work goes through ffmpeg on files.
package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"

	"mediahub/media"
)

// Result describes one produced rendition.
type Result struct {
	Bytes    []byte // image output; nil for video
	Path     string // video output; empty for image
	FileSize int64
	Format   string
	Width    uint
	Height   uint
}

// Image converts src into the rendition described by cfg. A zero cfg is the
// "original" passthrough: bytes are returned verbatim with only their
// dimensions decoded. Non-original tiers are resized with a fill fit (the
// output exactly matches the requested geometry, cropping as needed) and
// re-encoded as JPEG at the tier quality.
func Image(src []byte, cfg media.ImageVariantConfig) (Result, error) {
	if cfg.Width == 0 && cfg.Height == 0 {
		config, format, err := image.DecodeConfig(bytes.NewReader(src))
		if err != nil {
			return Result{}, fmt.Errorf("decode image: %w", err)
		}
		return Result{
			Bytes:    src,
			FileSize: int64(len(src)),
			Format:   format,
			Width:    uint(config.Width),
			Height:   uint(config.Height),
		}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fill(img, cfg.Width, cfg.Height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: cfg.Quality}); err != nil {
		return Result{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return Result{
		Bytes:    buf.Bytes(),
		FileSize: int64(buf.Len()),
		Format:   "jpeg",
		Width:    uint(cfg.Width),
		Height:   uint(cfg.Height),
	}, nil
}
