package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediahub/media"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestImageFillFit(t *testing.T) {
	src := testJPEG(t, 800, 600)

	res, err := Image(src, media.ImageVariantConfig{Width: 150, Height: 150, Quality: 60})
	require.NoError(t, err)

	assert.Equal(t, "jpeg", res.Format)
	assert.Equal(t, uint(150), res.Width)
	assert.Equal(t, uint(150), res.Height)
	assert.Equal(t, int64(len(res.Bytes)), res.FileSize)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Bytes))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 150, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestImageOriginalPassthrough(t *testing.T) {
	src := testJPEG(t, 320, 240)

	res, err := Image(src, media.ImageVariantConfig{})
	require.NoError(t, err)

	// verbatim, never re-encoded
	assert.Equal(t, src, res.Bytes)
	assert.Equal(t, uint(320), res.Width)
	assert.Equal(t, uint(240), res.Height)
	assert.Equal(t, "jpeg", res.Format)
}

func TestImageMalformedInput(t *testing.T) {
	_, err := Image([]byte("not an image"), media.ImageVariantConfig{Width: 150, Height: 150, Quality: 60})
	assert.Error(t, err)

	_, err = Image([]byte("not an image"), media.ImageVariantConfig{})
	assert.Error(t, err)
}

func TestVideoArgs(t *testing.T) {
	args := videoArgs("in.mp4", "out.mp4", media.VideoVariantConfig{Bitrate: 1000, Resolution: "720p"})

	assert.Contains(t, args, "scale=1280:720")
	assert.Contains(t, args, "-b:v")
	assert.Contains(t, args, "1000k")
	assert.Contains(t, args, "-bufsize")
	assert.Contains(t, args, "2000k")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestVideoArgsUnknownResolutionSkipsScale(t *testing.T) {
	args := videoArgs("in.mp4", "out.mp4", media.VideoVariantConfig{Bitrate: 500, Resolution: "4320p"})

	assert.NotContains(t, args, "-vf")
	assert.Contains(t, args, "500k")
}

func TestVideoOriginalPassthrough(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "dst.mp4")
	content := []byte("fake video bytes")
	require.NoError(t, os.WriteFile(src, content, 0600))

	res, err := Video(context.Background(), src, dst, media.VideoVariantConfig{})
	require.NoError(t, err)

	assert.Equal(t, dst, res.Path)
	assert.Equal(t, int64(len(content)), res.FileSize)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}
