package transform

import (
	"context"
	"fmt"
	"io"
	"os"

	"mediahub/ffmpeg"
	"mediahub/media"
)

// resolutionDims maps the closed set of named resolutions to explicit pixel
// dimensions. Names outside the set pass through without a scale filter.
var resolutionDims = map[string][2]int{
	"480p":  {854, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
}

// videoArgs builds the ffmpeg invocation for one tier. The bufsize is fixed
// at twice the bitrate to cap transcoder memory use.
func videoArgs(src, dst string, cfg media.VideoVariantConfig) []string {
	args := []string{"-i", src}
	if dims, ok := resolutionDims[cfg.Resolution]; ok {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", dims[0], dims[1]))
	}
	args = append(args,
		"-c:v", "libx264",
		"-b:v", fmt.Sprintf("%dk", cfg.Bitrate),
		"-maxrate", fmt.Sprintf("%dk", cfg.Bitrate),
		"-bufsize", fmt.Sprintf("%dk", 2*cfg.Bitrate),
		"-preset", "veryfast",
		"-c:a", "aac",
		dst)
	return args
}

// Video transcodes the file at src into dst according to cfg. A zero cfg is
// the "original" passthrough: the file is copied verbatim. On failure no
// partial dst survives.
func Video(ctx context.Context, src, dst string, cfg media.VideoVariantConfig) (Result, error) {
	if cfg.Bitrate == 0 && cfg.Resolution == "" {
		if err := copyFile(src, dst); err != nil {
			return Result{}, fmt.Errorf("copy original: %w", err)
		}
	} else {
		if _, _, err := ffmpeg.Run(ctx, videoArgs(src, dst, cfg)...); err != nil {
			os.Remove(dst)
			return Result{}, fmt.Errorf("transcode: %w", err)
		}
	}

	info, err := os.Stat(dst)
	if err != nil {
		return Result{}, fmt.Errorf("stat output: %w", err)
	}

	res := Result{
		Path:     dst,
		FileSize: info.Size(),
		Format:   "mp4",
	}
	if dims, ok := resolutionDims[cfg.Resolution]; ok {
		res.Width = uint(dims[0])
		res.Height = uint(dims[1])
	}
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
