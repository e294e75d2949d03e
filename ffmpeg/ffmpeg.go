// Package ffmpeg wraps the ffmpeg and ffprobe binaries. Every invocation is
// bounded by the caller's context.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Run invokes ffmpeg with the provided args and returns (stdout, stderr, error).
func Run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	ffmpeg := "ffmpeg"
	log.Infoln(ffmpeg, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if err != nil {
		log.Errorf("ffmpeg error: %v: %s", err, stderr.String())
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// Meta is the subset of stream metadata the pipeline cares about.
type Meta struct {
	Width    uint
	Height   uint
	Codec    string
	Duration float64
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     uint   `json:"width"`
		Height    uint   `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe against the file at path and returns metadata for its
// first video stream.
func Probe(ctx context.Context, path string) (Meta, error) {
	ffprobe := "ffprobe"
	args := []string{"-v", "quiet", "-print_format", "json",
		"-show_streams", "-show_format", path}
	log.Infoln(ffprobe, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, ffprobe, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		log.Errorf("ffprobe error: %v: %s", err, stderr.String())
		return Meta{}, err
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Meta{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	meta := Meta{}
	if out.Format.Duration != "" {
		fmt.Sscanf(out.Format.Duration, "%f", &meta.Duration)
	}
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			meta.Width = s.Width
			meta.Height = s.Height
			meta.Codec = s.CodecName
			return meta, nil
		}
	}
	return meta, fmt.Errorf("no video stream in %s", path)
}
