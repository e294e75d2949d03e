package providers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mediahub/config"
	"mediahub/ffmpeg"
	"mediahub/media"
	"mediahub/transform"
)

// objectAPI is the slice of the S3 client the adapter uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ObjectStore stores media in an S3 bucket and runs every transform locally.
// Each video upload owns a scoped temp directory that is removed on every
// exit path.
type ObjectStore struct {
	api           objectAPI
	bucket        string
	region        string
	publicBaseURL string
	tempDir       string

	putTimeout       time.Duration
	transcodeTimeout time.Duration
	log              *logrus.Logger

	// seams for tests; default to the real implementations
	transcode func(ctx context.Context, src, dst string, cfg media.VideoVariantConfig) (transform.Result, error)
	probe     func(ctx context.Context, path string) (ffmpeg.Meta, error)
}

// NewObjectStore constructs the adapter with its own S3 client. Credentials
// and endpoint come from cfg; nothing is read from ambient SDK globals when
// explicit credentials are configured.
func NewObjectStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*ObjectStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &ObjectStore{
		api:              client,
		bucket:           cfg.S3Bucket,
		region:           cfg.S3Region,
		publicBaseURL:    strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		tempDir:          cfg.TempDir,
		putTimeout:       cfg.ProviderTimeout,
		transcodeTimeout: cfg.TranscodeTimeout,
		log:              log,
		transcode:        transform.Video,
		probe:            ffmpeg.Probe,
	}, nil
}

func (o *ObjectStore) UploadImage(ctx context.Context, file File, cfgs map[string]media.ImageVariantConfig, folder string) (*MediaMetadata, error) {
	providerID := o.newProviderID(folder)
	comp := newCompensator(o.log)

	var mu sync.Mutex
	var variants []VariantInfo

	g, gctx := errgroup.WithContext(ctx)
	for size, cfg := range cfgs {
		size, cfg := size, cfg
		g.Go(func() error {
			res, err := transform.Image(file.Bytes, cfg)
			if err != nil {
				return &media.TransformError{Size: size, Err: err}
			}

			ext := ".jpg"
			if size == media.SizeOriginal {
				ext = extForFormat(res.Format)
			}
			key := providerID + "/" + size + ext
			pctx := gctx
			if o.putTimeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(gctx, o.putTimeout)
				defer cancel()
			}
			if err := o.put(pctx, key, res.Bytes, file.MimeType); err != nil {
				return &media.ProviderError{Op: "put " + size, Err: err}
			}
			comp.Add("object "+key, func(ctx context.Context) error {
				return o.deleteObject(ctx, key)
			})

			mu.Lock()
			variants = append(variants, VariantInfo{
				Size:     size,
				URL:      o.urlFor(key),
				FileSize: res.FileSize,
				Format:   res.Format,
				Width:    res.Width,
				Height:   res.Height,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		comp.Run(context.Background())
		return nil, err
	}

	return o.assemble(providerID, variants)
}

func (o *ObjectStore) UploadVideo(ctx context.Context, file File, cfgs map[string]media.VideoVariantConfig, folder string) (*MediaMetadata, error) {
	providerID := o.newProviderID(folder)
	comp := newCompensator(o.log)

	// scoped temp dir, removed no matter how this call exits
	tmpDir, err := os.MkdirTemp(o.tempDir, "mediahub-upload-*")
	if err != nil {
		return nil, &media.ProviderError{Op: "tempdir", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			o.log.Errorf("remove temp dir %s: %v", tmpDir, err)
		}
	}()

	srcExt := extForMime(file.MimeType)
	srcPath := filepath.Join(tmpDir, "source"+srcExt)
	if err := os.WriteFile(srcPath, file.Bytes, 0600); err != nil {
		return nil, &media.ProviderError{Op: "spool", Err: err}
	}

	meta, err := o.probe(ctx, srcPath)
	if err != nil {
		o.log.Warnf("probe %s: %v", file.OriginalName, err)
	}

	var mu sync.Mutex
	var variants []VariantInfo

	g, gctx := errgroup.WithContext(ctx)
	for size, cfg := range cfgs {
		size, cfg := size, cfg
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, o.transcodeTimeout)
			defer cancel()

			ext := ".mp4"
			if size == media.SizeOriginal {
				ext = srcExt
			}
			dstPath := filepath.Join(tmpDir, size+ext)
			res, err := o.transcode(tctx, srcPath, dstPath, cfg)
			if err != nil {
				return &media.TransformError{Size: size, Err: err}
			}

			data, err := os.ReadFile(res.Path)
			if err != nil {
				return &media.TransformError{Size: size, Err: err}
			}
			key := providerID + "/" + size + ext
			contentType := "video/mp4"
			if size == media.SizeOriginal {
				contentType = file.MimeType
			}
			if err := o.put(tctx, key, data, contentType); err != nil {
				return &media.ProviderError{Op: "put " + size, Err: err}
			}
			comp.Add("object "+key, func(ctx context.Context) error {
				return o.deleteObject(ctx, key)
			})

			info := VariantInfo{
				Size:       size,
				URL:        o.urlFor(key),
				FileSize:   res.FileSize,
				Format:     strings.TrimPrefix(ext, "."),
				Width:      res.Width,
				Height:     res.Height,
				Bitrate:    cfg.Bitrate,
				Resolution: cfg.Resolution,
			}
			if size == media.SizeOriginal {
				info.Width = meta.Width
				info.Height = meta.Height
			}
			mu.Lock()
			variants = append(variants, info)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		comp.Run(context.Background())
		return nil, err
	}

	return o.assemble(providerID, variants)
}

// Delete removes every object under the provider id prefix. A prefix with
// no objects is already deleted and returns nil.
func (o *ObjectStore) Delete(ctx context.Context, providerID string, kind ResourceKind) error {
	keys, err := o.listKeys(ctx, providerID)
	if err != nil {
		return &media.ProviderError{Op: "list", Err: err}
	}
	for _, key := range keys {
		if err := o.deleteObject(ctx, key); err != nil {
			return &media.ProviderError{Op: "delete", Err: err}
		}
	}
	return nil
}

// Describe lists the stored objects for a provider id.
func (o *ObjectStore) Describe(ctx context.Context, providerID string, kind ResourceKind) (map[string]interface{}, error) {
	out, err := o.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.bucket),
		Prefix: aws.String(providerID + "/"),
	})
	if err != nil {
		return nil, &media.ProviderError{Op: "describe", Err: err}
	}
	if len(out.Contents) == 0 {
		return nil, &media.NotFoundError{What: "resource " + providerID}
	}

	var total int64
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
		total += aws.ToInt64(obj.Size)
	}
	return map[string]interface{}{
		"bucket": o.bucket,
		"keys":   keys,
		"bytes":  total,
	}, nil
}

func (o *ObjectStore) assemble(providerID string, variants []VariantInfo) (*MediaMetadata, error) {
	orig, ok := original(variants)
	if !ok {
		return nil, &media.TransformError{Size: media.SizeOriginal, Err: fmt.Errorf("original variant missing")}
	}
	return &MediaMetadata{
		ProviderID: providerID,
		Provider:   media.ProviderObjectStore,
		Format:     orig.Format,
		FileSize:   orig.FileSize,
		Width:      orig.Width,
		Height:     orig.Height,
		Variants:   variants,
	}, nil
}

func (o *ObjectStore) newProviderID(folder string) string {
	if folder == "" {
		folder = "media"
	}
	return path.Join(folder, uuid.Must(uuid.NewV7()).String())
}

func (o *ObjectStore) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := o.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

func (o *ObjectStore) deleteObject(ctx context.Context, key string) error {
	_, err := o.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (o *ObjectStore) listKeys(ctx context.Context, providerID string) ([]string, error) {
	out, err := o.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.bucket),
		Prefix: aws.String(providerID + "/"),
	})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	return keys, nil
}

func (o *ObjectStore) urlFor(key string) string {
	if o.publicBaseURL != "" {
		return o.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", o.bucket, o.region, key)
}

func extForMime(mime string) string {
	switch mime {
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}

func extForFormat(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".bin"
	}
	return "." + format
}
