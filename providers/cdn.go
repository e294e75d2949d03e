package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mediahub/config"
	"mediahub/media"
)

// CDN talks to a managed image/video backend that performs transforms
// server-side. The original is uploaded once; every derived variant is a
// transform request referencing the original's public id, so no local
// transcoding happens on this path.
type CDN struct {
	client  *http.Client
	baseURL string
	cloud   string
	apiKey  string
	secret  string
	log     *logrus.Logger
}

// NewCDN builds an adapter from the CDN section of cfg. The http client is
// owned by the adapter; there is no package-level SDK state.
func NewCDN(cfg *config.Config, log *logrus.Logger) *CDN {
	return &CDN{
		client:  &http.Client{Timeout: cfg.ProviderTimeout},
		baseURL: strings.TrimRight(cfg.CDNBaseURL, "/"),
		cloud:   cfg.CDNCloudName,
		apiKey:  cfg.CDNAPIKey,
		secret:  cfg.CDNAPISecret,
		log:     log,
	}
}

// cdnResource is the backend's description of one stored artifact. The
// backend is authoritative for byte sizes and dimensions.
type cdnResource struct {
	PublicID string `json:"public_id"`
	URL      string `json:"secure_url"`
	Bytes    int64  `json:"bytes"`
	Width    uint   `json:"width"`
	Height   uint   `json:"height"`
	Format   string `json:"format"`
}

func (c *CDN) UploadImage(ctx context.Context, file File, cfgs map[string]media.ImageVariantConfig, folder string) (*MediaMetadata, error) {
	orig, err := c.uploadOriginal(ctx, file, folder, KindImage)
	if err != nil {
		return nil, &media.ProviderError{Op: "upload", Err: err}
	}

	comp := newCompensator(c.log)
	comp.Add("original "+orig.PublicID, func(ctx context.Context) error {
		return c.destroy(ctx, orig.PublicID, KindImage)
	})

	var mu sync.Mutex
	variants := []VariantInfo{{
		Size:     media.SizeOriginal,
		URL:      orig.URL,
		FileSize: orig.Bytes,
		Format:   orig.Format,
		Width:    orig.Width,
		Height:   orig.Height,
	}}

	g, gctx := errgroup.WithContext(ctx)
	for size, cfg := range cfgs {
		if size == media.SizeOriginal {
			continue
		}
		size, cfg := size, cfg
		g.Go(func() error {
			transformation := fmt.Sprintf("w_%d,h_%d,c_fill,q_%d", cfg.Width, cfg.Height, cfg.Quality)
			derived, err := c.derive(gctx, orig.PublicID, transformation, KindImage)
			if err != nil {
				return &media.ProviderError{Op: "derive " + size, Err: err}
			}
			comp.Add("variant "+derived.PublicID, func(ctx context.Context) error {
				return c.destroy(ctx, derived.PublicID, KindImage)
			})
			mu.Lock()
			variants = append(variants, VariantInfo{
				Size:     size,
				URL:      derived.URL,
				FileSize: derived.Bytes,
				Format:   derived.Format,
				Width:    derived.Width,
				Height:   derived.Height,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		comp.Run(context.Background())
		return nil, err
	}

	return &MediaMetadata{
		ProviderID: orig.PublicID,
		Provider:   media.ProviderManagedCDN,
		Format:     orig.Format,
		FileSize:   orig.Bytes,
		Width:      orig.Width,
		Height:     orig.Height,
		Variants:   variants,
	}, nil
}

func (c *CDN) UploadVideo(ctx context.Context, file File, cfgs map[string]media.VideoVariantConfig, folder string) (*MediaMetadata, error) {
	orig, err := c.uploadOriginal(ctx, file, folder, KindVideo)
	if err != nil {
		return nil, &media.ProviderError{Op: "upload", Err: err}
	}

	comp := newCompensator(c.log)
	comp.Add("original "+orig.PublicID, func(ctx context.Context) error {
		return c.destroy(ctx, orig.PublicID, KindVideo)
	})

	var mu sync.Mutex
	variants := []VariantInfo{{
		Size:     media.SizeOriginal,
		URL:      orig.URL,
		FileSize: orig.Bytes,
		Format:   orig.Format,
		Width:    orig.Width,
		Height:   orig.Height,
	}}

	g, gctx := errgroup.WithContext(ctx)
	for size, cfg := range cfgs {
		if size == media.SizeOriginal {
			continue
		}
		size, cfg := size, cfg
		g.Go(func() error {
			transformation := fmt.Sprintf("br_%dk,res_%s", cfg.Bitrate, cfg.Resolution)
			derived, err := c.derive(gctx, orig.PublicID, transformation, KindVideo)
			if err != nil {
				return &media.ProviderError{Op: "derive " + size, Err: err}
			}
			comp.Add("variant "+derived.PublicID, func(ctx context.Context) error {
				return c.destroy(ctx, derived.PublicID, KindVideo)
			})
			mu.Lock()
			variants = append(variants, VariantInfo{
				Size:       size,
				URL:        derived.URL,
				FileSize:   derived.Bytes,
				Format:     derived.Format,
				Bitrate:    cfg.Bitrate,
				Resolution: cfg.Resolution,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		comp.Run(context.Background())
		return nil, err
	}

	return &MediaMetadata{
		ProviderID: orig.PublicID,
		Provider:   media.ProviderManagedCDN,
		Format:     orig.Format,
		FileSize:   orig.Bytes,
		Width:      orig.Width,
		Height:     orig.Height,
		Variants:   variants,
	}, nil
}

// Delete destroys the original and its derived artifacts. An unknown public
// id is not an error.
func (c *CDN) Delete(ctx context.Context, providerID string, kind ResourceKind) error {
	return c.destroy(ctx, providerID, kind)
}

// Describe returns the backend's native view of a resource.
func (c *CDN) Describe(ctx context.Context, providerID string, kind ResourceKind) (map[string]interface{}, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/resources/%s/%s", c.baseURL, c.cloud, kind, url.PathEscape(providerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiKey, c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &media.ProviderError{Op: "describe", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, &media.NotFoundError{What: "resource " + providerID}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &media.ProviderError{Op: "describe", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var info map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &media.ProviderError{Op: "describe", Err: err}
	}
	return info, nil
}

func (c *CDN) uploadOriginal(ctx context.Context, file File, folder string, kind ResourceKind) (*cdnResource, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", file.OriginalName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(file.Bytes); err != nil {
		return nil, err
	}
	if folder == "" {
		folder = "media"
	}
	writer.WriteField("folder", folder)
	writer.WriteField("resource_type", string(kind))
	if err := writer.Close(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/%s/upload", c.baseURL, c.cloud)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(c.apiKey, c.secret)

	return c.doResource(req)
}

// derive asks the backend to produce one transformed rendition of an
// already-uploaded resource.
func (c *CDN) derive(ctx context.Context, publicID, transformation string, kind ResourceKind) (*cdnResource, error) {
	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("transformation", transformation)
	form.Set("resource_type", string(kind))

	endpoint := fmt.Sprintf("%s/v1/%s/derive", c.baseURL, c.cloud)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.apiKey, c.secret)

	return c.doResource(req)
}

func (c *CDN) destroy(ctx context.Context, publicID string, kind ResourceKind) error {
	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("resource_type", string(kind))

	endpoint := fmt.Sprintf("%s/v1/%s/destroy", c.baseURL, c.cloud)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.apiKey, c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return &media.ProviderError{Op: "destroy", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// already gone counts as deleted
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return &media.ProviderError{Op: "destroy", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

func (c *CDN) doResource(req *http.Request) (*cdnResource, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	c.log.Debugf("%s %s -> %d in %s", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res cdnResource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if res.PublicID == "" {
		return nil, fmt.Errorf("backend returned no public_id")
	}
	return &res, nil
}
