package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/h2non/filetype"
)

const maxResponseBytes = 32 << 20

// httpResult is a fully read response, so retried attempts never leak bodies.
type httpResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPRetryConfig bounds retries of idempotent outbound requests.
type HTTPRetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultHTTPRetryConfig() HTTPRetryConfig {
	return HTTPRetryConfig{
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func shouldRetry(res *httpResult, err error) bool {
	if err != nil {
		return true
	}
	if res == nil {
		return true
	}
	switch res.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func newRetryExecutor(cfg HTTPRetryConfig) failsafe.Executor[*httpResult] {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	policy := retrypolicy.NewBuilder[*httpResult]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		Build()

	return failsafe.With(policy)
}

// doOnce sends req and reads the whole body.
func doOnce(client *http.Client, req *http.Request) (*httpResult, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &httpResult{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// doWithRetry runs newReq through the executor. newReq must build a fresh
// request for every attempt.
func doWithRetry(ctx context.Context, exec failsafe.Executor[*httpResult], client *http.Client, newReq func(ctx context.Context) (*http.Request, error)) (*httpResult, error) {
	return exec.WithContext(ctx).Get(func() (*httpResult, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		return doOnce(client, req)
	})
}

// ImageFetcher downloads image bytes referenced by URL.
type ImageFetcher struct {
	client *http.Client
	exec   failsafe.Executor[*httpResult]
}

func NewImageFetcher(client *http.Client, retry HTTPRetryConfig) *ImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	return &ImageFetcher{client: client, exec: newRetryExecutor(retry)}
}

// Fetch returns the image bytes and their sniffed MIME type.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	res, err := doWithRetry(ctx, f.exec, f.client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	})
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download image: unexpected status %d", res.StatusCode)
	}
	if len(res.Body) == 0 {
		return nil, "", fmt.Errorf("download image: empty body")
	}

	kind, err := filetype.Image(res.Body)
	if err != nil || kind == filetype.Unknown {
		return nil, "", fmt.Errorf("download image: content is not a supported image")
	}
	return res.Body, kind.MIME.Value, nil
}

func newJSONRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
