package pagebuilder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	ServicesPath = "/deployments/fusion/services"
	BundlesPath  = "/deployments/fusion/bundles"

	defaultTimeout = 10 * time.Minute
	maxErrorBody   = 512
)

// Client talks to the page builder deployment API of one organisation.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	logger    *zap.Logger
}

type Option func(*Client)

// WithBaseURL overrides the https://{apiHostname} base, mainly for tests and
// the sandbox.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(apiHostname, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   "https://" + apiHostname,
		apiKey:    apiKey,
		userAgent: "fusion-deploy",
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListVersions returns the running versions, oldest first.
func (c *Client) ListVersions(ctx context.Context) ([]Version, error) {
	resp, err := c.do(ctx, "list versions", http.MethodGet, ServicesPath, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body servicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("list versions: decode response: %w", err)
	}
	return orderVersions(body.Lambdas), nil
}

// Upload sends the bundle archive at artifactPath under bundleName.
func (c *Client) Upload(ctx context.Context, bundleName, artifactPath string) error {
	f, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("upload: open artifact: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", bundleName); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	part, err := mw.CreateFormFile("bundle", filepath.Base(artifactPath))
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("upload: read artifact: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	c.logger.Debug("uploading bundle",
		zap.String("bundle", bundleName),
		zap.String("artifact", artifactPath),
		zap.Int("bytes", buf.Len()))

	resp, err := c.do(ctx, "upload", http.MethodPost, BundlesPath, &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Deploy asks the service to start a new version from an uploaded bundle.
func (c *Client) Deploy(ctx context.Context, bundleName, pagebuilderVersion string) error {
	q := url.Values{}
	q.Set("bundle", bundleName)
	q.Set("version", pagebuilderVersion)

	resp, err := c.do(ctx, "deploy", http.MethodPost, ServicesPath+"?"+q.Encode(), nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Terminate stops a running version. The returned status code is set
// whenever the service answered, including on failure.
func (c *Client) Terminate(ctx context.Context, v Version) (int, error) {
	p := fmt.Sprintf("%s/%s/terminate", ServicesPath, url.PathEscape(string(v)))
	resp, err := c.do(ctx, "terminate", http.MethodPost, p, nil, "")
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return se.StatusCode, err
		}
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Promote makes v the live version.
func (c *Client) Promote(ctx context.Context, v Version) error {
	p := fmt.Sprintf("%s/%s/promote", ServicesPath, url.PathEscape(string(v)))
	resp, err := c.do(ctx, "promote", http.MethodPost, p, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("request done",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	return resp, nil
}
