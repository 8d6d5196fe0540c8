// Package wpclient is a thin HTTP client for the WordPress content API.
//
// All calls are sequential; paginated listing is paced by a rate limiter so
// large sites are walked without tripping third-party rate limits. Writes
// POST only the changed fields, reads for verification add a cache-busting
// parameter and a no-cache header.
package wpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the remote reports 404 for a document.
var ErrNotFound = errors.New("document not found")

// APIError is a non-2xx response from the content API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("content api returned %d: %s", e.StatusCode, e.Body)
}

// Config configures the client.
type Config struct {
	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration

	// PageDelay is the minimum interval between paginated list requests
	// (default: 500ms).
	PageDelay time.Duration

	// PerPage is the page size for listing (default: 50).
	PerPage int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		PageDelay: 500 * time.Millisecond,
		PerPage:   50,
	}
}

// Client talks to one or more WordPress sites.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New creates a content API client.
func New(cfg *Config, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = 500 * time.Millisecond
	}
	if cfg.PerPage == 0 {
		cfg.PerPage = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		logger:     logger,
	}
}

// FetchOptions tune a single read.
type FetchOptions struct {
	// CacheBust adds a unique query parameter and a no-cache header so the
	// read bypasses remote page caches. Used by verification.
	CacheBust bool
}

// Ping checks that the site content API is reachable and the credentials
// are accepted. Used before any mutation so access errors abort a run
// early.
func (c *Client) Ping(ctx context.Context, creds Credentials) error {
	endpoint := fmt.Sprintf("%s/content-api/%s?per_page=1&page=1&status=publish", creds.BaseURL, KindPost)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, creds, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("site not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("site rejected credentials: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}
	return nil
}

// Get fetches one document by id.
func (c *Client) Get(ctx context.Context, creds Credentials, kind Kind, id int, opts FetchOptions) (*Document, error) {
	endpoint := fmt.Sprintf("%s/content-api/%s/%d?context=edit", creds.BaseURL, kind, id)
	if opts.CacheBust {
		endpoint += "&_nocache=" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, creds, nil)
	if err != nil {
		return nil, err
	}
	if opts.CacheBust {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%d: %w", kind, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s/%d: %w", kind, id, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, c.apiError(resp)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%d: %w", kind, id, err)
	}
	doc.Kind = kind
	return &doc, nil
}

// List walks the paginated collection and returns up to limit published
// documents, newest first. limit <= 0 means all.
func (c *Client) List(ctx context.Context, creds Credentials, kind Kind, limit int) ([]Document, error) {
	var docs []Document

	for page := 1; ; page++ {
		// Pace between pages; the first Wait is satisfied immediately.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pagination interrupted: %w", err)
		}

		endpoint := fmt.Sprintf("%s/content-api/%s?per_page=%d&page=%d&status=publish",
			creds.BaseURL, kind, c.config.PerPage, page)
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, creds, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s page %d: %w", kind, page, err)
		}

		// WordPress returns 400 for pages past the end
		if resp.StatusCode == http.StatusBadRequest && page > 1 {
			resp.Body.Close()
			break
		}
		if resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return nil, c.apiError(resp)
		}

		var pageDocs []Document
		err = json.NewDecoder(resp.Body).Decode(&pageDocs)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s page %d: %w", kind, page, err)
		}

		for i := range pageDocs {
			pageDocs[i].Kind = kind
		}
		docs = append(docs, pageDocs...)

		if limit > 0 && len(docs) >= limit {
			return docs[:limit], nil
		}
		if len(pageDocs) < c.config.PerPage {
			break
		}
	}

	return docs, nil
}

// Update writes the changed fields of one document.
func (c *Client) Update(ctx context.Context, creds Credentials, kind Kind, id int, payload UpdatePayload) error {
	if payload.IsEmpty() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/content-api/%s/%d", creds.BaseURL, kind, id)
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, creds, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update %s/%d: %w", kind, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s/%d: %w", kind, id, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}

	c.logger.Debug("updated document",
		zap.String("kind", string(kind)),
		zap.Int("id", id),
	)
	return nil
}

// UpdateMediaAlt sets the alt text on a media attachment.
func (c *Client) UpdateMediaAlt(ctx context.Context, creds Credentials, mediaID int, alt string) error {
	body, err := json.Marshal(map[string]string{"alt_text": alt})
	if err != nil {
		return fmt.Errorf("failed to marshal media update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/content-api/%s/%d", creds.BaseURL, KindMedia, mediaID)
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, creds, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update media %d: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, creds Credentials, body io.Reader) (*http.Request, error) {
	if _, err := url.Parse(creds.BaseURL); err != nil || creds.BaseURL == "" {
		return nil, fmt.Errorf("invalid site url %q", creds.BaseURL)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.AppPassword)
	return req, nil
}

func (c *Client) apiError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{StatusCode: resp.StatusCode, Body: string(snippet)}
}
