package api

import (
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
	"strconv"
	"strings"
	"time"

	"cymatics/internal/jobs"
)

// ErrDaemonUnavailable indicates the daemon did not answer.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// Client talks to a running daemon over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL (for example http://127.0.0.1:7489).
// A zero timeout leaves requests unbounded, which uploads of large media need.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status calls GET /v1/cycle/status.
func (c *Client) Status(ctx context.Context) (*jobs.QueueStatus, error) {
	var resp jobs.QueueStatus
	if err := c.do(ctx, http.MethodGet, "/v1/cycle/status", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Jobs calls GET /v1/jobs.
func (c *Client) Jobs(ctx context.Context, limit int) (*JobsResponse, error) {
	path := "/v1/jobs"
	if limit > 0 {
		path += "?" + url.Values{"limit": []string{strconv.Itoa(limit)}}.Encode()
	}
	var resp JobsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unload calls POST /v1/model/unload.
func (c *Client) Unload(ctx context.Context) (*jobs.QueueStatus, error) {
	var resp jobs.QueueStatus
	if err := c.do(ctx, http.MethodPost, "/v1/model/unload", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit uploads the file at path to POST /v1/transcribe. The body is
// streamed so large media never sits in memory.
func (c *Client) Submit(ctx context.Context, path string) (*TranscribeResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var resp TranscribeResponse
	if err := c.do(ctx, http.MethodPost, "/v1/transcribe", pr, mw.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrDaemonUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Detail != "" {
			return fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, apiErr.Detail)
		}
		return fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
