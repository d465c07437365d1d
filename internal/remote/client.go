// Package remote talks to the notes service that holds the authoritative copy of every document.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/google/uuid"
)

const DefaultBaseURL = "http://127.0.0.1:8080"

// Note is the server copy of a document.
type Note struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Client is the remote persistence interface used by the sync engine.
type Client interface {
	// Patch replaces the content stored at path. It is never retried.
	Patch(ctx context.Context, path, content string) error
	// Fetch returns the server copy of path; a missing note is an errdefs.ErrNotFound.
	Fetch(ctx context.Context, path string) (Note, error)
	// Ping checks that the service is reachable.
	Ping(ctx context.Context) error
}

// HTTPError is a non-2xx response. It unwraps to the matching errdefs kind.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return errdefs.ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return errdefs.ErrConflict
	case e.StatusCode == http.StatusBadRequest:
		return errdefs.ErrInvalidArgument
	case e.StatusCode == http.StatusUnauthorized:
		return errdefs.ErrUnauthenticated
	case e.StatusCode == http.StatusForbidden:
		return errdefs.ErrPermissionDenied
	case e.StatusCode == http.StatusTooManyRequests:
		return errdefs.ErrResourceExhausted
	case e.StatusCode >= 500:
		return errdefs.ErrUnavailable
	default:
		return errdefs.ErrUnknown
	}
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

func (c *HTTPClient) Patch(ctx context.Context, path, content string) error {
	body := map[string]string{"content": content}
	return c.doJSON(ctx, http.MethodPatch, notePath(path), body, nil, false)
}

func (c *HTTPClient) Fetch(ctx context.Context, path string) (Note, error) {
	var note Note
	if err := c.doJSON(ctx, http.MethodGet, notePath(path), nil, &note, true); err != nil {
		return Note{}, err
	}
	if note.Path == "" {
		note.Path = path
	}
	return note, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil, false)
}

func notePath(path string) string {
	return "/notes/" + url.PathEscape(strings.TrimPrefix(path, "/"))
}

func (c *HTTPClient) doJSON(ctx context.Context, method, requestPath string, body, out any, retry bool) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	maxRetries := 0
	if retry {
		maxRetries = c.maxRetries
	}

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("X-Correlation-Id", uuid.NewString())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("%s %s: %w: %w", method, requestPath, errdefs.ErrUnavailable, err)
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(payload, &errPayload)
		return &HTTPError{StatusCode: resp.StatusCode, Message: errPayload.Error}
	}
}

func (c *HTTPClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, maxDelay)
	}
	delay := c.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return min(delay, maxDelay)
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
