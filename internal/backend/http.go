package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forest-guardian/degradation-indicator/internal/log"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	ErrUnauthorized = errors.New("unauthorized access, check your client ID and secret")
	ErrNotFound     = errors.New("resource not found")
)

const (
	defaultRetries    = 10
	defaultRetryDelay = 5 * time.Second
)

// Config holds the connection settings shared by the backend and storage clients.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Retries      int
	RetryDelay   time.Duration
}

// Requester sends JSON requests to one service and retries failed attempts.
type Requester struct {
	base       string
	http       *http.Client
	retries    int
	retryDelay time.Duration
	logTag     string
}

// NewRequester uses client credentials when ClientID is set, a plain client otherwise.
func NewRequester(ctx context.Context, cfg Config, logTag string) (*Requester, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing base url for %s", strings.TrimSuffix(logTag, ":"))
	}
	httpClient := http.DefaultClient
	if cfg.ClientID != "" {
		if cfg.ClientSecret == "" || cfg.TokenURL == "" {
			return nil, fmt.Errorf("missing required client secret or token url for client %q", cfg.ClientID)
		}
		oauth := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = oauth.Client(ctx)
	}
	r := &Requester{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		http:       httpClient,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		logTag:     logTag,
	}
	if r.retries <= 0 {
		r.retries = defaultRetries
	}
	if r.retryDelay <= 0 {
		r.retryDelay = defaultRetryDelay
	}
	return r, nil
}

type call struct {
	attempts int
}

// CallOption tunes a single request of a Requester.
type CallOption func(*call)

// Once sends the request a single time. Requests that create a remote resource use it so a lost
// answer never starts the same work twice.
func Once() CallOption {
	return func(c *call) { c.attempts = 1 }
}

// Do sends the request and returns the response of the first attempt answered with a 2xx status.
// 401/403 and 404 answers are not retried. The caller closes the body.
func (r *Requester) Do(ctx context.Context, method, path string, body []byte, contentType string, opts ...CallOption) (*http.Response, error) {
	c := call{attempts: r.retries}
	for _, o := range opts {
		o(&c)
	}
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, r.base+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		response, err := r.http.Do(req)
		if err == nil {
			switch {
			case response.StatusCode >= 200 && response.StatusCode < 300:
				return response, nil
			case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
				response.Body.Close()
				return nil, ErrUnauthorized
			case response.StatusCode == http.StatusNotFound:
				response.Body.Close()
				return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
			}
			msg, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
			response.Body.Close()
			err = fmt.Errorf("%s %s: status %d: %s", method, path, response.StatusCode, strings.TrimSpace(string(msg)))
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn(r.logTag+"attempt failed", zap.Int("attempt", attempt), zap.String("path", path), zap.Error(err))
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.attempts, lastErr)
}

// JSON sends in as a JSON body (when not nil) and decodes the answer into out (when not nil).
func (r *Requester) JSON(ctx context.Context, method, path string, in, out any, opts ...CallOption) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = b
	}
	response, err := r.Do(ctx, method, path, body, "application/json", opts...)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
