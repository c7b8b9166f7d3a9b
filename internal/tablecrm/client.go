// Package tablecrm is a client for the tablecrm.com sales API: reference
// catalog lookups and sale document creation.
package tablecrm

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

	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://app.tablecrm.com/api/v1"
	DefaultTimeout = 15 * time.Second

	maxErrorBody = 4 << 10
)

const (
	PathContragents   = "/contragents/"
	PathPayboxes      = "/payboxes/"
	PathOrganizations = "/organizations/"
	PathWarehouses    = "/warehouses/"
	PathPriceTypes    = "/price_types/"
	PathNomenclature  = "/nomenclature/"
	PathDocsSales     = "/docs_sales/"
)

// ErrTransport marks failures talking to the API: network errors, non-2xx
// answers and undecodable bodies.
var ErrTransport = errors.New("tablecrm: transport failure")

// APIError is returned for non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tablecrm: %s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return ErrTransport
}

// Client talks to the tablecrm API. The zero value is not usable; use NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildTokenizedPath appends the token query parameter to path.
func BuildTokenizedPath(path, token string) string {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return path + separator + "token=" + token
}

func (c *Client) get(ctx context.Context, path, token string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, token, nil)
}

func (c *Client) post(ctx context.Context, path, token string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tablecrm: encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, token, bytes.NewReader(body))
}

func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+BuildTokenizedPath(path, token), body)
	if err != nil {
		return nil, fmt.Errorf("tablecrm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("tablecrm: request failed")
		return nil, fmt.Errorf("tablecrm: %s %s: %w: %w", method, path, ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tablecrm: read response body: %w: %w", ErrTransport, err)
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("tablecrm: request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
