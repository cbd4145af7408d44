package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dyluth/minsta/internal/engine"
)

// Client calls a running minsta server on behalf of one account.
type Client struct {
	baseURL      string
	caller       string
	callerHeader string
	client       *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL, caller, callerHeader string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		caller:       caller,
		callerHeader: callerHeader,
		client:       &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// Mint submits a mint. With wait set the server answers once the callback
// has run.
func (c *Client) Mint(ctx context.Context, metadata, target string, wait bool) (*engine.ReceiptStatus, error) {
	body, err := json.Marshal(MintRequest{
		Metadata: json.RawMessage(quoteJSON(metadata)),
		Target:   target,
	})
	if err != nil {
		return nil, err
	}

	path := "/v1/mint"
	if wait {
		path += "?wait=true"
	}

	var status engine.ReceiptStatus
	if err := c.do(ctx, http.MethodPost, path, body, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Receipt fetches the state of a previously submitted mint.
func (c *Client) Receipt(ctx context.Context, id string) (*engine.ReceiptStatus, error) {
	var status engine.ReceiptStatus
	if err := c.do(ctx, http.MethodGet, "/v1/receipts/"+url.PathEscape(id), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// LatestMinter queries the registry through the server.
func (c *Client) LatestMinter(ctx context.Context, target string) (*LatestMinterResponse, error) {
	var resp LatestMinterResponse
	if err := c.do(ctx, http.MethodGet, "/v1/latest-minter/"+url.PathEscape(target), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.caller != "" {
		req.Header.Set(c.callerHeader, c.caller)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		var er ErrorResponse
		if json.NewDecoder(io.LimitReader(res.Body, maxRequestBytes)).Decode(&er) == nil {
			apiErr.Code = er.Code
			apiErr.Message = er.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func quoteJSON(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}
