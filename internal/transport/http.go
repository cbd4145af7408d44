// Package transport executes function calls against remote
// collectible-issuing services over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/minsta/internal/config"
	"github.com/dyluth/minsta/internal/minter"
)

// Headers sent with every remote call.
const (
	HeaderPredecessor = "X-Predecessor-Account-Id"
	HeaderPrepaidGas  = "X-Prepaid-Gas"
	HeaderDeposit     = "X-Attached-Deposit"
)

const maxResponseBytes = 1 << 20

// Client calls target services. A call never fails with an error: every
// problem (unknown target, network error, non-2xx status) is reported as a
// failed PromiseResult.
type Client struct {
	self     minter.AccountID
	targets  map[string]config.TargetConfig
	template string
	client   *http.Client
}

// New creates a transport that calls on behalf of self.
func New(self minter.AccountID, targets map[string]config.TargetConfig, endpointTemplate string, timeout time.Duration) *Client {
	return &Client{
		self:     self,
		targets:  targets,
		template: endpointTemplate,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewFromConfig builds a transport from a validated configuration.
func NewFromConfig(cfg *config.MinstaConfig) *Client {
	return New(minter.AccountID(cfg.ContractID), cfg.Targets, cfg.EndpointTemplate, cfg.Timeouts.Call)
}

// Endpoint resolves the base URL of target: explicit targets first, then
// the endpoint template.
func (c *Client) Endpoint(target minter.ServiceID) (string, error) {
	if t, ok := c.targets[string(target)]; ok {
		return strings.TrimRight(strings.TrimSpace(t.Endpoint), "/"), nil
	}
	if c.template != "" {
		if err := minter.ValidateAccountID(target); err != nil {
			return "", err
		}
		return strings.TrimRight(strings.ReplaceAll(c.template, config.TargetPlaceholder, string(target)), "/"), nil
	}
	return "", fmt.Errorf("no endpoint configured for target %s", target)
}

// Execute POSTs call.Args to {endpoint}/{method}.
func (c *Client) Execute(ctx context.Context, call minter.Call) minter.PromiseResult {
	base, err := c.Endpoint(call.Receiver)
	if err != nil {
		return failed(err)
	}
	url := base + "/" + call.Method

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(call.Args))
	if err != nil {
		return failed(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderPredecessor, string(c.self))
	req.Header.Set(HeaderPrepaidGas, strconv.FormatUint(uint64(call.Gas), 10))
	req.Header.Set(HeaderDeposit, strconv.FormatUint(call.Deposit, 10))
	for k, v := range c.targets[string(call.Receiver)].Headers {
		req.Header.Set(k, v)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return failed(fmt.Errorf("%s %s: %w", call.Method, call.Receiver, err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return failed(fmt.Errorf("failed to read %s response: %w", call.Method, err))
	}
	body = bytes.TrimSpace(body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return failed(fmt.Errorf("%s %s failed status=%d body=%s", call.Method, call.Receiver, res.StatusCode, string(body)))
	}

	result := minter.PromiseResult{Status: minter.ResultSuccessful}
	switch {
	case len(body) == 0:
	case json.Valid(body):
		result.Value = body
	default:
		result.Value, _ = json.Marshal(string(body))
	}
	return result
}

func failed(err error) minter.PromiseResult {
	return minter.PromiseResult{Status: minter.ResultFailed, Error: err.Error()}
}
