// Package testutil holds fixtures shared by package tests: a registry backed
// by miniredis and a fake collectible-issuing service.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/minsta/pkg/registry"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// TestInstanceName is the instance every fixture registry uses.
const TestInstanceName = "test-instance"

// NewRegistry starts miniredis and returns a registry client connected to
// it. Both are closed when the test ends.
func NewRegistry(t *testing.T) (*registry.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := registry.NewClient(&redis.Options{Addr: mr.Addr()}, TestInstanceName)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// ReceivedCall is one request seen by a FakeTarget.
type ReceivedCall struct {
	Method      string
	Predecessor string
	Body        json.RawMessage
}

// FakeTarget is an issuing service that answers nft_batch_mint with a
// configurable status and body.
type FakeTarget struct {
	Server *httptest.Server

	mu     sync.Mutex
	calls  []ReceivedCall
	status int
	body   string
}

// NewFakeTarget starts a target answering 200 with a token id list.
func NewFakeTarget(t *testing.T) *FakeTarget {
	t.Helper()

	f := &FakeTarget{status: http.StatusOK, body: `["1"]`}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake service.
func (f *FakeTarget) URL() string {
	return f.Server.URL
}

// Respond changes the answer for subsequent calls.
func (f *FakeTarget) Respond(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.body = body
}

// Calls returns every call received so far.
func (f *FakeTarget) Calls() []ReceivedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ReceivedCall(nil), f.calls...)
}

func (f *FakeTarget) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls = append(f.calls, ReceivedCall{
		Method:      strings.TrimPrefix(r.URL.Path, "/"),
		Predecessor: r.Header.Get("X-Predecessor-Account-Id"),
		Body:        body,
	})
	status, respBody := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(respBody))
}
