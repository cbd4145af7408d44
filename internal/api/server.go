// Package api exposes the proxy minter over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/minsta/internal/engine"
	"github.com/dyluth/minsta/internal/minter"
	"github.com/go-chi/chi/v5"
)

const maxRequestBytes = 1 << 20

// Pinger reports whether the registry backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the mint, callback, query and health endpoints.
type Server struct {
	engine       *engine.Engine
	registry     Pinger
	callerHeader string
	server       *http.Server
	listener     net.Listener
	serveErr     chan error
}

// NewServer creates a server listening on addr. The caller of every
// request is read from callerHeader, which an upstream gateway is trusted
// to set.
func NewServer(e *engine.Engine, registry Pinger, addr, callerHeader string) *Server {
	s := &Server{
		engine:       e,
		registry:     registry,
		callerHeader: callerHeader,
		serveErr:     make(chan error, 1),
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthCheckHandler)

	r.Route("/v1", func(api chi.Router) {
		api.Post("/mint", s.mintHandler)
		api.Post("/cb_mint", s.cbMintHandler)
		api.Get("/latest-minter/{target}", s.latestMinterHandler)
		api.Get("/receipts/{id}", s.receiptHandler)
	})

	return r
}

// Start binds the listen address and serves in the background. Bind
// failures are returned; a later serve failure is delivered on Err.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[API] Server error: %v", err)
			s.serveErr <- err
		}
	}()
	log.Printf("[API] Listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address once Start has succeeded, else the
// configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Err delivers the error that stopped the server outside of Shutdown.
func (s *Server) Err() <-chan error {
	return s.serveErr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// MintRequest is the body of POST /v1/mint. Metadata may be sent either as
// a JSON string holding the document or as the document itself.
type MintRequest struct {
	Metadata json.RawMessage `json:"metadata"`
	Target   string          `json:"nft_contract_id"`
}

// CallbackResponse is the body returned by POST /v1/cb_mint.
type CallbackResponse struct {
	Committed bool `json:"committed"`
}

// LatestMinterResponse is the body returned by GET /v1/latest-minter/{target}.
type LatestMinterResponse struct {
	Target       string  `json:"nft_contract_id"`
	LatestMinter *string `json:"latest_minter_id"`
}

// ErrorResponse is the body of every non-2xx response except /healthz.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) mintHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req MintRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}

	receipt, err := s.engine.Mint(r.Context(), caller, metadataText(req.Metadata), minter.ServiceID(req.Target))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		w.Header().Set("Location", "/v1/receipts/"+receipt.ID)
		writeJSON(w, http.StatusAccepted, receipt.Status())
		return
	}

	if _, err := receipt.Wait(r.Context()); err != nil && !receipt.State().IsSettled() {
		writeError(w, http.StatusGatewayTimeout, "TIMEOUT", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt.Status())
}

func (s *Server) cbMintHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var mc minter.MintContext
	if err := readJSON(w, r, &mc); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}

	committed, err := s.engine.Callback(r.Context(), caller, mc)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CallbackResponse{Committed: committed})
}

func (s *Server) latestMinterHandler(w http.ResponseWriter, r *http.Request) {
	target := minter.ServiceID(chi.URLParam(r, "target"))
	if err := minter.ValidateAccountID(target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", err.Error())
		return
	}

	latest, found, err := s.engine.LatestMinter(r.Context(), target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "REGISTRY_ERROR", err.Error())
		return
	}

	resp := LatestMinterResponse{Target: string(target)}
	if found {
		m := string(latest)
		resp.LatestMinter = &m
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) receiptHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	receipt, found := s.engine.Receipt(id)
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("receipt %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, receipt.Status())
}

// healthCheckHandler returns 200 OK if Redis is accessible, 503 Service
// Unavailable otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy", Redis: "connected"}
	if err := s.registry.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (minter.AccountID, bool) {
	caller := r.Header.Get(s.callerHeader)
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "MISSING_CALLER", fmt.Sprintf("%s header is required", s.callerHeader))
		return "", false
	}
	return minter.AccountID(caller), true
}

// metadataText unwraps a JSON string; any other JSON value is passed on as
// its raw text and left to the metadata parser to accept or reject.
func metadataText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, minter.ErrInvalidMetadata):
		writeError(w, http.StatusBadRequest, "INVALID_METADATA", err.Error())
	case errors.Is(err, minter.ErrInvalidAccountID):
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", err.Error())
	case errors.Is(err, minter.ErrPrivateCallback):
		writeError(w, http.StatusForbidden, "PRIVATE_METHOD", err.Error())
	case errors.Is(err, engine.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
