// Package engine runs the proxy minter: it invokes the contract's entry
// points one at a time, executes the promises Mint returns, and dispatches
// the cb_mint continuation once the remote call has settled.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/minsta/internal/minter"
	"github.com/dyluth/minsta/pkg/registry"
	"github.com/google/uuid"
)

var (
	// ErrShuttingDown is returned for mints submitted after Run has stopped.
	ErrShuttingDown = errors.New("engine is shutting down")

	// ErrUnknownMethod is the failure recorded for a self-call the contract
	// does not expose.
	ErrUnknownMethod = errors.New("unknown method")
)

const defaultReceiptRetention = 10 * time.Minute

// Transport executes calls addressed to other accounts.
type Transport interface {
	Execute(ctx context.Context, call minter.Call) minter.PromiseResult
}

// EventPublisher receives mint lifecycle events. Publishing is best effort.
type EventPublisher interface {
	PublishMintEvent(ctx context.Context, event *registry.MintEvent) error
}

// Options tune an Engine. Zero values select defaults.
type Options struct {
	InstanceName     string
	CallbackTimeout  time.Duration
	ReceiptRetention time.Duration
}

// Engine is the execution environment of one proxy minter contract.
type Engine struct {
	minter       *minter.Minter
	transport    Transport
	events       EventPublisher
	instanceName string

	callbackTimeout  time.Duration
	receiptRetention time.Duration

	// invokeMu serialises entry points: each runs to completion before the
	// next one starts.
	invokeMu sync.Mutex

	mu       sync.RWMutex
	receipts map[string]*Receipt
	closing  bool
	inflight sync.WaitGroup
}

// NewEngine creates an engine for m. events may be nil.
func NewEngine(m *minter.Minter, transport Transport, events EventPublisher, opts Options) *Engine {
	if opts.InstanceName == "" {
		opts.InstanceName = "default"
	}
	if opts.CallbackTimeout <= 0 {
		opts.CallbackTimeout = 10 * time.Second
	}
	if opts.ReceiptRetention <= 0 {
		opts.ReceiptRetention = defaultReceiptRetention
	}

	return &Engine{
		minter:           m,
		transport:        transport,
		events:           events,
		instanceName:     opts.InstanceName,
		callbackTimeout:  opts.CallbackTimeout,
		receiptRetention: opts.ReceiptRetention,
		receipts:         make(map[string]*Receipt),
	}
}

// Run blocks until ctx is cancelled, then stops accepting mints and waits
// for every in-flight promise to reach its callback.
func (e *Engine) Run(ctx context.Context) error {
	log.Printf("[Engine] Starting for contract '%s' (instance '%s')", e.minter.Self(), e.instanceName)

	<-ctx.Done()

	e.mu.Lock()
	e.closing = true
	pending := 0
	for _, r := range e.receipts {
		if !r.State().IsSettled() {
			pending++
		}
	}
	e.mu.Unlock()

	log.Printf("[Engine] Shutting down, waiting for %d in-flight mints...", pending)
	e.inflight.Wait()
	log.Printf("[Engine] Stopped")

	return nil
}

// Mint invokes the contract's mint entry point for caller and schedules the
// returned promise. The remote call and the callback run in the background;
// use Receipt.Wait for the callback's result.
func (e *Engine) Mint(ctx context.Context, caller minter.AccountID, metadata string, target minter.ServiceID) (*Receipt, error) {
	e.mu.RLock()
	closing := e.closing
	e.mu.RUnlock()
	if closing {
		return nil, ErrShuttingDown
	}

	e.invokeMu.Lock()
	promise, args, err := e.minter.Mint(ctx, minter.Env{
		Predecessor: caller,
		Current:     e.minter.Self(),
	}, metadata, target)
	e.invokeMu.Unlock()

	if err != nil {
		e.logEvent("mint_rejected", map[string]interface{}{
			"minter_id":       string(caller),
			"nft_contract_id": string(target),
			"error":           err.Error(),
		})
		return nil, err
	}

	receipt := newReceipt(uuid.New().String(), caller, target, args.OwnerID)

	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return nil, ErrShuttingDown
	}
	e.pruneReceiptsLocked()
	e.receipts[receipt.ID] = receipt
	e.inflight.Add(1)
	e.mu.Unlock()

	e.logEvent("mint_issued", map[string]interface{}{
		"receipt_id":      receipt.ID,
		"minter_id":       string(caller),
		"owner_id":        string(args.OwnerID),
		"nft_contract_id": string(target),
	})
	e.publish(ctx, receipt, registry.EventKindIssued, 0, "")

	// The promise outlives the request that issued it.
	go e.execute(context.WithoutCancel(ctx), receipt, promise)

	return receipt, nil
}

// Callback is the external boundary of cb_mint. Only the contract itself
// may call it; an external invocation carries no promise results.
func (e *Engine) Callback(ctx context.Context, predecessor minter.AccountID, mc minter.MintContext) (bool, error) {
	if predecessor != e.minter.Self() {
		e.logEvent("callback_rejected", map[string]interface{}{
			"predecessor":     string(predecessor),
			"nft_contract_id": string(mc.Target),
		})
		return false, minter.ErrPrivateCallback
	}

	return e.invokeCbMint(ctx, minter.Env{
		Predecessor: predecessor,
		Current:     e.minter.Self(),
	}, mc)
}

// LatestMinter is the read-only registry query.
func (e *Engine) LatestMinter(ctx context.Context, target minter.ServiceID) (minter.AccountID, bool, error) {
	return e.minter.LatestMinter(ctx, target)
}

// Receipt returns a tracked receipt by id.
func (e *Engine) Receipt(id string) (*Receipt, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.receipts[id]
	return r, ok
}

// Self returns the contract account the engine runs.
func (e *Engine) Self() minter.AccountID {
	return e.minter.Self()
}

func (e *Engine) invokeCbMint(ctx context.Context, env minter.Env, mc minter.MintContext) (bool, error) {
	e.invokeMu.Lock()
	defer e.invokeMu.Unlock()
	return e.minter.CbMint(ctx, env, mc)
}

// execute runs the promise stage by stage and settles the receipt from the
// outcome of the final stage, which is the cb_mint continuation.
func (e *Engine) execute(ctx context.Context, receipt *Receipt, promise *minter.Promise) {
	defer e.inflight.Done()

	var attached []minter.PromiseResult
	resultCount := 0
	for _, stage := range promise.Stages() {
		for _, call := range stage {
			if call.Receiver == e.minter.Self() {
				resultCount = len(attached)
			}
		}
		if len(attached) > 0 {
			receipt.attachResults(attached)
		}
		attached = e.runStage(ctx, stage, attached)
	}

	state, reason := MintStateFailed, "promise produced no callback result"
	if len(attached) == 1 {
		committed, err := decodeCallbackValue(attached[0])
		switch {
		case err != nil:
			state, reason = MintStateFailed, err.Error()
		case committed:
			state, reason = MintStateCommitted, ""
		default:
			state, reason = MintStateDropped, fmt.Sprintf("%d results attached to %s", resultCount, minter.MethodCbMint)
		}
	}

	if err := receipt.settle(state, resultCount, reason); err != nil {
		log.Printf("[Engine] Error settling receipt %s: %v", receipt.ID, err)
		return
	}

	e.logEvent("mint_"+string(state), map[string]interface{}{
		"receipt_id":      receipt.ID,
		"minter_id":       string(receipt.Caller),
		"nft_contract_id": string(receipt.Target),
		"result_count":    resultCount,
		"reason":          reason,
		"latency_ms":      time.Since(receipt.IssuedAt).Milliseconds(),
	})

	var kind registry.EventKind
	switch state {
	case MintStateCommitted:
		kind = registry.EventKindCommitted
	case MintStateDropped:
		kind = registry.EventKindDropped
	default:
		kind = registry.EventKindFailed
	}
	e.publish(ctx, receipt, kind, resultCount, reason)
}

// runStage executes the calls of one stage concurrently. Every call sees
// the results of the previous stage; the returned results keep call order.
func (e *Engine) runStage(ctx context.Context, stage []minter.Call, attached []minter.PromiseResult) []minter.PromiseResult {
	results := make([]minter.PromiseResult, len(stage))

	var wg sync.WaitGroup
	for i, call := range stage {
		wg.Add(1)
		go func(i int, call minter.Call) {
			defer wg.Done()
			if call.Receiver == e.minter.Self() {
				results[i] = e.dispatch(ctx, call, attached)
				return
			}
			results[i] = e.transport.Execute(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

// dispatch runs a call the contract addressed to itself.
func (e *Engine) dispatch(ctx context.Context, call minter.Call, attached []minter.PromiseResult) minter.PromiseResult {
	switch call.Method {
	case minter.MethodCbMint:
		var mc minter.MintContext
		if err := json.Unmarshal(call.Args, &mc); err != nil {
			return failedResult(fmt.Errorf("invalid %s args: %w", call.Method, err))
		}

		cbCtx, cancel := context.WithTimeout(ctx, e.callbackTimeout)
		defer cancel()

		committed, err := e.invokeCbMint(cbCtx, minter.Env{
			Predecessor:    e.minter.Self(),
			Current:        e.minter.Self(),
			PromiseResults: attached,
		}, mc)
		if err != nil {
			return failedResult(err)
		}

		value, _ := json.Marshal(committed)
		return minter.PromiseResult{Status: minter.ResultSuccessful, Value: value}

	default:
		return failedResult(fmt.Errorf("%w: %s", ErrUnknownMethod, call.Method))
	}
}

func failedResult(err error) minter.PromiseResult {
	return minter.PromiseResult{Status: minter.ResultFailed, Error: err.Error()}
}

// pruneReceiptsLocked forgets receipts that settled more than the retention
// period ago. Caller must hold e.mu.
func (e *Engine) pruneReceiptsLocked() {
	cutoff := time.Now().Add(-e.receiptRetention)
	for id, r := range e.receipts {
		if r.settledBefore(cutoff) {
			delete(e.receipts, id)
		}
	}
}

func (e *Engine) publish(ctx context.Context, r *Receipt, kind registry.EventKind, resultCount int, reason string) {
	if e.events == nil {
		return
	}

	event := &registry.MintEvent{
		ReceiptID:   r.ID,
		Kind:        kind,
		Target:      string(r.Target),
		Minter:      string(r.Caller),
		Owner:       string(r.Owner),
		ResultCount: resultCount,
		Reason:      reason,
		TimestampMs: time.Now().UnixMilli(),
	}
	if err := e.events.PublishMintEvent(ctx, event); err != nil {
		log.Printf("[Engine] Failed to publish %s event for receipt %s: %v", kind, r.ID, err)
	}
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "engine"
	data["event_type"] = eventType
	data["instance"] = e.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Engine] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
