package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/minsta/internal/minter"
)

// MintState is the lifecycle of one mint: pending until its callback has
// run, then committed, dropped or failed. It is never persisted.
type MintState string

const (
	// MintStatePending means the remote call is in flight or the callback has not run yet
	MintStatePending MintState = "pending"

	// MintStateCommitted means the callback recorded the caller as latest minter
	MintStateCommitted MintState = "committed"

	// MintStateDropped means the callback saw a result count other than one
	MintStateDropped MintState = "dropped"

	// MintStateFailed means the callback itself could not run to completion
	MintStateFailed MintState = "failed"
)

// IsSettled returns true for every state except pending.
func (s MintState) IsSettled() bool {
	return s != MintStatePending
}

// Receipt tracks one mint from issuance to reconciliation.
type Receipt struct {
	ID       string
	Caller   minter.AccountID
	Target   minter.ServiceID
	Owner    minter.AccountID
	IssuedAt time.Time

	mu          sync.Mutex
	state       MintState
	resultCount int
	results     []minter.PromiseResult
	reason      string
	settledAt   time.Time
	done        chan struct{}
}

func newReceipt(id string, caller minter.AccountID, target minter.ServiceID, owner minter.AccountID) *Receipt {
	return &Receipt{
		ID:       id,
		Caller:   caller,
		Target:   target,
		Owner:    owner,
		IssuedAt: time.Now(),
		state:    MintStatePending,
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (r *Receipt) State() MintState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done is closed once the receipt has settled.
func (r *Receipt) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the callback has run and returns its result: true when
// the caller was recorded as latest minter.
func (r *Receipt) Wait(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-r.done:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == MintStateFailed {
		return false, fmt.Errorf("mint %s failed: %s", r.ID, r.reason)
	}
	return r.state == MintStateCommitted, nil
}

// settle moves a pending receipt to its final state. Settling twice is an
// error: every callback fires exactly once.
func (r *Receipt) settle(state MintState, resultCount int, reason string) error {
	if !state.IsSettled() {
		return fmt.Errorf("cannot settle receipt %s into %s", r.ID, state)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IsSettled() {
		return fmt.Errorf("receipt %s already settled as %s", r.ID, r.state)
	}

	r.state = state
	r.resultCount = resultCount
	r.reason = reason
	r.settledAt = time.Now()
	close(r.done)
	return nil
}

func (r *Receipt) attachResults(results []minter.PromiseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append([]minter.PromiseResult(nil), results...)
}

// settledBefore reports whether the receipt settled before t.
func (r *Receipt) settledBefore(t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.IsSettled() && r.settledAt.Before(t)
}

// ReceiptStatus is a point-in-time copy of a Receipt, safe to serialise.
type ReceiptStatus struct {
	ID          string                 `json:"receipt_id"`
	State       MintState              `json:"state"`
	Caller      minter.AccountID       `json:"minter_id"`
	Target      minter.ServiceID       `json:"nft_contract_id"`
	Owner       minter.AccountID       `json:"owner_id"`
	Committed   bool                   `json:"committed"`
	ResultCount int                    `json:"result_count"`
	Results     []minter.PromiseResult `json:"results,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	IssuedAtMs  int64                  `json:"issued_at_ms"`
	SettledAtMs int64                  `json:"settled_at_ms,omitempty"`
}

// Status returns a snapshot of the receipt.
func (r *Receipt) Status() ReceiptStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := ReceiptStatus{
		ID:          r.ID,
		State:       r.state,
		Caller:      r.Caller,
		Target:      r.Target,
		Owner:       r.Owner,
		Committed:   r.state == MintStateCommitted,
		ResultCount: r.resultCount,
		Results:     append([]minter.PromiseResult(nil), r.results...),
		Reason:      r.reason,
		IssuedAtMs:  r.IssuedAt.UnixMilli(),
	}
	if !r.settledAt.IsZero() {
		st.SettledAtMs = r.settledAt.UnixMilli()
	}
	return st
}

// decodeCallbackValue reads the boolean a cb_mint result carries.
func decodeCallbackValue(res minter.PromiseResult) (bool, error) {
	if !res.Succeeded() {
		return false, fmt.Errorf("%s", res.Error)
	}
	var committed bool
	if err := json.Unmarshal(res.Value, &committed); err != nil {
		return false, fmt.Errorf("invalid %s result %q: %w", minter.MethodCbMint, string(res.Value), err)
	}
	return committed, nil
}
