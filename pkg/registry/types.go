package registry

import (
	"fmt"

	"github.com/google/uuid"
)

// Entry is one row of the latest-minter registry.
type Entry struct {
	Target       string `json:"nft_contract_id"`  // Target service id (hash field)
	LatestMinter string `json:"latest_minter_id"` // Account of the last reconciled minter
}

// MintEvent describes a mint lifecycle transition. Events are published on
// the instance's mint_events channel and never stored.
type MintEvent struct {
	ReceiptID   string    `json:"receipt_id"`             // UUID - one per mint invocation
	Kind        EventKind `json:"kind"`                   // Lifecycle transition
	Target      string    `json:"nft_contract_id"`        // Target service the mint was forwarded to
	Minter      string    `json:"minter_id"`              // Caller of the mint
	Owner       string    `json:"owner_id,omitempty"`     // Beneficial owner sent to the target
	ResultCount int       `json:"result_count,omitempty"` // Results attached at reconciliation
	Reason      string    `json:"reason,omitempty"`       // Why a mint was dropped or failed
	TimestampMs int64     `json:"timestamp_ms"`           // Unix timestamp in milliseconds
}

// EventKind identifies a mint lifecycle transition.
type EventKind string

const (
	// EventKindIssued is published when the remote call has been scheduled
	EventKindIssued EventKind = "issued"

	// EventKindCommitted is published when reconciliation recorded the minter
	EventKindCommitted EventKind = "committed"

	// EventKindDropped is published when reconciliation left the registry untouched
	EventKindDropped EventKind = "dropped"

	// EventKindFailed is published when reconciliation could not run to completion
	EventKindFailed EventKind = "failed"
)

// Validate checks if the MintEvent has valid field values.
func (e *MintEvent) Validate() error {
	if _, err := uuid.Parse(e.ReceiptID); err != nil {
		return fmt.Errorf("invalid receipt ID: not a valid UUID")
	}

	if err := e.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid kind: %w", err)
	}

	if e.Target == "" {
		return fmt.Errorf("nft_contract_id cannot be empty")
	}

	if e.Minter == "" {
		return fmt.Errorf("minter_id cannot be empty")
	}

	return nil
}

// Validate checks if the EventKind is a valid enum value.
func (k EventKind) Validate() error {
	switch k {
	case EventKindIssued, EventKindCommitted, EventKindDropped, EventKindFailed:
		return nil
	default:
		return fmt.Errorf("unknown event kind: %q", k)
	}
}
