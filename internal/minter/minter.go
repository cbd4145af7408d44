// Package minter is the proxy minter contract: it forwards batch-mint
// requests to a collectible-issuing service and remembers, per service, the
// last caller whose mint was reconciled.
//
// A mint is two invocations. Mint validates the request and returns a
// Promise (the remote nft_batch_mint call chained to cb_mint on the proxy
// itself); CbMint runs later, once the remote call has settled, and commits
// the caller as latest minter. Nothing is shared between the two except the
// MintContext carried in the callback's arguments.
package minter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// Minter holds the registry and the proxy's own account id.
type Minter struct {
	store Store
	self  AccountID
}

// New creates a Minter acting as account self.
func New(store Store, self AccountID) (*Minter, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := ValidateAccountID(self); err != nil {
		return nil, fmt.Errorf("contract account: %w", err)
	}
	return &Minter{store: store, self: self}, nil
}

// Self returns the proxy's account id.
func (m *Minter) Self() AccountID {
	return m.self
}

// Mint validates metadata, resolves the beneficial owner and returns the
// nft_batch_mint call on target chained to cb_mint on the proxy.
//
// The owner is the latest reconciled minter for target, or the caller when
// none is recorded. Royalties always go entirely to the caller. On
// ErrInvalidMetadata nothing is read and no promise is returned.
func (m *Minter) Mint(ctx context.Context, env Env, metadata string, target ServiceID) (*Promise, *BatchMintArgs, error) {
	parsed, err := ParseMetadata(metadata)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateAccountID(env.Predecessor); err != nil {
		return nil, nil, fmt.Errorf("caller: %w", err)
	}
	if err := ValidateAccountID(target); err != nil {
		return nil, nil, fmt.Errorf("nft_contract_id: %w", err)
	}

	owner, err := m.beneficialOwner(ctx, target, env.Predecessor)
	if err != nil {
		return nil, nil, err
	}

	args := &BatchMintArgs{
		OwnerID:     owner,
		Metadata:    parsed,
		NumToMint:   1,
		RoyaltyArgs: NewRoyaltyArgs(env.Predecessor),
	}
	mintArgs, err := json.Marshal(args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s args: %w", MethodBatchMint, err)
	}

	cbArgs, err := json.Marshal(MintContext{LatestMinter: env.Predecessor, Target: target})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s args: %w", MethodCbMint, err)
	}

	promise := NewPromise(Call{
		Receiver: target,
		Method:   MethodBatchMint,
		Args:     mintArgs,
		Deposit:  0,
		Gas:      MintGas,
	}).Then(NewPromise(Call{
		Receiver: m.self,
		Method:   MethodCbMint,
		Args:     cbArgs,
		Deposit:  0,
		Gas:      CallbackGas,
	}))

	return promise, args, nil
}

func (m *Minter) beneficialOwner(ctx context.Context, target ServiceID, caller AccountID) (AccountID, error) {
	prev, ok, err := m.store.LatestMinter(ctx, target)
	if err != nil {
		return "", fmt.Errorf("failed to read latest minter for %s: %w", target, err)
	}
	if !ok {
		return caller, nil
	}
	return prev, nil
}

// CbMint reconciles a mint. With exactly one attached result it records
// mc.LatestMinter for mc.Target and returns true; with any other count it
// returns false and leaves the registry alone.
//
// Only the number of results is checked, not whether the remote mint
// succeeded: a single failed result still commits.
func (m *Minter) CbMint(ctx context.Context, env Env, mc MintContext) (bool, error) {
	if env.Predecessor != m.self {
		return false, ErrPrivateCallback
	}
	if err := mc.Validate(); err != nil {
		return false, err
	}

	if len(env.PromiseResults) != 1 {
		return false, nil
	}

	if res := env.PromiseResults[0]; !res.Succeeded() {
		log.Printf("[Minter] Committing %s for %s although %s reported %s: %s",
			mc.LatestMinter, mc.Target, MethodBatchMint, res.Status, res.Error)
	}

	if err := m.store.SetLatestMinter(ctx, mc.Target, mc.LatestMinter); err != nil {
		return false, fmt.Errorf("failed to record latest minter for %s: %w", mc.Target, err)
	}
	return true, nil
}

// LatestMinter returns the recorded minter for target, if any.
func (m *Minter) LatestMinter(ctx context.Context, target ServiceID) (AccountID, bool, error) {
	return m.store.LatestMinter(ctx, target)
}
