package minter

import (
	"context"
	"fmt"
	"regexp"
)

// AccountID identifies an account in the execution environment (a caller,
// the proxy contract itself, or a credited owner).
type AccountID string

// ServiceID identifies a remote collectible-issuing service. It is an
// account of its own, so it follows the same validation rules.
type ServiceID = AccountID

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
)

// accountIDPattern is the account grammar: dot-separated parts of lowercase
// alphanumerics, each part possibly joined by single '-' or '_'.
var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

// ValidateAccountID rejects identifiers that can never address an account.
// Targets are substituted into outbound URLs, so nothing outside the grammar
// may pass.
func ValidateAccountID(id AccountID) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAccountID)
	}
	if len(id) < minAccountIDLen || len(id) > maxAccountIDLen {
		return fmt.Errorf("%w: %q must be %d to %d characters", ErrInvalidAccountID, id, minAccountIDLen, maxAccountIDLen)
	}
	if !accountIDPattern.MatchString(string(id)) {
		return fmt.Errorf("%w: %q is not a valid account id", ErrInvalidAccountID, id)
	}
	return nil
}

// Store is the latest-minter registry: at most one account per target
// service. The proxy is its only writer.
type Store interface {
	// LatestMinter returns the recorded minter for target, or ok=false when
	// none has been recorded.
	LatestMinter(ctx context.Context, target ServiceID) (minter AccountID, ok bool, err error)

	// SetLatestMinter overwrites the entry for target.
	SetLatestMinter(ctx context.Context, target ServiceID, minter AccountID) error
}

// Env is what the execution environment hands to every entry point.
type Env struct {
	Predecessor    AccountID       // immediate caller of this entry point
	Current        AccountID       // the proxy contract's own account
	PromiseResults []PromiseResult // results attached to a continuation
}

// MintContext is the in-flight state a mint carries across the asynchronous
// boundary. It travels as the callback's arguments and is never stored.
type MintContext struct {
	LatestMinter AccountID `json:"latest_minter_id"`
	Target       ServiceID `json:"nft_contract_id"`
}

// Validate checks both identifiers.
func (mc MintContext) Validate() error {
	if err := ValidateAccountID(mc.LatestMinter); err != nil {
		return fmt.Errorf("latest_minter_id: %w", err)
	}
	if err := ValidateAccountID(mc.Target); err != nil {
		return fmt.Errorf("nft_contract_id: %w", err)
	}
	return nil
}

// Royalty policy, in basis points.
const (
	BasisPointsDenominator       uint32 = 10000
	FullShareBasisPoints         uint32 = 10000
	RoyaltyPercentageBasisPoints uint32 = 1000
)

// RoyaltyArgs splits a royalty pool between accounts and sets the overall
// royalty applied to secondary sales.
type RoyaltyArgs struct {
	SplitBetween map[AccountID]uint32 `json:"split_between"`
	Percentage   uint32               `json:"percentage"`
}

// NewRoyaltyArgs attributes the whole pool to caller at the fixed 10% rate.
func NewRoyaltyArgs(caller AccountID) RoyaltyArgs {
	return RoyaltyArgs{
		SplitBetween: map[AccountID]uint32{caller: FullShareBasisPoints},
		Percentage:   RoyaltyPercentageBasisPoints,
	}
}

// BatchMintArgs is the payload of the remote nft_batch_mint call.
type BatchMintArgs struct {
	OwnerID     AccountID            `json:"owner_id"`
	Metadata    *Metadata            `json:"metadata"`
	NumToMint   uint32               `json:"num_to_mint"`
	RoyaltyArgs RoyaltyArgs          `json:"royalty_args"`
	SplitOwners map[AccountID]uint32 `json:"split_owners"` // always null
}
