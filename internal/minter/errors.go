package minter

import "errors"

var (
	// ErrInvalidMetadata aborts a mint before any state is read or any call
	// is issued. Resubmitting corrected metadata is always safe.
	ErrInvalidMetadata = errors.New("failed to parse metadata")

	// ErrInvalidAccountID is returned for unusable caller or target ids.
	ErrInvalidAccountID = errors.New("invalid account id")

	// ErrPrivateCallback is returned when cb_mint is invoked by anyone other
	// than the contract itself.
	ErrPrivateCallback = errors.New("method cb_mint is private")
)
