// Package filter selects registry entries and mint events for the CLI.
package filter

import (
	"path/filepath"

	"github.com/dyluth/minsta/pkg/registry"
)

// Criteria are ANDed together. Zero values match everything.
type Criteria struct {
	TargetGlob string               // Glob on nft_contract_id, e.g. "*.paras.near"
	Minter     string               // Exact match on the minter account
	Kinds      []registry.EventKind // Event kinds to keep; events only
}

// Validate rejects a malformed glob or an unknown event kind.
func (c *Criteria) Validate() error {
	if c.TargetGlob != "" {
		if _, err := filepath.Match(c.TargetGlob, ""); err != nil {
			return err
		}
	}
	for _, k := range c.Kinds {
		if err := k.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MatchesEntry reports whether a registry entry passes the criteria.
func (c *Criteria) MatchesEntry(e registry.Entry) bool {
	return c.matchTarget(e.Target) && (c.Minter == "" || e.LatestMinter == c.Minter)
}

// MatchesEvent reports whether a mint event passes the criteria.
func (c *Criteria) MatchesEvent(ev *registry.MintEvent) bool {
	if !c.matchTarget(ev.Target) || (c.Minter != "" && ev.Minter != c.Minter) {
		return false
	}
	if len(c.Kinds) == 0 {
		return true
	}
	for _, k := range c.Kinds {
		if ev.Kind == k {
			return true
		}
	}
	return false
}

// Entries returns the entries that pass the criteria, in order.
func (c *Criteria) Entries(entries []registry.Entry) []registry.Entry {
	kept := make([]registry.Entry, 0, len(entries))
	for _, e := range entries {
		if c.MatchesEntry(e) {
			kept = append(kept, e)
		}
	}
	return kept
}

func (c *Criteria) matchTarget(target string) bool {
	if c.TargetGlob == "" {
		return true
	}
	matched, err := filepath.Match(c.TargetGlob, target)
	return err == nil && matched
}
