package filter

import (
	"testing"

	"github.com/dyluth/minsta/pkg/registry"
	"github.com/stretchr/testify/assert"
)

func TestCriteria_MatchesEntry(t *testing.T) {
	entry := registry.Entry{Target: "nft.paras.near", LatestMinter: "alice"}

	tests := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{"no criteria", Criteria{}, true},
		{"glob match", Criteria{TargetGlob: "*.paras.near"}, true},
		{"glob miss", Criteria{TargetGlob: "*.mintbase.near"}, false},
		{"minter match", Criteria{Minter: "alice"}, true},
		{"minter miss", Criteria{Minter: "bob"}, false},
		{"both must match", Criteria{TargetGlob: "nft.*", Minter: "bob"}, false},
		{"malformed glob never matches", Criteria{TargetGlob: "["}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.MatchesEntry(entry))
		})
	}
}

func TestCriteria_MatchesEvent(t *testing.T) {
	ev := &registry.MintEvent{Kind: registry.EventKindDropped, Target: "svc.a", Minter: "bob"}

	assert.True(t, (&Criteria{}).MatchesEvent(ev))
	assert.True(t, (&Criteria{Kinds: []registry.EventKind{registry.EventKindCommitted, registry.EventKindDropped}}).MatchesEvent(ev))
	assert.False(t, (&Criteria{Kinds: []registry.EventKind{registry.EventKindCommitted}}).MatchesEvent(ev))
	assert.False(t, (&Criteria{Minter: "alice"}).MatchesEvent(ev))
	assert.False(t, (&Criteria{TargetGlob: "svc.b"}).MatchesEvent(ev))
}

func TestCriteria_Entries(t *testing.T) {
	c := &Criteria{TargetGlob: "svc.*"}
	kept := c.Entries([]registry.Entry{
		{Target: "svc.a", LatestMinter: "alice"},
		{Target: "other", LatestMinter: "bob"},
		{Target: "svc.b", LatestMinter: "carol"},
	})
	assert.Equal(t, []registry.Entry{
		{Target: "svc.a", LatestMinter: "alice"},
		{Target: "svc.b", LatestMinter: "carol"},
	}, kept)

	assert.Empty(t, c.Entries(nil))
}

func TestCriteria_Validate(t *testing.T) {
	assert.NoError(t, (&Criteria{TargetGlob: "*.near", Kinds: []registry.EventKind{registry.EventKindIssued}}).Validate())
	assert.Error(t, (&Criteria{TargetGlob: "["}).Validate())
	assert.Error(t, (&Criteria{Kinds: []registry.EventKind{"burned"}}).Validate())
}
