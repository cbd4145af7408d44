package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMintEventValidate(t *testing.T) {
	valid := func() *MintEvent {
		return &MintEvent{
			ReceiptID: uuid.New().String(),
			Kind:      EventKindIssued,
			Target:    "svc.a",
			Minter:    "alice",
		}
	}

	tests := []struct {
		name    string
		mutate  func(e *MintEvent)
		wantErr string
	}{
		{name: "valid event", mutate: func(e *MintEvent) {}},
		{name: "bad receipt id", mutate: func(e *MintEvent) { e.ReceiptID = "abc" }, wantErr: "invalid receipt ID"},
		{name: "unknown kind", mutate: func(e *MintEvent) { e.Kind = "exploded" }, wantErr: "unknown event kind"},
		{name: "missing target", mutate: func(e *MintEvent) { e.Target = "" }, wantErr: "nft_contract_id cannot be empty"},
		{name: "missing minter", mutate: func(e *MintEvent) { e.Minter = "" }, wantErr: "minter_id cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchemaKeys(t *testing.T) {
	assert.Equal(t, "minsta:prod:latest_minters", LatestMintersKey("prod"))
	assert.Equal(t, "minsta:prod:mint_events", MintEventsChannel("prod"))
}
