package listing

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/minsta/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("default")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatDefault, f)

	f, err = ParseOutputFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSONL, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestFormatTable(t *testing.T) {
	t.Run("empty registry", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := FormatTable(&buf, nil, "prod")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, "No minters recorded for instance 'prod'\n", buf.String())
	})

	t.Run("entries", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := FormatTable(&buf, []registry.Entry{
			{Target: "svc.a", LatestMinter: "alice"},
			{Target: "svc.b", LatestMinter: "bob"},
		}, "prod")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		out := buf.String()
		assert.Contains(t, out, "Latest minters for instance 'prod'")
		assert.Contains(t, out, "svc.a")
		assert.Contains(t, out, "alice")
		assert.Contains(t, out, "svc.b")
		assert.Contains(t, out, "bob")
		assert.Contains(t, out, "2 contracts found")
	})

	t.Run("singular count", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := FormatTable(&buf, []registry.Entry{{Target: "svc.a", LatestMinter: "alice"}}, "prod")
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "1 contract found")
	})
}

func TestFormatJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, []registry.Entry{
		{Target: "svc.a", LatestMinter: "alice"},
		{Target: "svc.b", LatestMinter: "bob"},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"nft_contract_id":"svc.a","latest_minter_id":"alice"}`, lines[0])
	assert.JSONEq(t, `{"nft_contract_id":"svc.b","latest_minter_id":"bob"}`, lines[1])
}

func TestFormatEvent(t *testing.T) {
	ev := &registry.MintEvent{
		ReceiptID:   "0b4c6c1e-4a53-4b0e-9a4e-7c1a3c1f2d11",
		Kind:        registry.EventKindDropped,
		Target:      "svc.a",
		Minter:      "bob",
		Owner:       "alice",
		ResultCount: 2,
		Reason:      "2 results attached to cb_mint",
		TimestampMs: time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local).UnixMilli(),
	}

	t.Run("default", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatEvent(&buf, ev, OutputFormatDefault))

		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "[12:00:00] - dropped"))
		assert.Contains(t, out, "minter=bob owner=alice receipt=0b4c6c1e")
		assert.Contains(t, out, `reason="2 results attached to cb_mint"`)
	})

	t.Run("jsonl", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatEvent(&buf, ev, OutputFormatJSONL))

		var decoded registry.MintEvent
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, *ev, decoded)
	})
}
