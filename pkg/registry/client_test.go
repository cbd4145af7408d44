package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestLatestMinter(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns redis.Nil for unknown target", func(t *testing.T) {
		minter, err := client.LatestMinter(ctx, "svc.unknown")
		assert.Empty(t, minter)
		assert.True(t, IsNotFound(err))
	})

	t.Run("returns recorded minter", func(t *testing.T) {
		require.NoError(t, client.SetLatestMinter(ctx, "svc.a", "alice"))

		minter, err := client.LatestMinter(ctx, "svc.a")
		require.NoError(t, err)
		assert.Equal(t, "alice", minter)
		assert.Equal(t, "alice", mr.HGet(LatestMintersKey("test-instance"), "svc.a"))
	})

	t.Run("overwrites previous entry", func(t *testing.T) {
		require.NoError(t, client.SetLatestMinter(ctx, "svc.b", "alice"))
		require.NoError(t, client.SetLatestMinter(ctx, "svc.b", "bob"))

		minter, err := client.LatestMinter(ctx, "svc.b")
		require.NoError(t, err)
		assert.Equal(t, "bob", minter)

		fields, err := mr.HKeys(LatestMintersKey("test-instance"))
		require.NoError(t, err)
		count := 0
		for _, f := range fields {
			if f == "svc.b" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("rejects empty arguments", func(t *testing.T) {
		assert.Error(t, client.SetLatestMinter(ctx, "", "alice"))
		assert.Error(t, client.SetLatestMinter(ctx, "svc.a", ""))
	})
}

func TestListLatestMinters(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	entries, err := client.ListLatestMinters(ctx)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	require.NoError(t, client.SetLatestMinter(ctx, "svc.c", "carol"))
	require.NoError(t, client.SetLatestMinter(ctx, "svc.a", "alice"))

	entries, err = client.ListLatestMinters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Target: "svc.a", LatestMinter: "alice"},
		{Target: "svc.c", LatestMinter: "carol"},
	}, entries)
}

func TestInstanceNamespacing(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	one, err := NewClient(&redis.Options{Addr: mr.Addr()}, "one")
	require.NoError(t, err)
	defer one.Close()
	two, err := NewClient(&redis.Options{Addr: mr.Addr()}, "two")
	require.NoError(t, err)
	defer two.Close()

	ctx := context.Background()
	require.NoError(t, one.SetLatestMinter(ctx, "svc.a", "alice"))

	_, err = two.LatestMinter(ctx, "svc.a")
	assert.True(t, IsNotFound(err))
}

func TestPublishAndSubscribeMintEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeMintEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	event := &MintEvent{
		ReceiptID:   uuid.New().String(),
		Kind:        EventKindCommitted,
		Target:      "svc.a",
		Minter:      "alice",
		ResultCount: 1,
		TimestampMs: time.Now().UnixMilli(),
	}
	require.NoError(t, client.PublishMintEvent(ctx, event))

	select {
	case received := <-sub.Events():
		assert.Equal(t, event.ReceiptID, received.ReceiptID)
		assert.Equal(t, EventKindCommitted, received.Kind)
		assert.Equal(t, "svc.a", received.Target)
		assert.Equal(t, 1, received.ResultCount)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for mint event")
	}

	t.Run("rejects invalid event", func(t *testing.T) {
		err := client.PublishMintEvent(ctx, &MintEvent{ReceiptID: "nope", Kind: EventKindIssued})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid mint event")
	})
}

func TestSubscriptionErrorChannel(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeMintEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	mr.Publish(MintEventsChannel("test-instance"), "not json")

	select {
	case err := <-sub.Errors():
		assert.Contains(t, err.Error(), "failed to unmarshal mint event")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for subscription error")
	}

	// Close is idempotent
	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(redis.Nil))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(context.Canceled))
}
