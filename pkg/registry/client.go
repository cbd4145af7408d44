package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the registry.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new registry client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// InstanceName returns the namespace this client operates in.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// LatestMinter returns the account recorded for target.
// Returns ("", redis.Nil) if no minter has been recorded; use IsNotFound().
func (c *Client) LatestMinter(ctx context.Context, target string) (string, error) {
	minter, err := c.rdb.HGet(ctx, LatestMintersKey(c.instanceName), target).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("failed to read latest minter from Redis: %w", err)
	}
	return minter, nil
}

// SetLatestMinter records minter for target, overwriting any previous entry.
func (c *Client) SetLatestMinter(ctx context.Context, target, minter string) error {
	if target == "" {
		return fmt.Errorf("target cannot be empty")
	}
	if minter == "" {
		return fmt.Errorf("minter cannot be empty")
	}

	if err := c.rdb.HSet(ctx, LatestMintersKey(c.instanceName), target, minter).Err(); err != nil {
		return fmt.Errorf("failed to write latest minter to Redis: %w", err)
	}
	return nil
}

// ListLatestMinters returns every registry entry sorted by target.
// Returns an empty slice if nothing has been recorded (not an error).
func (c *Client) ListLatestMinters(ctx context.Context) ([]Entry, error) {
	raw, err := c.rdb.HGetAll(ctx, LatestMintersKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read latest minters from Redis: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for target, minter := range raw {
		entries = append(entries, Entry{Target: target, LatestMinter: minter})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Target < entries[j].Target
	})

	return entries, nil
}

// PublishMintEvent validates and publishes a mint event to
// minsta:{instance}:mint_events.
func (c *Client) PublishMintEvent(ctx context.Context, event *MintEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid mint event: %w", err)
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal mint event: %w", err)
	}

	channel := MintEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish mint event: %w", err)
	}

	return nil
}

// Subscription represents an active Pub/Sub subscription to mint events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *MintEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of mint events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *MintEvent {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - malformed messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeMintEvents subscribes to mint lifecycle events for this instance.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a slow subscriber may miss events.
func (c *Client) SubscribeMintEvents(ctx context.Context) (*Subscription, error) {
	channel := MintEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan *MintEvent, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event MintEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal mint event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
