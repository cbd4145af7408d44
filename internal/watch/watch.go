// Package watch follows the registry: it polls for an expected latest
// minter and streams mint lifecycle events.
package watch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/minsta/internal/filter"
	"github.com/dyluth/minsta/internal/listing"
	"github.com/dyluth/minsta/pkg/registry"
)

const pollInterval = 200 * time.Millisecond

// PollForLatestMinter polls until target maps to expected in the registry.
// Returns the last observed minter, or an error if the timeout elapses.
func PollForLatestMinter(ctx context.Context, client *registry.Client, target, expected string, timeout time.Duration) (string, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)
	observed := ""

	for {
		select {
		case <-ctx.Done():
			return observed, ctx.Err()

		case <-timeoutCh:
			if observed == "" {
				return "", fmt.Errorf("timeout waiting for %s to record a minter after %v", target, timeout)
			}
			return observed, fmt.Errorf("timeout waiting for %s to record %s after %v (latest: %s)", target, expected, timeout, observed)

		case <-ticker.C:
			minter, err := client.LatestMinter(ctx, target)
			if err != nil {
				if registry.IsNotFound(err) {
					continue
				}
				return observed, fmt.Errorf("failed to query latest minter: %w", err)
			}
			observed = minter
			if minter == expected {
				return minter, nil
			}
		}
	}
}

// StreamEvents writes the mint events published for the client's instance
// that pass criteria (nil keeps all) to w until ctx is cancelled.
// Subscription errors are reported to errOut and do not stop the stream.
func StreamEvents(ctx context.Context, client *registry.Client, criteria *filter.Criteria, w, errOut io.Writer, format listing.OutputFormat) error {
	sub, err := client.SubscribeMintEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to mint events: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if criteria != nil && !criteria.MatchesEvent(ev) {
				continue
			}
			if err := listing.FormatEvent(w, ev, format); err != nil {
				return err
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "warning: %v\n", err)
		}
	}
}
