// Package registry provides the Redis-backed latest-minter registry for the
// minsta proxy minter, together with the mint event stream.
//
// # Overview
//
// The registry maps a target service (the collectible-issuing contract a
// mint was forwarded to) to the account of the most recent caller whose mint
// was reconciled. It is the only durable state of the proxy. The proxy is
// its only writer; the CLI reads it directly for inspection.
//
// Mint lifecycle transitions (issued, committed, dropped, failed) are
// published as MintEvents on a Pub/Sub channel. Events are fire-and-forget
// and are not persisted.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// that several proxies can share one Redis server without interference.
//
// # Usage Example
//
//	client, err := registry.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.SetLatestMinter(ctx, "nft.example.near", "alice.near"); err != nil {
//		log.Fatal(err)
//	}
//
//	minter, err := client.LatestMinter(ctx, "nft.example.near")
//	if registry.IsNotFound(err) {
//		// no mint reconciled yet for this service
//	}
//
// # Redis Schema
//
// Latest minters: minsta:{instance_name}:latest_minters (hash, field = target service id)
//
// Mint events: minsta:{instance_name}:mint_events (Pub/Sub channel)
//
// A single hash keeps the at-most-one-entry-per-target invariant in Redis
// itself: HSET on an existing field overwrites it.
package registry
