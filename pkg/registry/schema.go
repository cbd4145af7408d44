package registry

import "fmt"

// Redis key pattern helpers
//
// Key pattern: minsta:{instance_name}:{entity}
// Channel pattern: minsta:{instance_name}:{event_type}_events

// LatestMintersKey returns the Redis key for the latest-minter hash.
// Pattern: minsta:{instance_name}:latest_minters
func LatestMintersKey(instanceName string) string {
	return fmt.Sprintf("minsta:%s:latest_minters", instanceName)
}

// MintEventsChannel returns the Pub/Sub channel name for mint lifecycle events.
// Pattern: minsta:{instance_name}:mint_events
func MintEventsChannel(instanceName string) string {
	return fmt.Sprintf("minsta:%s:mint_events", instanceName)
}
