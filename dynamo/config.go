package dynamo

import "time"

// Config holds configuration for the DynamoDB engine.
type Config struct {
	// TablePrefix is prepended to the bundle name to form the table name.
	// Default: "devicekv"
	TablePrefix string

	// NumShards is the number of sync partitions per store. Sync records are
	// spread across them by device ID.
	// Default: 1
	// Max: 256
	NumShards int

	// PollInterval is how often the stream poller reads the table's stream.
	// Default: 1s
	PollInterval time.Duration

	// SyncTimeout bounds a sync round; devices that have not acked by then
	// are reported as timed out.
	// Default: 30s
	SyncTimeout time.Duration

	// RequestTTL is how long sync requests and acks live before DynamoDB TTL
	// reaps them. Requests older than this are not answered.
	// Default: 1h
	RequestTTL time.Duration

	// TableWaitTimeout bounds waiting for a new table to become active.
	// Default: 2m
	TableWaitTimeout time.Duration
}

// DefaultConfig returns sensible defaults for small deployments.
func DefaultConfig() Config {
	return Config{
		TablePrefix:      "devicekv",
		NumShards:        1,
		PollInterval:     time.Second,
		SyncTimeout:      30 * time.Second,
		RequestTTL:       time.Hour,
		TableWaitTimeout: 2 * time.Minute,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	def := DefaultConfig()
	if c.TablePrefix == "" {
		c.TablePrefix = def.TablePrefix
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 256 {
		c.NumShards = 256
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = def.SyncTimeout
	}
	if c.RequestTTL <= 0 {
		c.RequestTTL = def.RequestTTL
	}
	if c.TableWaitTimeout <= 0 {
		c.TableWaitTimeout = def.TableWaitTimeout
	}
}
