package reconcile

import (
	"time"
)

// Config controls the reconcile sweep interval and claim sizes.
type Config struct {
	RunInterval    time.Duration
	StaleThreshold time.Duration
	BatchSize      int
	LockKey        string
	LockTTL        time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    time.Minute,
		StaleThreshold: 5 * time.Minute,
		BatchSize:      50,
		LockKey:        "mwukenya:reconcile:lock",
		LockTTL:        2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = defaults.StaleThreshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.LockKey == "" {
		c.LockKey = defaults.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
