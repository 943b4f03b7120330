package resolution

import (
	"time"

	"encore.app/locator/binning"
)

// Config tunes the engine. Zero values fall back to the defaults below.
type Config struct {
	// BinWidth groups requests into one cache key. Default: 1h
	BinWidth time.Duration
	// MaxWait is the device wait budget, measured from enqueue. Default: 10m
	MaxWait time.Duration
	// WorkflowTimeout bounds one resolution execution. Default: 5m
	WorkflowTimeout time.Duration
	// ResolvedTTL keeps answers. Default: 24h
	ResolvedTTL time.Duration
	// UnresolvedTTL keeps "no data" markers. Default: 1h
	UnresolvedTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.BinWidth <= 0 {
		c.BinWidth = binning.DefaultWidth
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 10 * time.Minute
	}
	if c.WorkflowTimeout <= 0 {
		c.WorkflowTimeout = 5 * time.Minute
	}
	if c.ResolvedTTL <= 0 {
		c.ResolvedTTL = 24 * time.Hour
	}
	if c.UnresolvedTTL <= 0 {
		c.UnresolvedTTL = time.Hour
	}
}

// WithDefaults returns c with every zero value replaced by its default.
func (c Config) WithDefaults() Config {
	c.applyDefaults()
	return c
}
