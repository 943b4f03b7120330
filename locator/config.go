package locator

import (
	"time"

	"encore.dev/config"

	"encore.app/locator/resolution"
)

// Config is loaded from config.cue.
type Config struct {
	BinWidthMinutes        int
	MaxDeviceWaitMinutes   int
	WorkflowTimeoutMinutes int
	RequeueDelaySeconds    int
	QueueRetentionMinutes  int
	ResolvedTTLHours       int
	UnresolvedTTLHours     int

	// CacheBackend is "postgres" or "redis".
	CacheBackend string
	// QueueBackend is "pubsub" or "postgres".
	QueueBackend string
	// Orchestrator is "temporal" or "local".
	Orchestrator string

	TemporalHostPort  string
	TemporalNamespace string

	APIBaseURL           string
	APIRequestsPerSecond int

	L1CacheEnabled   bool
	L1CacheMaxSizeMB int
}

var cfg = config.Load[*Config]()

// engineConfig converts the loaded values; zeros fall back to the engine defaults.
func (c *Config) engineConfig() resolution.Config {
	return resolution.Config{
		BinWidth:        time.Duration(c.BinWidthMinutes) * time.Minute,
		MaxWait:         time.Duration(c.MaxDeviceWaitMinutes) * time.Minute,
		WorkflowTimeout: time.Duration(c.WorkflowTimeoutMinutes) * time.Minute,
		ResolvedTTL:     time.Duration(c.ResolvedTTLHours) * time.Hour,
		UnresolvedTTL:   time.Duration(c.UnresolvedTTLHours) * time.Hour,
	}.WithDefaults()
}

func (c *Config) requeueDelay() time.Duration {
	if c.RequeueDelaySeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.RequeueDelaySeconds) * time.Second
}

func (c *Config) queueRetention() time.Duration {
	if c.QueueRetentionMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.QueueRetentionMinutes) * time.Minute
}
