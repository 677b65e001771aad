package config

import "time"

// QueueConfig controls how the wave scheduler's worker pool polls, claims,
// and retries session work. Mirrors §4.5 and §5 of the spec.
type QueueConfig struct {
	// PoolSize is the number of worker goroutines in the shared pool
	// (env POOL_SIZE, default 4 — Wave-1 triple + action summary + headroom).
	PoolSize int

	// Wave1Parallelism bounds how many of {mood, topics, breakthrough} run
	// concurrently per session (default 3, i.e. unbounded within the triple).
	Wave1Parallelism int

	// PollInterval is the base interval workers sleep between claim attempts.
	PollInterval time.Duration

	// PollIntervalJitter is the ± jitter applied to PollInterval.
	PollIntervalJitter time.Duration

	// MaxConcurrentSessions caps in-flight sessions across the whole pool.
	MaxConcurrentSessions int

	// SessionTimeout bounds the wall-clock time a single session may occupy
	// a worker before its context is cancelled and it is marked failed.
	SessionTimeout time.Duration

	// HeartbeatInterval is a liveness-marker refresh interval. The worker
	// pool does not read it: no heartbeat is written.
	HeartbeatInterval time.Duration

	// OrphanThreshold is a heartbeat-age limit for orphan detection. Nothing
	// reads it: no orphan detection runs.
	OrphanThreshold time.Duration

	// OrphanScanInterval is an orphan-sweep interval. Nothing reads it: no
	// orphan sweep runs.
	OrphanScanInterval time.Duration

	// MaxRetries is the retry budget for a single atomic task attempt
	// (spec §4.5: MAX_RETRIES=3).
	MaxRetries int

	// RetryBaseDelay / RetryMaxDelay bound the exponential backoff between
	// retries (spec §4.5: base 2s, cap 30s, ±20% jitter).
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// TaskTimeout is the per-attempt wall-clock deadline before an attempt
	// is aborted and counted as failed (spec §5: 60s for every task but
	// deep_analysis).
	TaskTimeout time.Duration

	// DeepTaskTimeout overrides TaskTimeout for the deep_analysis task,
	// which the spec calls out as needing its own 300s deadline (§5).
	DeepTaskTimeout time.Duration

	// DebounceWindow is the Wave-3 per-patient coalescing window
	// (env DEBOUNCE_MS, default 1000ms).
	DebounceWindow time.Duration

	// GracefulShutdownTimeout bounds how long POST /patients/{id}/stop waits
	// for the patient's sessions to stop, and how long HTTP server shutdown
	// may take (spec §4.9: 5s). WorkerPool.Stop does not read it.
	GracefulShutdownTimeout time.Duration
}

// DefaultQueueConfig returns the built-in defaults from spec §5/§6.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		PoolSize:                4,
		Wave1Parallelism:        3,
		PollInterval:            500 * time.Millisecond,
		PollIntervalJitter:      250 * time.Millisecond,
		MaxConcurrentSessions:   4,
		SessionTimeout:          20 * time.Minute,
		HeartbeatInterval:       15 * time.Second,
		OrphanThreshold:         2 * time.Minute,
		OrphanScanInterval:      1 * time.Minute,
		MaxRetries:              3,
		RetryBaseDelay:          2 * time.Second,
		RetryMaxDelay:           30 * time.Second,
		TaskTimeout:             60 * time.Second,
		DeepTaskTimeout:         300 * time.Second,
		DebounceWindow:          1000 * time.Millisecond,
		GracefulShutdownTimeout: 5 * time.Second,
	}
}

// LoadQueueConfigFromEnv overlays environment overrides on the defaults.
func LoadQueueConfigFromEnv() (*QueueConfig, error) {
	cfg := DefaultQueueConfig()

	poolSize, err := getEnvInt("POOL_SIZE", cfg.PoolSize)
	if err != nil {
		return nil, &ValidationError{Component: "queue", Field: "POOL_SIZE", Err: err}
	}
	cfg.PoolSize = poolSize

	debounceMs, err := getEnvInt("DEBOUNCE_MS", int(cfg.DebounceWindow/time.Millisecond))
	if err != nil {
		return nil, &ValidationError{Component: "queue", Field: "DEBOUNCE_MS", Err: err}
	}
	cfg.DebounceWindow = time.Duration(debounceMs) * time.Millisecond

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency of the queue configuration.
func (c *QueueConfig) Validate() error {
	if c.PoolSize < 1 {
		return &ValidationError{Component: "queue", Field: "PoolSize", Err: ErrInvalidValue}
	}
	if c.MaxConcurrentSessions < 1 {
		return &ValidationError{Component: "queue", Field: "MaxConcurrentSessions", Err: ErrInvalidValue}
	}
	if c.MaxRetries < 0 {
		return &ValidationError{Component: "queue", Field: "MaxRetries", Err: ErrInvalidValue}
	}
	return nil
}
