package config

import "time"

// EventsConfig tunes the durable event bus and its SSE fan-out (C7).
type EventsConfig struct {
	// PollInterval is how often the SSE handler polls the pipeline_events
	// table for rows past its since_id watermark (spec §4.7: 250ms-1s).
	PollInterval time.Duration

	// KeepAliveInterval is how often an idle SSE connection gets a comment
	// frame to stop intermediaries from closing it (env SSE_KEEPALIVE_SECONDS).
	KeepAliveInterval time.Duration

	// SweepInterval is how often the background sweeper deletes expired
	// pipeline_events rows.
	SweepInterval time.Duration

	// SweepTTL is how long a pipeline_events row is retained before the
	// sweeper deletes it (env EVENT_SWEEP_TTL_HOURS).
	SweepTTL time.Duration
}

// DefaultEventsConfig returns the spec §4.7/§6 defaults.
func DefaultEventsConfig() *EventsConfig {
	return &EventsConfig{
		PollInterval:      500 * time.Millisecond,
		KeepAliveInterval: 5 * time.Second,
		SweepInterval:     10 * time.Minute,
		SweepTTL:          24 * time.Hour,
	}
}

// LoadEventsConfigFromEnv overlays SSE_KEEPALIVE_SECONDS and
// EVENT_SWEEP_TTL_HOURS on the defaults.
func LoadEventsConfigFromEnv() (*EventsConfig, error) {
	cfg := DefaultEventsConfig()

	keepAliveSecs, err := getEnvInt("SSE_KEEPALIVE_SECONDS", int(cfg.KeepAliveInterval/time.Second))
	if err != nil {
		return nil, &ValidationError{Component: "events", Field: "SSE_KEEPALIVE_SECONDS", Err: err}
	}
	cfg.KeepAliveInterval = time.Duration(keepAliveSecs) * time.Second

	sweepTTLHours, err := getEnvInt("EVENT_SWEEP_TTL_HOURS", int(cfg.SweepTTL/time.Hour))
	if err != nil {
		return nil, &ValidationError{Component: "events", Field: "EVENT_SWEEP_TTL_HOURS", Err: err}
	}
	cfg.SweepTTL = time.Duration(sweepTTLHours) * time.Hour

	if cfg.KeepAliveInterval < 0 {
		return nil, &ValidationError{Component: "events", Field: "SSE_KEEPALIVE_SECONDS", Err: ErrInvalidValue}
	}
	if cfg.SweepTTL < 0 {
		return nil, &ValidationError{Component: "events", Field: "EVENT_SWEEP_TTL_HOURS", Err: ErrInvalidValue}
	}
	return cfg, nil
}
