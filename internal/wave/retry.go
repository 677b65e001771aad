package wave

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sessionwave/orchestrator/internal/aigen"
	"github.com/sessionwave/orchestrator/internal/config"
	"github.com/sessionwave/orchestrator/internal/metrics"
	"github.com/sessionwave/orchestrator/internal/store"
)

// newBackoff builds the jittered exponential policy from spec §4.5: base
// 2s, cap 30s, ±20% jitter. Using cenkalti/backoff's ExponentialBackOff
// here (rather than a hand-rolled jitter loop) is one of the promotions
// SPEC_FULL calls out from the teacher's indirect dependency set.
func newBackoff(cfg *config.QueueConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.RetryBaseDelay
	b.MaxInterval = cfg.RetryMaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0 // this package bounds attempts by retry count, not elapsed time
	b.Reset()
	return b
}

// attemptFunc runs one generator invocation and returns its typed result.
type attemptFunc func(ctx context.Context) (any, error)

// runTask drives the retry/backoff/processing-log/event loop shared by
// every atomic task in the wave graph (spec §4.5). It opens a new
// ProcessingLogEntry per attempt, transitions the previous attempt to its
// terminal state, and emits START/COMPLETE/FAILED/STOPPED pipeline events
// in the order spec §4.7 requires (START strictly before the terminal
// event for that attempt).
func (o *Orchestrator) runTask(ctx context.Context, patientID, phase, sessionID, wave string, timeout time.Duration, fn attemptFunc) (any, error) {
	log := o.log.With("session_id", sessionID, "wave", wave)
	b := newBackoff(o.queueCfg)
	var lastErr error

	for retry := 0; retry <= o.queueCfg.MaxRetries; retry++ {
		logID, err := o.logs.LogStart(ctx, sessionID, wave, retry)
		if err != nil {
			log.Error("log wave start", "error", err, "retry", retry)
		}
		o.publisher.WaveStarted(ctx, patientID, phase, sessionID, wave)

		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		start := time.Now()
		result, attemptErr := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		durationMs := time.Since(start).Milliseconds()

		if attemptErr == nil {
			if logID != 0 {
				if err := o.logs.LogComplete(ctx, logID, durationMs); err != nil {
					log.Error("log wave complete", "error", err)
				}
			}
			metrics.TaskAttemptsTotal.WithLabelValues(wave, "completed").Inc()
			o.publisher.WaveCompleted(ctx, patientID, phase, sessionID, wave, nil)
			return result, nil
		}

		lastErr = attemptErr

		if errors.Is(ctx.Err(), context.Canceled) {
			stopCtx := context.WithoutCancel(ctx)
			if logID != 0 {
				if err := o.logs.LogStop(stopCtx, logID, durationMs); err != nil {
					log.Error("log wave stop", "error", err)
				}
			}
			metrics.TaskAttemptsTotal.WithLabelValues(wave, "stopped").Inc()
			o.publisher.WaveStopped(stopCtx, patientID, phase, sessionID, wave)
			return nil, ErrCancelled
		}

		if logID != 0 {
			if err := o.logs.LogFail(ctx, logID, durationMs, attemptErr.Error()); err != nil {
				log.Error("log wave fail", "error", err)
			}
		}
		metrics.TaskAttemptsTotal.WithLabelValues(wave, "failed").Inc()

		var genErr *aigen.Error
		parseRetried := errors.As(attemptErr, &genErr) && genErr.Kind == aigen.KindParse && retry >= 1
		if !aigen.Retryable(attemptErr) || parseRetried || retry == o.queueCfg.MaxRetries {
			o.publisher.WaveFailed(ctx, patientID, phase, sessionID, wave, attemptErr.Error())
			return nil, lastErr
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			o.publisher.WaveFailed(ctx, patientID, phase, sessionID, wave, attemptErr.Error())
			return nil, lastErr
		}
		metrics.TaskRetriesTotal.WithLabelValues(wave).Inc()
		log.Warn("wave attempt failed, retrying", "error", attemptErr, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// taskTimeout returns the per-attempt wall-clock deadline for a wave
// (spec §5: deep_analysis gets its own 300s budget, every other task uses
// the shared TaskTimeout).
func (o *Orchestrator) taskTimeout(wave string) time.Duration {
	if wave == store.WaveDeep {
		return o.queueCfg.DeepTaskTimeout
	}
	return o.queueCfg.TaskTimeout
}
