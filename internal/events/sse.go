package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sessionwave/orchestrator/internal/store"
)

// SSEHandler streams PipelineEvent rows to a single patient's subscribers
// by polling the shared store (spec §4.7): in-process queues cannot cross
// the process boundary between the HTTP server and any child-process
// scheduler invocation, so the durable table is the only source of truth.
type SSEHandler struct {
	events       *store.EventRepo
	log          *slog.Logger
	pollInterval time.Duration
	keepAlive    time.Duration
}

func NewSSEHandler(events *store.EventRepo, log *slog.Logger, pollInterval, keepAlive time.Duration) *SSEHandler {
	return &SSEHandler{events: events, log: log, pollInterval: pollInterval, keepAlive: keepAlive}
}

// Stream writes SSE frames for patientID starting after sinceID until the
// request context is cancelled (client disconnect), per spec §4.7.
func (h *SSEHandler) Stream(ctx context.Context, w http.ResponseWriter, patientID string, sinceID int64) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("sse: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	pollTicker := time.NewTicker(h.pollInterval)
	defer pollTicker.Stop()
	keepAliveTicker := time.NewTicker(h.keepAlive)
	defer keepAliveTicker.Stop()

	watermark := sinceID
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keep-alive\n\n"); err != nil {
				return err
			}
			flusher.Flush()
		case <-pollTicker.C:
			newWatermark, err := h.emitNew(ctx, w, flusher, patientID, watermark)
			if err != nil {
				return err
			}
			watermark = newWatermark
		}
	}
}

func (h *SSEHandler) emitNew(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, patientID string, watermark int64) (int64, error) {
	const batchLimit = 200
	evts, err := h.events.ListSince(ctx, patientID, watermark, batchLimit)
	if err != nil {
		h.log.Error("sse poll", "error", err, "patient_id", patientID)
		return watermark, nil
	}
	if len(evts) == 0 {
		return watermark, nil
	}

	for _, e := range evts {
		if err := writeFrame(w, e); err != nil {
			return watermark, err
		}
		watermark = e.ID
	}
	flusher.Flush()

	if err := h.events.MarkConsumed(ctx, patientID, watermark); err != nil {
		h.log.Error("mark events consumed", "error", err, "patient_id", patientID)
	}
	return watermark, nil
}

func writeFrame(w http.ResponseWriter, e *store.PipelineEvent) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", e.Phase); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(e.DetailsJSON)); err != nil {
		return err
	}
	return nil
}

// ParseSinceID parses the `since_id` query parameter, defaulting to 0.
func ParseSinceID(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Sweeper periodically deletes pipeline_events rows older than its TTL
// (spec §4.7: default 24h).
type Sweeper struct {
	events   *store.EventRepo
	log      *slog.Logger
	interval time.Duration
	ttl      time.Duration
}

func NewSweeper(events *store.EventRepo, log *slog.Logger, interval, ttl time.Duration) *Sweeper {
	return &Sweeper{events: events, log: log, interval: interval, ttl: ttl}
}

// Run blocks, sweeping on Sweeper.interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.events.SweepExpired(ctx, s.ttl)
			if err != nil {
				s.log.Error("sweep pipeline events", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("swept expired pipeline events", "count", n)
			}
		}
	}
}
