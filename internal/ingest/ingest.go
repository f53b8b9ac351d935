// Package ingest runs the incident-report consume loop: reports from the
// source topic are parsed, enriched, and persisted for heatmap rendering.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/floodwatch/flood-search-service/internal/domain"
	"github.com/floodwatch/flood-search-service/internal/observability"
)

// ReportSource yields raw incident reports; Fetch blocks until a message
// arrives or the context is cancelled.
type ReportSource interface {
	Fetch(ctx context.Context) (domain.RawReport, error)
}

// IncidentStore persists enriched incidents.
type IncidentStore interface {
	UpsertIncident(ctx context.Context, inc domain.Incident) error
}

// Loop orchestrates the consume-parse-store cycle.
type Loop struct {
	source  ReportSource
	store   IncidentStore
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Loop with the given stages and observability.
func New(source ReportSource, store IncidentStore, logger *slog.Logger, metrics *observability.Metrics) *Loop {
	return &Loop{
		source:  source,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the loop has processed at least one
// report, or an error describing why ingestion is not yet ready.
func (l *Loop) CheckReadiness(_ context.Context) error {
	if !l.ready.Load() {
		return errors.New("ingest loop has not processed any reports yet")
	}
	return nil
}

// Run consumes reports until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("ingest loop started")
	l.metrics.IngestRunning.Set(1)
	defer l.metrics.IngestRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("ingest loop stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !l.processOne(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processOne handles a single report. Returns false if the loop should stop.
func (l *Loop) processOne(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	raw, err := l.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		l.logger.Error("fetch report failed", "error", err)
		return l.backoffOrStop(ctx, backoff, maxBackoff)
	}

	l.metrics.ReportsConsumed.Inc()
	*backoff = 200 * time.Millisecond

	inc, err := domain.ParseRawReport(raw)
	if err != nil {
		// A malformed report never becomes parseable; commit so it is
		// not redelivered forever.
		l.logger.Warn("report dropped",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		l.metrics.ReportErrors.Inc()
		l.commit(ctx, raw)
		return true
	}
	inc = domain.EnrichIncident(inc)

	if err := l.store.UpsertIncident(ctx, inc); err != nil {
		if ctx.Err() != nil {
			return false
		}
		// Leave the offset uncommitted; the report is redelivered once
		// the store recovers.
		l.logger.Error("store incident failed", "error", err, "incident_id", inc.ID)
		l.metrics.ReportErrors.Inc()
		return l.backoffOrStop(ctx, backoff, maxBackoff)
	}

	l.commit(ctx, raw)
	l.ready.Store(true)
	return true
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the loop should stop.
func (l *Loop) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commit advances the source offset if a commit function is available.
func (l *Loop) commit(ctx context.Context, raw domain.RawReport) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		l.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
