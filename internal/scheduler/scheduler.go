// Package scheduler drives recurring invoice generation.
//
// The scheduler is the only concurrently-contended actor in the system:
// several instances may run at once (horizontal scaling, overlapping passes),
// and correctness rests on the repository's claim step, which reserves one
// (template, due date) occurrence for exactly one worker. Losing that race is
// normal operation, not an error.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/events"
	"github.com/dukerupert/skuld/internal/recurrence"
	"github.com/dukerupert/skuld/internal/service"
	"github.com/dukerupert/skuld/internal/telemetry"
)

// failureAlertThreshold is how many consecutive failed generation attempts
// for one template trigger an error-level log. The occurrence stays due and
// keeps retrying regardless; this only raises operator visibility.
const failureAlertThreshold = 5

// Config holds scheduler configuration.
type Config struct {
	// WorkerID uniquely identifies this scheduler instance in claims.
	WorkerID string

	// PollInterval is the pass cadence. A deployment parameter, not a design
	// invariant: shorter intervals only tighten billing latency.
	PollInterval time.Duration

	// BatchSize caps how many due templates one pass picks up.
	BatchSize int32

	// MaxConcurrency is the maximum number of templates processed at once
	// within a pass.
	MaxConcurrency int
}

// Scheduler periodically scans for due, active templates and invokes
// generation at most once per due occurrence.
type Scheduler struct {
	config    Config
	repo      domain.TemplateRepository
	generator *service.Generator
	publisher events.Publisher
	logger    *slog.Logger

	// now is the clock seam; tests pin it.
	now func() time.Time

	// failStreaks tracks consecutive generation failures per template.
	mu          sync.Mutex
	failStreaks map[uuid.UUID]int
}

// New creates a scheduler. Zero config fields get defaults.
func New(repo domain.TemplateRepository, generator *service.Generator, publisher events.Publisher, config Config, logger *slog.Logger) *Scheduler {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("scheduler-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Minute
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		config:      config,
		repo:        repo,
		generator:   generator,
		publisher:   publisher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		failStreaks: make(map[uuid.UUID]int),
	}
}

// Start runs passes on the configured cadence until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		"worker_id", s.config.WorkerID,
		"poll_interval", s.config.PollInterval,
		"batch_size", s.config.BatchSize,
		"max_concurrency", s.config.MaxConcurrency,
	)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down", "worker_id", s.config.WorkerID)
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunPass(ctx); err != nil {
				// Pass-level errors affect timing only, never correctness;
				// nothing here is surfaced to end users.
				s.logger.Error("scheduler pass failed", "worker_id", s.config.WorkerID, "error", err)
			}
		}
	}
}

// RunPass executes one scan-claim-generate pass. Per-template failures are
// logged and counted but never abort the pass.
func (s *Scheduler) RunPass(ctx context.Context) error {
	start := time.Now()
	now := s.now()

	due, err := s.repo.ListDue(ctx, now, s.config.BatchSize)
	if err != nil {
		return err
	}

	telemetry.Scheduler.PassesTotal.Inc()
	telemetry.Scheduler.TemplatesScanned.Add(float64(len(due)))

	if len(due) > 0 {
		s.logger.Info("scheduler pass", "worker_id", s.config.WorkerID, "due", len(due))
	}

	sem := make(chan struct{}, s.config.MaxConcurrency)
	var wg sync.WaitGroup
	for i := range due {
		tmpl := due[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.processTemplate(ctx, &tmpl, now)
		}()
	}
	wg.Wait()

	telemetry.Scheduler.PassDuration.Observe(time.Since(start).Seconds())
	return nil
}

// processTemplate handles one due template: claim, end-date check, generate,
// advance. Exactly one of {advanced, completed, released, race lost} happens.
func (s *Scheduler) processTemplate(ctx context.Context, tmpl *domain.RecurringTemplate, now time.Time) {
	due := tmpl.NextInvoiceDate
	tenantID := tmpl.TenantID.String()

	// A corrupt schedule (unknown frequency, interval below 1) must not stall
	// the pass or be "fixed" by a silent daily fallback; skip and surface it.
	if !tmpl.Frequency.Valid() || tmpl.Interval < 1 {
		s.logger.Error("template has invalid schedule",
			"template_id", tmpl.ID, "frequency", tmpl.Frequency, "interval", tmpl.Interval)
		return
	}

	claimed, err := s.repo.Claim(ctx, tmpl.ID, due, s.config.WorkerID)
	if err != nil {
		s.logger.Error("claim failed", "template_id", tmpl.ID, "error", err)
		return
	}
	if !claimed {
		// Another worker owns this occurrence, or the schedule moved since
		// the scan. Low severity; the next pass re-reads fresh state.
		telemetry.Scheduler.ClaimConflicts.Inc()
		s.logger.Debug("claim lost", "template_id", tmpl.ID, "due", due)
		return
	}

	// End date passed: complete instead of generating, even if the template
	// was previously due.
	if tmpl.EndDatePassed(now) {
		if err := s.repo.Complete(ctx, tmpl.ID, due); err != nil {
			s.logger.Error("completion failed", "template_id", tmpl.ID, "error", err)
			s.release(ctx, tmpl.ID)
			return
		}
		telemetry.Scheduler.TemplatesCompleted.WithLabelValues(tenantID).Inc()
		s.logger.Info("template completed", "template_id", tmpl.ID, "end_date", tmpl.EndDate)
		return
	}

	invoiceID, err := s.generator.Generate(ctx, tmpl, now)
	if err != nil {
		// The occurrence stays due: release the claim without advancing so
		// the next pass retries it.
		s.recordFailure(tmpl.ID)
		telemetry.Scheduler.GenerationFailures.WithLabelValues(tenantID).Inc()
		s.logger.Error("generation failed", "template_id", tmpl.ID, "due", due, "error", err)

		s.release(ctx, tmpl.ID)
		return
	}

	// Advance from the previous due date, one period at a time. A template
	// several occurrences behind catches up one generation per pass, keeping
	// per-pass work bounded.
	next, err := recurrence.Next(due, tmpl.Frequency, tmpl.Interval)
	if err != nil {
		s.logger.Error("next due date computation failed", "template_id", tmpl.ID, "error", err)
		s.release(ctx, tmpl.ID)
		return
	}

	if err := s.repo.Advance(ctx, tmpl.ID, due, next, now); err != nil {
		// The invoice is committed and idempotent on (template, due date);
		// if advancing lost to a concurrent mutation, the re-run is a no-op
		// ledger write followed by a fresh advance attempt. Drop the claim
		// immediately rather than waiting out the TTL.
		s.logger.Warn("schedule advance conflicted", "template_id", tmpl.ID, "due", due, "error", err)
		s.release(ctx, tmpl.ID)
		return
	}

	s.clearFailures(tmpl.ID)
	telemetry.Scheduler.InvoicesGenerated.WithLabelValues(tenantID).Inc()
	s.logger.Info("invoice generated",
		"template_id", tmpl.ID,
		"invoice_id", invoiceID,
		"due", due,
		"next_due", next,
	)

	event := events.InvoiceGenerated{
		InvoiceID:   invoiceID,
		TemplateID:  tmpl.ID,
		TenantID:    tmpl.TenantID,
		CustomerID:  tmpl.CustomerID,
		DueDate:     due,
		TotalAmount: tmpl.TotalAmount.String(),
		Currency:    tmpl.Currency,
		GeneratedAt: now,
	}
	if err := s.publisher.PublishInvoiceGenerated(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "template_id", tmpl.ID, "error", err)
	}
}

// release drops this worker's claim so the occurrence is retried on the next
// pass instead of sitting dark until the claim expires.
func (s *Scheduler) release(ctx context.Context, id uuid.UUID) {
	if err := s.repo.Release(ctx, id, s.config.WorkerID); err != nil {
		s.logger.Error("claim release failed", "template_id", id, "error", err)
	}
}

// recordFailure tracks consecutive failures for one template and raises an
// error-level alert once the streak crosses the threshold.
func (s *Scheduler) recordFailure(id uuid.UUID) {
	s.mu.Lock()
	s.failStreaks[id]++
	streak := s.failStreaks[id]
	s.mu.Unlock()

	telemetry.Scheduler.ConsecutiveFailures.WithLabelValues(id.String()).Set(float64(streak))
	if streak >= failureAlertThreshold {
		s.logger.Error("template repeatedly failing generation",
			"template_id", id, "consecutive_failures", streak)
	}
}

// clearFailures resets the failure streak after a successful generation.
func (s *Scheduler) clearFailures(id uuid.UUID) {
	s.mu.Lock()
	delete(s.failStreaks, id)
	s.mu.Unlock()

	telemetry.Scheduler.ConsecutiveFailures.DeleteLabelValues(id.String())
}
