package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/skuld/internal/domain"
)

// DefaultClaimTTL bounds how long a scheduler claim can be held before other
// workers treat it as abandoned. A worker that crashes mid-generation strands
// its claim; the TTL lets the occurrence become due again.
const DefaultClaimTTL = 5 * time.Minute

// TemplateStore implements domain.TemplateRepository using PostgreSQL.
//
// The claim mechanism is a conditional update on (id, next_invoice_date):
// only one concurrent worker can win the UPDATE for a given due marker, and
// any mutation that moves next_invoice_date invalidates outstanding due
// checks, forcing a fresh read on the next pass.
type TemplateStore struct {
	pool     *pgxpool.Pool
	claimTTL time.Duration
}

// Compile-time check that TemplateStore implements domain.TemplateRepository.
var _ domain.TemplateRepository = (*TemplateStore)(nil)

// NewTemplateStore creates a PostgreSQL-backed template store. A claimTTL of
// zero selects DefaultClaimTTL.
func NewTemplateStore(pool *pgxpool.Pool, claimTTL time.Duration) *TemplateStore {
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	return &TemplateStore{pool: pool, claimTTL: claimTTL}
}

const templateColumns = `
	id, tenant_id, name,
	customer_id, customer_name, customer_email,
	frequency, interval, start_date, end_date, next_invoice_date,
	items, subtotal, total_discount, total_tax, total_amount, currency,
	status, total_generated, last_generated_at, notes,
	created_at, updated_at`

// Create inserts a new template.
func (s *TemplateStore) Create(ctx context.Context, tmpl *domain.RecurringTemplate) error {
	items, err := json.Marshal(tmpl.Items)
	if err != nil {
		return domain.Internal(err, "template.create", "failed to encode line items")
	}

	const query = `
	INSERT INTO recurring_invoice_templates (
		id, tenant_id, name,
		customer_id, customer_name, customer_email,
		frequency, interval, start_date, end_date, next_invoice_date,
		items, subtotal, total_discount, total_tax, total_amount, currency,
		status, total_generated, last_generated_at, notes,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
		now(), now()
	)
	RETURNING created_at, updated_at
	`

	row := s.pool.QueryRow(ctx, query,
		tmpl.ID, tmpl.TenantID, tmpl.Name,
		tmpl.CustomerID, tmpl.CustomerName, tmpl.CustomerEmail,
		string(tmpl.Frequency), tmpl.Interval, tmpl.StartDate, tmpl.EndDate, tmpl.NextInvoiceDate,
		items, tmpl.Subtotal, tmpl.TotalDiscount, tmpl.TotalTax, tmpl.TotalAmount, tmpl.Currency,
		tmpl.Status, tmpl.TotalGenerated, tmpl.LastGeneratedAt, tmpl.Notes,
	)
	if err := row.Scan(&tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
		return domain.Internal(err, "template.create", "failed to insert template")
	}
	return nil
}

// GetByID retrieves a template scoped to the owning tenant. IDs belonging to
// another tenant come back as not found, never as forbidden, to avoid
// existence leakage.
func (s *TemplateStore) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.RecurringTemplate, error) {
	const query = `
	SELECT ` + templateColumns + `
	FROM recurring_invoice_templates
	WHERE id = $1 AND tenant_id = $2
	`

	tmpl, err := scanTemplate(s.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, domain.Internal(err, "template.get", "failed to get template")
	}
	return tmpl, nil
}

// List returns the tenant's templates, newest first.
func (s *TemplateStore) List(ctx context.Context, tenantID uuid.UUID, limit, offset int32) ([]domain.RecurringTemplate, error) {
	const query = `
	SELECT ` + templateColumns + `
	FROM recurring_invoice_templates
	WHERE tenant_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, tenantID, clampLimit(limit), offset)
	if err != nil {
		return nil, domain.Internal(err, "template.list", "failed to list templates")
	}
	defer rows.Close()

	return collectTemplates(rows, "template.list")
}

// Update persists every mutable field of the template. The service layer owns
// recomputation of derived fields; the store writes what it is given.
//
// The write is conditional on updated_at still being the value the caller
// read: every Advance and every mutation bumps it, so a write whose read
// preceded a concurrent scheduler advance fails with a conflict instead of
// reverting next_invoice_date to an already-billed occurrence. The mutation
// also clears any outstanding claim, which refers to the row it replaced.
func (s *TemplateStore) Update(ctx context.Context, tmpl *domain.RecurringTemplate) error {
	items, err := json.Marshal(tmpl.Items)
	if err != nil {
		return domain.Internal(err, "template.update", "failed to encode line items")
	}

	const query = `
	UPDATE recurring_invoice_templates SET
		name = $3,
		customer_id = $4, customer_name = $5, customer_email = $6,
		frequency = $7, interval = $8, start_date = $9, end_date = $10,
		next_invoice_date = $11,
		items = $12, subtotal = $13, total_discount = $14, total_tax = $15,
		total_amount = $16, currency = $17,
		status = $18, notes = $19,
		claimed_by = NULL, claimed_at = NULL,
		updated_at = now()
	WHERE id = $1 AND tenant_id = $2 AND updated_at = $20
	RETURNING updated_at
	`

	row := s.pool.QueryRow(ctx, query,
		tmpl.ID, tmpl.TenantID,
		tmpl.Name,
		tmpl.CustomerID, tmpl.CustomerName, tmpl.CustomerEmail,
		string(tmpl.Frequency), tmpl.Interval, tmpl.StartDate, tmpl.EndDate,
		tmpl.NextInvoiceDate,
		items, tmpl.Subtotal, tmpl.TotalDiscount, tmpl.TotalTax,
		tmpl.TotalAmount, tmpl.Currency,
		tmpl.Status, tmpl.Notes,
		tmpl.UpdatedAt,
	)
	if err := row.Scan(&tmpl.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.updateMissReason(ctx, tmpl.TenantID, tmpl.ID)
		}
		return domain.Internal(err, "template.update", "failed to update template")
	}
	return nil
}

// updateMissReason distinguishes why a conditional update matched no rows:
// the template is gone, or it changed since the caller read it.
func (s *TemplateStore) updateMissReason(ctx context.Context, tenantID, id uuid.UUID) error {
	const query = `
	SELECT true FROM recurring_invoice_templates
	WHERE id = $1 AND tenant_id = $2
	`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, id, tenantID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTemplateNotFound
		}
		return domain.Internal(err, "template.update", "failed to update template")
	}
	return domain.Conflict("template.update", "template was modified concurrently, re-read and retry")
}

// Delete hard-deletes a template. Generated invoices carry their own frozen
// snapshot and are unaffected.
func (s *TemplateStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	const query = `
	DELETE FROM recurring_invoice_templates
	WHERE id = $1 AND tenant_id = $2
	`

	tag, err := s.pool.Exec(ctx, query, id, tenantID)
	if err != nil {
		return domain.Internal(err, "template.delete", "failed to delete template")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

// ListDue returns active templates whose next occurrence is due, oldest due
// first, across all tenants. Templates under a live claim are excluded so a
// pass does not re-read work already in flight.
func (s *TemplateStore) ListDue(ctx context.Context, now time.Time, limit int32) ([]domain.RecurringTemplate, error) {
	const query = `
	SELECT ` + templateColumns + `
	FROM recurring_invoice_templates
	WHERE status = 'active'
	  AND next_invoice_date <= $1
	  AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $3))
	ORDER BY next_invoice_date ASC
	LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, now, clampLimit(limit), s.claimTTL.Seconds())
	if err != nil {
		return nil, domain.Internal(err, "template.list_due", "failed to scan for due templates")
	}
	defer rows.Close()

	return collectTemplates(rows, "template.list_due")
}

// Claim reserves the (id, due) occurrence for workerID. The conditional
// UPDATE succeeds for exactly one concurrent caller; everyone else sees zero
// rows and reports a lost race, which is not an error.
func (s *TemplateStore) Claim(ctx context.Context, id uuid.UUID, due time.Time, workerID string) (bool, error) {
	const query = `
	UPDATE recurring_invoice_templates
	SET claimed_by = $3, claimed_at = now()
	WHERE id = $1
	  AND next_invoice_date = $2
	  AND status = 'active'
	  AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $4))
	`

	tag, err := s.pool.Exec(ctx, query, id, due, workerID, s.claimTTL.Seconds())
	if err != nil {
		return false, domain.Internal(err, "template.claim", "failed to claim template")
	}
	return tag.RowsAffected() == 1, nil
}

// Advance commits a successful generation for the claimed occurrence. The
// condition on next_invoice_date means a schedule mutated underneath the
// claim is left untouched; the caller treats zero rows as a conflict.
func (s *TemplateStore) Advance(ctx context.Context, id uuid.UUID, due, next, generatedAt time.Time) error {
	const query = `
	UPDATE recurring_invoice_templates
	SET next_invoice_date = $3,
		total_generated = total_generated + 1,
		last_generated_at = $4,
		claimed_by = NULL, claimed_at = NULL,
		updated_at = now()
	WHERE id = $1 AND next_invoice_date = $2
	`

	tag, err := s.pool.Exec(ctx, query, id, due, next, generatedAt)
	if err != nil {
		return domain.Internal(err, "template.advance", "failed to advance template schedule")
	}
	if tag.RowsAffected() == 0 {
		return domain.Conflict("template.advance", "template schedule changed while generation was in flight")
	}
	return nil
}

// Release drops this worker's claim without advancing the schedule, leaving
// the occurrence due for the next pass. Keyed on the claim holder rather than
// the due marker so the claim is recoverable even after the marker has moved.
func (s *TemplateStore) Release(ctx context.Context, id uuid.UUID, workerID string) error {
	const query = `
	UPDATE recurring_invoice_templates
	SET claimed_by = NULL, claimed_at = NULL
	WHERE id = $1 AND claimed_by = $2
	`

	if _, err := s.pool.Exec(ctx, query, id, workerID); err != nil {
		return domain.Internal(err, "template.release", "failed to release claim")
	}
	return nil
}

// Complete flips a claimed active template to completed and releases the
// claim. Used by the scheduler when the end date has passed.
func (s *TemplateStore) Complete(ctx context.Context, id uuid.UUID, due time.Time) error {
	const query = `
	UPDATE recurring_invoice_templates
	SET status = 'completed',
		claimed_by = NULL, claimed_at = NULL,
		updated_at = now()
	WHERE id = $1 AND next_invoice_date = $2 AND status = 'active'
	`

	tag, err := s.pool.Exec(ctx, query, id, due)
	if err != nil {
		return domain.Internal(err, "template.complete", "failed to complete template")
	}
	if tag.RowsAffected() == 0 {
		return domain.Conflict("template.complete", "template changed while completion was in flight")
	}
	return nil
}

// scanTemplate reads one template row.
func scanTemplate(row pgx.Row) (*domain.RecurringTemplate, error) {
	var (
		tmpl      domain.RecurringTemplate
		frequency string
		items     []byte
	)

	err := row.Scan(
		&tmpl.ID, &tmpl.TenantID, &tmpl.Name,
		&tmpl.CustomerID, &tmpl.CustomerName, &tmpl.CustomerEmail,
		&frequency, &tmpl.Interval, &tmpl.StartDate, &tmpl.EndDate, &tmpl.NextInvoiceDate,
		&items, &tmpl.Subtotal, &tmpl.TotalDiscount, &tmpl.TotalTax, &tmpl.TotalAmount, &tmpl.Currency,
		&tmpl.Status, &tmpl.TotalGenerated, &tmpl.LastGeneratedAt, &tmpl.Notes,
		&tmpl.CreatedAt, &tmpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tmpl.Frequency = recurrenceFrequency(frequency)
	if err := json.Unmarshal(items, &tmpl.Items); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func collectTemplates(rows pgx.Rows, op string) ([]domain.RecurringTemplate, error) {
	var templates []domain.RecurringTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan template row")
		}
		templates = append(templates, *tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read template rows")
	}
	return templates, nil
}
