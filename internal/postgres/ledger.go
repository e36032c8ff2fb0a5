package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/skuld/internal/domain"
)

// LedgerStore implements domain.InvoiceLedger using PostgreSQL.
//
// The ledger is the external sink of this subsystem: generated invoices are
// append-only snapshots with a back-reference to their template. A unique
// index on (recurring_template_id, due_date) makes Write idempotent, so a
// retry after a commit-then-crash cannot double-bill an occurrence.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that LedgerStore implements domain.InvoiceLedger.
var _ domain.InvoiceLedger = (*LedgerStore)(nil)

// NewLedgerStore creates a PostgreSQL-backed invoice ledger.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Write inserts the invoice snapshot, or returns the existing invoice ID when
// the (template, due date) occurrence was already written.
func (s *LedgerStore) Write(ctx context.Context, inv *domain.LedgerInvoice) (uuid.UUID, error) {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return uuid.Nil, domain.Internal(err, "ledger.write", "failed to encode line items")
	}

	const insert = `
	INSERT INTO ledger_invoices (
		id, tenant_id, recurring_template_id, due_date,
		customer_id, customer_name, customer_email,
		items, subtotal, total_discount, total_tax, total_amount, currency,
		notes, issued_at, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now()
	)
	ON CONFLICT (recurring_template_id, due_date) DO NOTHING
	RETURNING id
	`

	var id uuid.UUID
	err = s.pool.QueryRow(ctx, insert,
		inv.ID, inv.TenantID, inv.TemplateID, inv.DueDate,
		inv.CustomerID, inv.CustomerName, inv.CustomerEmail,
		items, inv.Subtotal, inv.TotalDiscount, inv.TotalTax, inv.TotalAmount, inv.Currency,
		inv.Notes, inv.IssuedAt,
	).Scan(&id)
	if err == nil {
		return id, nil
	}

	// DO NOTHING suppressed the insert: the occurrence was already written by
	// an earlier attempt. Look up the existing row and report success.
	const lookup = `
	SELECT id FROM ledger_invoices
	WHERE recurring_template_id = $1 AND due_date = $2
	`
	if lookupErr := s.pool.QueryRow(ctx, lookup, inv.TemplateID, inv.DueDate).Scan(&id); lookupErr == nil {
		return id, nil
	}

	return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrLedgerWriteFailed, err)
}

// ListForTemplate returns the most recent generated invoices for a template,
// by due date descending.
func (s *LedgerStore) ListForTemplate(ctx context.Context, tenantID, templateID uuid.UUID, limit int32) ([]domain.LedgerInvoiceRef, error) {
	const query = `
	SELECT id, due_date, total_amount, currency, issued_at
	FROM ledger_invoices
	WHERE tenant_id = $1 AND recurring_template_id = $2
	ORDER BY due_date DESC
	LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, tenantID, templateID, clampLimit(limit))
	if err != nil {
		return nil, domain.Internal(err, "ledger.list", "failed to list generated invoices")
	}
	defer rows.Close()

	var refs []domain.LedgerInvoiceRef
	for rows.Next() {
		var ref domain.LedgerInvoiceRef
		if err := rows.Scan(&ref.ID, &ref.DueDate, &ref.TotalAmount, &ref.Currency, &ref.IssuedAt); err != nil {
			return nil, domain.Internal(err, "ledger.list", "failed to scan invoice row")
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "ledger.list", "failed to read invoice rows")
	}
	return refs, nil
}
