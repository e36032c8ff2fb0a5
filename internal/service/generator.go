package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/lifecycle"
)

// Generator produces concrete invoices from due templates.
//
// It computes what to emit and writes it to the ledger; it never mutates the
// template. Committing that generation happened (advancing the schedule) is
// the scheduler's job, so a failed ledger write can never silently advance a
// due date.
type Generator struct {
	ledger domain.InvoiceLedger
}

// NewGenerator creates an invoice generator over the external ledger.
func NewGenerator(ledger domain.InvoiceLedger) *Generator {
	return &Generator{ledger: ledger}
}

// Generate snapshots the template's pricing and customer fields into a new
// ledger invoice for the occurrence at tmpl.NextInvoiceDate, tagged with the
// template's ID. The ledger write is idempotent on (template, due date), so
// retrying a previously committed occurrence returns the existing invoice.
//
// Callers hold a claim on the occurrence; Generate still refuses non-active
// templates so a direct misuse cannot bill from a paused or terminal one.
func (g *Generator) Generate(ctx context.Context, tmpl *domain.RecurringTemplate, now time.Time) (uuid.UUID, error) {
	if err := lifecycle.CanGenerate(tmpl.Status); err != nil {
		return uuid.Nil, err
	}
	if tmpl.NextInvoiceDate.After(now) {
		return uuid.Nil, domain.Conflict("template.generate", "template is not due")
	}

	// Freeze the line items: the invoice must not share slices with the
	// template, which may be edited afterwards.
	items := make([]domain.LineItem, len(tmpl.Items))
	copy(items, tmpl.Items)

	inv := &domain.LedgerInvoice{
		ID:            uuid.New(),
		TenantID:      tmpl.TenantID,
		TemplateID:    tmpl.ID,
		DueDate:       tmpl.NextInvoiceDate,
		CustomerID:    tmpl.CustomerID,
		CustomerName:  tmpl.CustomerName,
		CustomerEmail: tmpl.CustomerEmail,
		Items:         items,
		Subtotal:      tmpl.Subtotal,
		TotalDiscount: tmpl.TotalDiscount,
		TotalTax:      tmpl.TotalTax,
		TotalAmount:   tmpl.TotalAmount,
		Currency:      tmpl.Currency,
		Notes:         tmpl.Notes,
		IssuedAt:      now,
	}

	id, err := g.ledger.Write(ctx, inv)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
