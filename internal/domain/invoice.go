package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger-related domain errors.
var (
	ErrLedgerWriteFailed = &Error{Code: EINTERNAL, Message: "Failed to write invoice to ledger"}
)

// LedgerInvoice is the priced snapshot written into the external invoice
// ledger for one due occurrence. Prices and customer fields are frozen at
// generation time and never re-read from the template, preserving historical
// accuracy even if the template is later edited or deleted.
type LedgerInvoice struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	TemplateID uuid.UUID

	// DueDate is the occurrence this invoice was generated for. Together with
	// TemplateID it is the idempotency key of the ledger write.
	DueDate time.Time

	CustomerID    uuid.UUID
	CustomerName  string
	CustomerEmail string

	Items         []LineItem
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalTax      decimal.Decimal
	TotalAmount   decimal.Decimal
	Currency      string

	Notes     string
	IssuedAt  time.Time
	CreatedAt time.Time
}

// LedgerInvoiceRef is a lightweight reference to a generated invoice, used
// for template history listings.
type LedgerInvoiceRef struct {
	ID          uuid.UUID       `json:"id"`
	DueDate     time.Time       `json:"due_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	IssuedAt    time.Time       `json:"issued_at"`
}

// InvoiceLedger is the external sink for generated invoices.
//
// Write must be idempotent on (TemplateID, DueDate): re-running a generation
// attempt after a commit-then-crash must not produce a second invoice. A
// successful Write returns the ledger's invoice ID, whether freshly inserted
// or already present.
type InvoiceLedger interface {
	Write(ctx context.Context, inv *LedgerInvoice) (uuid.UUID, error)

	// ListForTemplate returns the most recent generated invoices for a
	// template, by due date descending.
	ListForTemplate(ctx context.Context, tenantID, templateID uuid.UUID, limit int32) ([]LedgerInvoiceRef, error)
}

// Customer is the snapshot of an external customer record consumed at
// template creation and generation time.
type Customer struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	Email    string
	Phone    string
	Address  string
	TaxID    string
}

// CustomerDirectory resolves customer references. The customer catalog itself
// is owned elsewhere; this subsystem only looks up snapshot fields.
type CustomerDirectory interface {
	Lookup(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)
}
