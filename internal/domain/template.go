package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/skuld/internal/recurrence"
)

// Template status values. Completed and cancelled are terminal.
const (
	TemplateStatusActive    = "active"
	TemplateStatusPaused    = "paused"
	TemplateStatusCompleted = "completed"
	TemplateStatusCancelled = "cancelled"
)

// Template-related domain errors.
var (
	ErrTemplateNotFound = &Error{Code: ENOTFOUND, Message: "Recurring invoice template not found"}
	ErrCustomerNotFound = &Error{Code: ENOTFOUND, Message: "Customer not found"}
	ErrTemplateTerminal = &Error{Code: ECONFLICT, Message: "Template is in a terminal status"}
	ErrNoItems          = &Error{Code: EINVALID, Message: "Template must have at least one line item"}
	ErrInvalidInterval  = &Error{Code: EINVALID, Message: "Interval must be at least 1"}
)

// LineItem is one priced line of a recurring invoice template.
// ProductID is an optional reference into the external product catalog; the
// name/price fields are what generation snapshots, so a deleted product never
// breaks an active template.
type LineItem struct {
	ProductID       *uuid.UUID      `json:"product_id,omitempty"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int32           `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRatePercent  decimal.Decimal `json:"tax_rate_percent"`
}

// RecurringTemplate is the aggregate root of this subsystem: a definition
// that is not itself a bill but a generator of bills.
//
// NextInvoiceDate is strictly in the future except in the transient window
// between a due check and a successful generation. The derived monetary
// fields are recomputed by the service whenever Items changes and are never
// accepted from clients.
type RecurringTemplate struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string

	// Customer reference plus cached snapshot fields used at generation time.
	CustomerID    uuid.UUID
	CustomerName  string
	CustomerEmail string

	Frequency recurrence.Frequency
	Interval  int32
	StartDate time.Time
	EndDate   *time.Time

	NextInvoiceDate time.Time

	Items         []LineItem
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalTax      decimal.Decimal
	TotalAmount   decimal.Decimal
	Currency      string

	Status          string
	TotalGenerated  int32
	LastGeneratedAt *time.Time
	Notes           string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the template can never generate again.
func (t *RecurringTemplate) Terminal() bool {
	return t.Status == TemplateStatusCompleted || t.Status == TemplateStatusCancelled
}

// EndDatePassed reports whether the template's end date is set and behind now.
func (t *RecurringTemplate) EndDatePassed(now time.Time) bool {
	return t.EndDate != nil && now.After(*t.EndDate)
}

// TemplateRepository is the durable store of recurring invoice templates.
//
// Read/write operations are tenant-scoped; the due-scan and claim operations
// run across all tenants because the scheduler driver is the one
// cross-tenant actor. Claim/Advance/Release are conditional updates keyed on
// (id, nextInvoiceDate) so that concurrent scheduler instances serialize on
// the due marker itself.
type TemplateRepository interface {
	Create(ctx context.Context, tmpl *RecurringTemplate) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*RecurringTemplate, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int32) ([]RecurringTemplate, error)

	// Update persists the template conditionally on tmpl.UpdatedAt still
	// matching the stored row, so a mutation whose read was overtaken by a
	// concurrent Advance (or another mutation) fails with ECONFLICT instead
	// of reverting the due marker to an already-billed occurrence. It also
	// clears any outstanding claim, since the claim's due check is stale
	// once the row changes.
	Update(ctx context.Context, tmpl *RecurringTemplate) error

	Delete(ctx context.Context, tenantID, id uuid.UUID) error

	// ListDue returns up to limit active templates with nextInvoiceDate <= now,
	// oldest due first, across all tenants.
	ListDue(ctx context.Context, now time.Time, limit int32) ([]RecurringTemplate, error)

	// Claim atomically reserves the (id, due) occurrence for workerID.
	// Returns false with no error when another worker holds the claim or the
	// due marker moved; losing the race is not an error.
	Claim(ctx context.Context, id uuid.UUID, due time.Time, workerID string) (bool, error)

	// Advance commits a successful generation: bumps totalGenerated, records
	// lastGeneratedAt, moves nextInvoiceDate to next, and releases the claim.
	// It is conditional on nextInvoiceDate still equaling due.
	Advance(ctx context.Context, id uuid.UUID, due, next, generatedAt time.Time) error

	// Release drops workerID's claim without advancing, leaving the
	// occurrence due for the next pass. Keyed on the claim holder rather
	// than the due marker so a claim is recoverable even after the marker
	// moved underneath it.
	Release(ctx context.Context, id uuid.UUID, workerID string) error

	// Complete transitions a claimed template to the completed status and
	// releases the claim. Used by the scheduler when the end date has passed.
	Complete(ctx context.Context, id uuid.UUID, due time.Time) error
}

// CreateTemplateParams contains parameters for creating a template.
type CreateTemplateParams struct {
	Name       string
	CustomerID uuid.UUID
	Frequency  string
	Interval   int32
	StartDate  time.Time
	EndDate    *time.Time
	Items      []LineItem
	Currency   string
	Notes      string
}

// UpdateTemplateParams contains partial updates to a template. Nil fields are
// left unchanged. Derived fields (totals, nextInvoiceDate) are recomputed by
// the service as needed and cannot be set here; status changes go through
// UpdateStatus.
type UpdateTemplateParams struct {
	Name       *string
	CustomerID *uuid.UUID
	Frequency  *string
	Interval   *int32
	StartDate  *time.Time
	EndDate    *time.Time
	ClearEnd   bool
	Items      []LineItem
	Notes      *string
}

// OverrideScheduleParams is the administrative escape hatch: a direct patch
// of the due marker and/or status, still routed through transition validation.
type OverrideScheduleParams struct {
	NextInvoiceDate *time.Time
	Status          *string
}

// TemplateDetail aggregates a template with its recent generation history.
type TemplateDetail struct {
	Template RecurringTemplate
	History  []LedgerInvoiceRef
}

// TemplateService is the mutation boundary for recurring invoice templates.
// The acting tenant arrives via context (see NewContextWithTenantID); every
// operation is scoped to it.
type TemplateService interface {
	CreateTemplate(ctx context.Context, params CreateTemplateParams) (*RecurringTemplate, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*TemplateDetail, error)
	ListTemplates(ctx context.Context, limit, offset int32) ([]RecurringTemplate, error)
	UpdateTemplate(ctx context.Context, id uuid.UUID, params UpdateTemplateParams) (*RecurringTemplate, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*RecurringTemplate, error)
	OverrideSchedule(ctx context.Context, id uuid.UUID, params OverrideScheduleParams) (*RecurringTemplate, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}
