package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/lifecycle"
	"github.com/dukerupert/skuld/internal/pricing"
	"github.com/dukerupert/skuld/internal/recurrence"
)

// historyLimit is how many generated-invoice references GetTemplate returns.
const historyLimit = 10

var decimalHundred = decimal.NewFromInt(100)

// templateService implements domain.TemplateService.
//
// It owns every derived field: totals are recomputed whenever items change,
// nextInvoiceDate whenever the schedule changes, and status transitions are
// routed through the lifecycle validator. The repository below it writes what
// it is given and nothing more.
type templateService struct {
	repo      domain.TemplateRepository
	customers domain.CustomerDirectory
	ledger    domain.InvoiceLedger

	// now is the clock seam; tests pin it.
	now func() time.Time
}

// Compile-time check that templateService implements domain.TemplateService.
var _ domain.TemplateService = (*templateService)(nil)

// NewTemplateService creates the mutation boundary for recurring invoice
// templates.
func NewTemplateService(repo domain.TemplateRepository, customers domain.CustomerDirectory, ledger domain.InvoiceLedger) domain.TemplateService {
	return &templateService{
		repo:      repo,
		customers: customers,
		ledger:    ledger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateTemplate validates input, resolves the customer snapshot, computes
// totals and the first due date, and persists an active template.
func (s *templateService) CreateTemplate(ctx context.Context, params domain.CreateTemplateParams) (*domain.RecurringTemplate, error) {
	tenantID, err := domain.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}

	const op = "template.create"

	if params.Name == "" {
		return nil, domain.NewValidationError(op, "name", "name is required")
	}
	freq, err := recurrence.ParseFrequency(params.Frequency)
	if err != nil {
		return nil, domain.NewValidationError(op, "frequency", err.Error())
	}
	if params.Interval < 1 {
		return nil, domain.ErrInvalidInterval
	}
	if params.StartDate.IsZero() {
		return nil, domain.NewValidationError(op, "start_date", "start date is required")
	}
	if params.EndDate != nil && !params.EndDate.After(params.StartDate) {
		return nil, domain.NewValidationError(op, "end_date", "end date must be after start date")
	}
	if err := validateItems(op, params.Items); err != nil {
		return nil, err
	}

	customer, err := s.customers.Lookup(ctx, tenantID, params.CustomerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	nextDue, err := recurrence.NextAfter(params.StartDate, freq, params.Interval, now)
	if err != nil {
		return nil, domain.Invalid(op, err.Error())
	}

	totals := pricing.Compute(pricingItems(params.Items))
	currency := params.Currency
	if currency == "" {
		currency = "USD"
	}

	tmpl := &domain.RecurringTemplate{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Name:            params.Name,
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		CustomerEmail:   customer.Email,
		Frequency:       freq,
		Interval:        params.Interval,
		StartDate:       params.StartDate,
		EndDate:         params.EndDate,
		NextInvoiceDate: nextDue,
		Items:           params.Items,
		Subtotal:        totals.Subtotal,
		TotalDiscount:   totals.TotalDiscount,
		TotalTax:        totals.TotalTax,
		TotalAmount:     totals.TotalAmount,
		Currency:        currency,
		Status:          domain.TemplateStatusActive,
		Notes:           params.Notes,
	}

	if err := s.repo.Create(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// GetTemplate returns the template with its recent generation history.
func (s *templateService) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.TemplateDetail, error) {
	tenantID, err := domain.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	history, err := s.ledger.ListForTemplate(ctx, tenantID, id, historyLimit)
	if err != nil {
		return nil, err
	}

	return &domain.TemplateDetail{Template: *tmpl, History: history}, nil
}

// ListTemplates returns the tenant's templates.
func (s *templateService) ListTemplates(ctx context.Context, limit, offset int32) ([]domain.RecurringTemplate, error) {
	tenantID, err := domain.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID, limit, offset)
}

// UpdateTemplate applies a partial update, recomputing totals when items
// change and nextInvoiceDate when the schedule changes. Terminal templates
// reject all edits. The write is conditional on the row read here, so an
// edit racing the scheduler surfaces ECONFLICT and the client retries.
func (s *templateService) UpdateTemplate(ctx context.Context, id uuid.UUID, params domain.UpdateTemplateParams) (*domain.RecurringTemplate, error) {
	tenantID, err := domain.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}

	const op = "template.update"

	tmpl, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if tmpl.Terminal() {
		return nil, domain.ErrTemplateTerminal
	}

	scheduleChanged := false

	if params.Name != nil {
		if *params.Name == "" {
			return nil, domain.NewValidationError(op, "name", "name is required")
		}
		tmpl.Name = *params.Name
	}

	if params.CustomerID != nil && *params.CustomerID != tmpl.CustomerID {
		customer, err := s.customers.Lookup(ctx, tenantID, *params.CustomerID)
		if err != nil {
			return nil, err
		}
		tmpl.CustomerID = customer.ID
		tmpl.CustomerName = customer.Name
		tmpl.CustomerEmail = customer.Email
	}

	if params.Frequency != nil {
		freq, err := recurrence.ParseFrequency(*params.Frequency)
		if err != nil {
			return nil, domain.NewValidationError(op, "frequency", err.Error())
		}
		if freq != tmpl.Frequency {
			tmpl.Frequency = freq
			scheduleChanged = true
		}
	}

	if params.Interval != nil {
		if *params.Interval < 1 {
			return nil, domain.ErrInvalidInterval
		}
		if *params.Interval != tmpl.Interval {
			tmpl.Interval = *params.Interval
			scheduleChanged = true
		}
	}

	if params.StartDate != nil && !params.StartDate.Equal(tmpl.StartDate) {
		// The start date anchors the whole history; once invoices exist it is
		// frozen here. The administrative schedule override is the explicit
		// reset path.
		if tmpl.TotalGenerated > 0 {
			return nil, domain.Invalid(op, "start date cannot change after invoices have been generated")
		}
		tmpl.StartDate = *params.StartDate
		scheduleChanged = true
	}

	if params.ClearEnd {
		tmpl.EndDate = nil
	} else if params.EndDate != nil {
		if !params.EndDate.After(tmpl.StartDate) {
			return nil, domain.NewValidationError(op, "end_date", "end date must be after start date")
		}
		tmpl.EndDate = params.EndDate
	}

	if params.Items != nil {
		if err := validateItems(op, params.Items); err != nil {
			return nil, err
		}
		tmpl.Items = params.Items
		totals := pricing.Compute(pricingItems(params.Items))
		tmpl.Subtotal = totals.Subtotal
		tmpl.TotalDiscount = totals.TotalDiscount
		tmpl.TotalTax = totals.TotalTax
		tmpl.TotalAmount = totals.TotalAmount
	}

	if params.Notes != nil {
		tmpl.Notes = *params.Notes
	}

	now := s.now()

	if scheduleChanged {
		nextDue, err := recurrence.NextAfter(tmpl.StartDate, tmpl.Frequency, tmpl.Interval, now)
		if err != nil {
			return nil, domain.Invalid(op, err.Error())
		}
		tmpl.NextInvoiceDate = nextDue
	}

	// End date already behind us: completion happens on mutation as well as
	// on scheduler passes.
	if tmpl.Status == domain.TemplateStatusActive && tmpl.EndDatePassed(now) {
		tmpl.Status = domain.TemplateStatusCompleted
	}

	if err := s.repo.Update(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// UpdateStatus routes a status change through the lifecycle validator.
// Resuming a paused template keeps its existing due date; missed occurrences
// are caught up by the scheduler one per pass.
func (s *templateService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.RecurringTemplate, error) {
	tenantID, err := domain.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := lifecycle.Validate(tmpl.Status, status); err != nil {
		return nil, err
	}
	tmpl.Status = status

	if err := s.repo.Update(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// OverrideSchedule is the administrative escape hatch: a direct patch of the
// due marker and/or status. Status changes still obey the lifecycle table.
func (s *templateService) OverrideSchedule(ctx context.Context, id uuid.UUID, params domain.OverrideScheduleParams) (*domain.RecurringTemplate, error) {
	tenantID, err := domain.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if params.Status != nil && *params.Status != tmpl.Status {
		if err := lifecycle.Validate(tmpl.Status, *params.Status); err != nil {
			return nil, err
		}
		tmpl.Status = *params.Status
	}

	if params.NextInvoiceDate != nil {
		tmpl.NextInvoiceDate = *params.NextInvoiceDate
	}

	if err := s.repo.Update(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// DeleteTemplate hard-deletes a template. Ledger invoices keep their frozen
// snapshots and are unaffected.
func (s *templateService) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tenantID, err := domain.RequireTenantID(ctx)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, id)
}

// validateItems rejects empty item lists and per-item nonsense before any
// pricing math runs.
func validateItems(op string, items []domain.LineItem) error {
	if len(items) == 0 {
		return domain.ErrNoItems
	}
	for _, item := range items {
		if item.Name == "" {
			return domain.NewValidationError(op, "items", "line item name is required")
		}
		if item.Quantity < 1 {
			return domain.NewValidationError(op, "items", "line item quantity must be at least 1")
		}
		if item.UnitPrice.IsNegative() {
			return domain.NewValidationError(op, "items", "line item unit price cannot be negative")
		}
		if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(decimalHundred) {
			return domain.NewValidationError(op, "items", "line item discount percent must be between 0 and 100")
		}
		if item.TaxRatePercent.IsNegative() {
			return domain.NewValidationError(op, "items", "line item tax rate percent cannot be negative")
		}
	}
	return nil
}

// pricingItems projects line items onto the pure pricing input.
func pricingItems(items []domain.LineItem) []pricing.Item {
	out := make([]pricing.Item, len(items))
	for i, item := range items {
		out[i] = pricing.Item{
			UnitPrice:       item.UnitPrice,
			Quantity:        item.Quantity,
			DiscountPercent: item.DiscountPercent,
			TaxRatePercent:  item.TaxRatePercent,
		}
	}
	return out
}
