package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/skuld/internal/domain"
)

// fakeTemplateRepo is an in-memory TemplateRepository with the same claim
// semantics as the postgres store: Claim/Advance are conditional on the due
// marker, serialized under a mutex.
type fakeTemplateRepo struct {
	mu        sync.Mutex
	templates map[uuid.UUID]*domain.RecurringTemplate
	claims    map[uuid.UUID]string
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{
		templates: make(map[uuid.UUID]*domain.RecurringTemplate),
		claims:    make(map[uuid.UUID]string),
	}
}

func (r *fakeTemplateRepo) put(tmpl *domain.RecurringTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tmpl
	r.templates[tmpl.ID] = &cp
}

func (r *fakeTemplateRepo) get(id uuid.UUID) *domain.RecurringTemplate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tmpl, ok := r.templates[id]; ok {
		cp := *tmpl
		return &cp
	}
	return nil
}

func (r *fakeTemplateRepo) Create(_ context.Context, tmpl *domain.RecurringTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl.CreatedAt = time.Now().UTC()
	tmpl.UpdatedAt = tmpl.CreatedAt
	cp := *tmpl
	r.templates[tmpl.ID] = &cp
	return nil
}

func (r *fakeTemplateRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*domain.RecurringTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[id]
	if !ok || tmpl.TenantID != tenantID {
		return nil, domain.ErrTemplateNotFound
	}
	cp := *tmpl
	return &cp, nil
}

func (r *fakeTemplateRepo) List(_ context.Context, tenantID uuid.UUID, limit, offset int32) ([]domain.RecurringTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RecurringTemplate
	for _, tmpl := range r.templates {
		if tmpl.TenantID == tenantID {
			out = append(out, *tmpl)
		}
	}
	return out, nil
}

func (r *fakeTemplateRepo) Update(_ context.Context, tmpl *domain.RecurringTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.templates[tmpl.ID]
	if !ok {
		return domain.ErrTemplateNotFound
	}
	if !stored.UpdatedAt.Equal(tmpl.UpdatedAt) {
		return domain.Conflict("template.update", "template was modified concurrently, re-read and retry")
	}
	tmpl.UpdatedAt = time.Now().UTC()
	cp := *tmpl
	r.templates[tmpl.ID] = &cp
	delete(r.claims, tmpl.ID)
	return nil
}

func (r *fakeTemplateRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[id]
	if !ok || tmpl.TenantID != tenantID {
		return domain.ErrTemplateNotFound
	}
	delete(r.templates, id)
	return nil
}

func (r *fakeTemplateRepo) ListDue(_ context.Context, now time.Time, limit int32) ([]domain.RecurringTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RecurringTemplate
	for _, tmpl := range r.templates {
		if tmpl.Status != domain.TemplateStatusActive {
			continue
		}
		if tmpl.NextInvoiceDate.After(now) {
			continue
		}
		if _, claimed := r.claims[tmpl.ID]; claimed {
			continue
		}
		out = append(out, *tmpl)
		if int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTemplateRepo) Claim(_ context.Context, id uuid.UUID, due time.Time, workerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[id]
	if !ok || tmpl.Status != domain.TemplateStatusActive || !tmpl.NextInvoiceDate.Equal(due) {
		return false, nil
	}
	if _, claimed := r.claims[id]; claimed {
		return false, nil
	}
	r.claims[id] = workerID
	return true, nil
}

func (r *fakeTemplateRepo) Advance(_ context.Context, id uuid.UUID, due, next, generatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[id]
	if !ok || !tmpl.NextInvoiceDate.Equal(due) {
		return domain.Conflict("template.advance", "due marker moved")
	}
	tmpl.NextInvoiceDate = next
	tmpl.TotalGenerated++
	at := generatedAt
	tmpl.LastGeneratedAt = &at
	tmpl.UpdatedAt = time.Now().UTC()
	delete(r.claims, id)
	return nil
}

func (r *fakeTemplateRepo) Release(_ context.Context, id uuid.UUID, workerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claims[id] == workerID {
		delete(r.claims, id)
	}
	return nil
}

func (r *fakeTemplateRepo) Complete(_ context.Context, id uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[id]
	if !ok {
		return domain.ErrTemplateNotFound
	}
	tmpl.Status = domain.TemplateStatusCompleted
	delete(r.claims, id)
	return nil
}

// fakeLedger is an in-memory InvoiceLedger, idempotent on (template, due date).
type fakeLedger struct {
	mu       sync.Mutex
	invoices []domain.LedgerInvoice
	writeErr error
}

func (l *fakeLedger) Write(_ context.Context, inv *domain.LedgerInvoice) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return uuid.Nil, l.writeErr
	}
	for _, existing := range l.invoices {
		if existing.TemplateID == inv.TemplateID && existing.DueDate.Equal(inv.DueDate) {
			return existing.ID, nil
		}
	}
	cp := *inv
	cp.CreatedAt = time.Now().UTC()
	l.invoices = append(l.invoices, cp)
	return cp.ID, nil
}

func (l *fakeLedger) ListForTemplate(_ context.Context, tenantID, templateID uuid.UUID, limit int32) ([]domain.LedgerInvoiceRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.LedgerInvoiceRef
	for i := len(l.invoices) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		inv := l.invoices[i]
		if inv.TenantID != tenantID || inv.TemplateID != templateID {
			continue
		}
		out = append(out, domain.LedgerInvoiceRef{
			ID:          inv.ID,
			DueDate:     inv.DueDate,
			TotalAmount: inv.TotalAmount,
			Currency:    inv.Currency,
			IssuedAt:    inv.IssuedAt,
		})
	}
	return out, nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.invoices)
}

// fakeCustomers is an in-memory CustomerDirectory.
type fakeCustomers struct {
	customers map[uuid.UUID]domain.Customer
}

func (d *fakeCustomers) Lookup(_ context.Context, tenantID, id uuid.UUID) (*domain.Customer, error) {
	c, ok := d.customers[id]
	if !ok || c.TenantID != tenantID {
		return nil, domain.ErrCustomerNotFound
	}
	cp := c
	return &cp, nil
}
