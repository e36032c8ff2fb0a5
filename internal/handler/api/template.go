package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/skuld/internal/domain"
)

// TemplateHandler exposes the recurring invoice template API.
type TemplateHandler struct {
	service  domain.TemplateService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(service domain.TemplateService, logger *slog.Logger) *TemplateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateHandler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// =============================================================================
// REQUEST / RESPONSE SHAPES
// =============================================================================

type lineItemRequest struct {
	ProductID       *uuid.UUID      `json:"product_id"`
	Name            string          `json:"name" validate:"required"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int32           `json:"quantity" validate:"gte=1"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRatePercent  decimal.Decimal `json:"tax_rate_percent"`
}

type createTemplateRequest struct {
	Name       string            `json:"name" validate:"required"`
	CustomerID uuid.UUID         `json:"customer_id" validate:"required"`
	Frequency  string            `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Interval   int32             `json:"interval" validate:"gte=1"`
	StartDate  time.Time         `json:"start_date" validate:"required"`
	EndDate    *time.Time        `json:"end_date"`
	Items      []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	Currency   string            `json:"currency"`
	Notes      string            `json:"notes"`
}

type updateTemplateRequest struct {
	Name       *string           `json:"name"`
	CustomerID *uuid.UUID        `json:"customer_id"`
	Frequency  *string           `json:"frequency" validate:"omitempty,oneof=daily weekly monthly yearly"`
	Interval   *int32            `json:"interval" validate:"omitempty,gte=1"`
	StartDate  *time.Time        `json:"start_date"`
	EndDate    *time.Time        `json:"end_date"`
	ClearEnd   bool              `json:"clear_end_date"`
	Items      []lineItemRequest `json:"items" validate:"omitempty,min=1,dive"`
	Notes      *string           `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused completed cancelled"`
}

type overrideScheduleRequest struct {
	NextInvoiceDate *time.Time `json:"next_invoice_date"`
	Status          *string    `json:"status" validate:"omitempty,oneof=active paused completed cancelled"`
}

type templateResponse struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	CustomerName    string            `json:"customer_name"`
	CustomerEmail   string            `json:"customer_email"`
	Frequency       string            `json:"frequency"`
	Interval        int32             `json:"interval"`
	StartDate       time.Time         `json:"start_date"`
	EndDate         *time.Time        `json:"end_date,omitempty"`
	NextInvoiceDate time.Time         `json:"next_invoice_date"`
	Items           []domain.LineItem `json:"items"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	TotalDiscount   decimal.Decimal   `json:"total_discount"`
	TotalTax        decimal.Decimal   `json:"total_tax"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`
	TotalGenerated  int32             `json:"total_generated"`
	LastGeneratedAt *time.Time        `json:"last_generated_at,omitempty"`
	Notes           string            `json:"notes"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type templateDetailResponse struct {
	templateResponse
	History []domain.LedgerInvoiceRef `json:"history"`
}

func toTemplateResponse(t *domain.RecurringTemplate) templateResponse {
	return templateResponse{
		ID:              t.ID,
		Name:            t.Name,
		CustomerID:      t.CustomerID,
		CustomerName:    t.CustomerName,
		CustomerEmail:   t.CustomerEmail,
		Frequency:       string(t.Frequency),
		Interval:        t.Interval,
		StartDate:       t.StartDate,
		EndDate:         t.EndDate,
		NextInvoiceDate: t.NextInvoiceDate,
		Items:           t.Items,
		Subtotal:        t.Subtotal,
		TotalDiscount:   t.TotalDiscount,
		TotalTax:        t.TotalTax,
		TotalAmount:     t.TotalAmount,
		Currency:        t.Currency,
		Status:          t.Status,
		TotalGenerated:  t.TotalGenerated,
		LastGeneratedAt: t.LastGeneratedAt,
		Notes:           t.Notes,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func toLineItems(items []lineItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, item := range items {
		out[i] = domain.LineItem{
			ProductID:       item.ProductID,
			Name:            item.Name,
			UnitPrice:       item.UnitPrice,
			Quantity:        item.Quantity,
			DiscountPercent: item.DiscountPercent,
			TaxRatePercent:  item.TaxRatePercent,
		}
	}
	return out
}

// =============================================================================
// HANDLERS
// =============================================================================

// Create handles POST /api/templates
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	tmpl, err := h.service.CreateTemplate(r.Context(), domain.CreateTemplateParams{
		Name:       req.Name,
		CustomerID: req.CustomerID,
		Frequency:  req.Frequency,
		Interval:   req.Interval,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Items:      toLineItems(req.Items),
		Currency:   req.Currency,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toTemplateResponse(tmpl))
}

// Get handles GET /api/templates/{id}
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	detail, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := templateDetailResponse{
		templateResponse: toTemplateResponse(&detail.Template),
		History:          detail.History,
	}
	if resp.History == nil {
		resp.History = []domain.LedgerInvoiceRef{}
	}
	respondJSON(w, http.StatusOK, resp)
}

// List handles GET /api/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt32(r, "limit", 50)
	offset := queryInt32(r, "offset", 0)

	templates, err := h.service.ListTemplates(r.Context(), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]templateResponse, len(templates))
	for i := range templates {
		out[i] = toTemplateResponse(&templates[i])
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": out})
}

// Update handles PATCH /api/templates/{id}
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req updateTemplateRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	params := domain.UpdateTemplateParams{
		Name:       req.Name,
		CustomerID: req.CustomerID,
		Frequency:  req.Frequency,
		Interval:   req.Interval,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		ClearEnd:   req.ClearEnd,
		Notes:      req.Notes,
	}
	if req.Items != nil {
		params.Items = toLineItems(req.Items)
	}

	tmpl, err := h.service.UpdateTemplate(r.Context(), id, params)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toTemplateResponse(tmpl))
}

// UpdateStatus handles POST /api/templates/{id}/status
func (h *TemplateHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req updateStatusRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	tmpl, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toTemplateResponse(tmpl))
}

// OverrideSchedule handles PATCH /api/templates/{id}/schedule
// Administrative override of the due marker and/or status.
func (h *TemplateHandler) OverrideSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req overrideScheduleRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.NextInvoiceDate == nil && req.Status == nil {
		respondError(w, r, domain.Invalid("template.override", "nothing to patch"))
		return
	}

	tmpl, err := h.service.OverrideSchedule(r.Context(), id, domain.OverrideScheduleParams{
		NextInvoiceDate: req.NextInvoiceDate,
		Status:          req.Status,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toTemplateResponse(tmpl))
}

// Delete handles DELETE /api/templates/{id}
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.service.DeleteTemplate(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode unmarshals the body and runs struct-tag validation, translating
// validator failures into field-level validation errors.
func (h *TemplateHandler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid("api.decode", "invalid request body")
	}

	if err := h.validate.Struct(dst); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			var ve error
			for _, fieldErr := range invalid {
				ve = domain.AddFieldError(ve, fieldErr.Field(), "failed "+fieldErr.Tag()+" validation")
			}
			return ve
		}
		return domain.Invalid("api.decode", "invalid request body")
	}
	return nil
}

// pathID extracts the {id} path segment as a UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.Invalid("api.path", "invalid template id")
	}
	return id, nil
}

// queryInt32 parses an int32 query parameter with a default.
func queryInt32(r *http.Request, key string, def int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v < 0 {
		return def
	}
	return int32(v)
}
