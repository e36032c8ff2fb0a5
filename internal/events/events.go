// Package events publishes generation outcomes for downstream consumers
// (notification delivery, dashboards). Delivery is best-effort: a publish
// failure is logged and never affects billing correctness.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SubjectInvoiceGenerated is the NATS subject for successful generations.
const SubjectInvoiceGenerated = "skuld.invoice.generated"

// InvoiceGenerated is emitted after a generation attempt commits.
type InvoiceGenerated struct {
	InvoiceID   uuid.UUID `json:"invoice_id"`
	TemplateID  uuid.UUID `json:"template_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	DueDate     time.Time `json:"due_date"`
	TotalAmount string    `json:"total_amount"`
	Currency    string    `json:"currency"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Publisher emits generation events.
type Publisher interface {
	PublishInvoiceGenerated(ctx context.Context, event InvoiceGenerated) error
}

// NATSPublisher publishes events to a NATS server.
type NATSPublisher struct {
	conn *nats.Conn
}

// Compile-time check that NATSPublisher implements Publisher.
var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to the given NATS URL.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

// PublishInvoiceGenerated emits the event on SubjectInvoiceGenerated.
func (p *NATSPublisher) PublishInvoiceGenerated(_ context.Context, event InvoiceGenerated) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectInvoiceGenerated, payload)
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoopPublisher discards events. Used when NATS is not configured.
type NoopPublisher struct{}

// Compile-time check that NoopPublisher implements Publisher.
var _ Publisher = NoopPublisher{}

// PublishInvoiceGenerated discards the event.
func (NoopPublisher) PublishInvoiceGenerated(context.Context, InvoiceGenerated) error {
	return nil
}
