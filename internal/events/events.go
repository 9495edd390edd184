package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys published on the topic exchange.
const (
	SaleCompleted = "sale.completed"
	SaleCancelled = "sale.cancelled"
	StockLow      = "stock.low"
	GoodsReceived = "goods.received"
)

// Publisher sends domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// Envelope wraps every event body on the wire.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope encodes payload under a fresh event ID.
func NewEnvelope(routingKey string, payload any, at time.Time) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not marshal %s payload: %w", routingKey, err)
	}
	return &Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		OccurredAt: at.UTC(),
		Data:       data,
	}, nil
}

type SaleCompletedEvent struct {
	SaleID        int             `json:"sale_id"`
	SaleNumber    string          `json:"sale_number"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	Units         int             `json:"units"`
	OperatorID    int             `json:"operator_id"`
}

type SaleCancelledEvent struct {
	SaleID     int    `json:"sale_id"`
	SaleNumber string `json:"sale_number"`
	OperatorID int    `json:"operator_id"`
}

type StockLowEvent struct {
	ProductID    int    `json:"product_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	OnHand       int    `json:"on_hand"`
	MinimumStock int    `json:"minimum_stock"`
	ReorderLevel int    `json:"reorder_level"`
	Status       string `json:"status"`
}

type GoodsReceivedEvent struct {
	ReceiptID     int             `json:"receipt_id"`
	ReceiptNumber string          `json:"receipt_number"`
	SupplierID    int             `json:"supplier_id"`
	TotalCost     decimal.Decimal `json:"total_cost"`
}

// NopPublisher drops every event. Used when RABBITMQ_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
