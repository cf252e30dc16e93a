// Copyright (c) 2025 BVK Chaitanya

// Package webhook implements the ingress for master order notifications. A
// vendor webhook is validated, recorded as a master order and published on
// the event bus for replication.
package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/bvk/replicon/event"
	"github.com/shopspring/decimal"
)

// Payload is the vendor webhook body. Field spellings vary across vendor
// versions, so everything is normalized before it reaches the bus.
type Payload struct {
	AccountCode string `json:"account_id"`
	EventType   string `json:"event_type"`

	// OrderID is the vendor's identifier for the master order. The broker
	// side id is reported separately by some vendor versions.
	OrderID         string `json:"order_id"`
	BrokerOrderID   string `json:"broker_order_id,omitempty"`
	ExchangeOrderID string `json:"exchange_order_id,omitempty"`

	Symbol    string `json:"symbol"`
	ScripCode int64  `json:"scrip_code,omitempty"`
	Exchange  string `json:"exchange"`
	Segment   string `json:"segment"`

	Side      string `json:"transaction_type"`
	OrderType string `json:"order_type"`
	Product   string `json:"product"`
	Validity  string `json:"validity,omitempty"`

	Quantity          int64           `json:"quantity"`
	DisclosedQuantity int64           `json:"disclosed_quantity,omitempty"`
	Price             decimal.Decimal `json:"price"`
	TriggerPrice      decimal.Decimal `json:"trigger_price"`

	FilledQuantity  int64           `json:"filled_quantity"`
	PendingQuantity int64           `json:"pending_quantity,omitempty"`
	AveragePrice    decimal.Decimal `json:"average_price"`

	Status string `json:"status"`

	Timestamp time.Time `json:"timestamp"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

func (p *Payload) Check() error {
	if len(strings.TrimSpace(p.AccountCode)) == 0 {
		return fmt.Errorf("account code cannot be empty")
	}
	if len(strings.TrimSpace(p.OrderID)) == 0 {
		return fmt.Errorf("order id cannot be empty")
	}
	if len(strings.TrimSpace(p.Symbol)) == 0 && p.ScripCode == 0 {
		return fmt.Errorf("payload needs a symbol or a scrip code")
	}
	if _, err := MapSide(p.Side); err != nil {
		return err
	}
	switch MapEventKind(p.EventType) {
	case event.New, event.Modify:
		if p.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive")
		}
	default:
		// Cancel and fill notifications from some vendor versions omit the
		// quantity.
		if p.Quantity < 0 {
			return fmt.Errorf("quantity cannot be negative")
		}
	}
	if p.FilledQuantity < 0 {
		return fmt.Errorf("filled quantity cannot be negative")
	}
	if p.DisclosedQuantity < 0 || p.DisclosedQuantity > p.Quantity {
		return fmt.Errorf("disclosed quantity must be between zero and the order quantity")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	return nil
}

// brokerOrderID prefers the explicit broker side id and falls back to the
// vendor order id, which is the broker id for most vendor versions.
func (p *Payload) brokerOrderID() string {
	if v := strings.TrimSpace(p.BrokerOrderID); len(v) != 0 {
		return v
	}
	return strings.TrimSpace(p.OrderID)
}
