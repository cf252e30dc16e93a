// Copyright (c) 2025 BVK Chaitanya

package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/bvk/replicon/event"
	"github.com/bvk/replicon/gobs"
)

// MapExchange maps vendor exchange names to the broker's single letter
// codes. Unrecognized names fall back to the NSE.
func MapExchange(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "NSE", "NFO", "N":
		return "N"
	case "BSE", "B":
		return "B"
	case "MCX", "M":
		return "M"
	}
	return "N"
}

// MapSegment maps the vendor segment to the broker's exchange type code:
// cash or derivatives.
func MapSegment(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "FO", "F&O", "FUTURES", "OPTIONS", "DERIVATIVES", "D":
		return "D"
	}
	return "C"
}

// MapOrderType maps the vendor order type spellings to the normalized enum.
// An unknown type with a positive price is treated as a limit order, else as
// a market order.
func MapOrderType(v string, hasPrice bool) gobs.OrderType {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "MARKET", "MKT":
		return gobs.Market
	case "LIMIT", "LMT", "L":
		return gobs.Limit
	case "SL", "STOPLOSS", "STOP_LOSS":
		return gobs.StopLoss
	case "SLM", "SL-M", "STOPLOSS_MARKET", "STOP_LOSS_MARKET":
		return gobs.StopLossMarket
	}
	if hasPrice {
		return gobs.Limit
	}
	return gobs.Market
}

func MapSide(v string) (gobs.OrderSide, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "BUY", "B":
		return gobs.Buy, nil
	case "SELL", "S":
		return gobs.Sell, nil
	}
	return "", fmt.Errorf("unrecognized transaction type %q", v)
}

// IsIntraday reports if the product selects an intraday position.
func IsIntraday(product string) bool {
	switch strings.ToUpper(strings.TrimSpace(product)) {
	case "INTRADAY", "MIS", "BO", "CO":
		return true
	}
	return false
}

// MapEventKind maps the vendor event names to event kinds. Unknown names
// are treated as new orders so that no master activity is silently dropped.
func MapEventKind(v string) event.Kind {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "ORDER_PLACED", "NEW":
		return event.New
	case "ORDER_MODIFIED", "MODIFY", "MODIFIED":
		return event.Modify
	case "ORDER_CANCELLED", "ORDER_CANCELED", "CANCEL", "CANCELLED":
		return event.Cancel
	case "ORDER_FILLED", "ORDER_TRADED", "FILL", "TRADE":
		return event.Fill
	}
	return event.New
}

// MapBrokerStatus maps broker status strings to the normalized order status.
// Unrecognized statuses come back empty so the stored status is left alone.
func MapBrokerStatus(v string) gobs.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "COMPLETE", "COMPLETED", "FILLED", "FULLY EXECUTED":
		return gobs.OrderFilled
	case "PARTIALLY FILLED", "PARTIALLY_FILLED":
		return gobs.OrderPartiallyFilled
	case "CANCELLED", "CANCELED":
		return gobs.OrderCancelled
	case "REJECTED":
		return gobs.OrderRejected
	case "PENDING", "OPEN":
		return gobs.OrderPending
	case "SUBMITTED", "PLACED":
		return gobs.OrderSubmitted
	}
	return ""
}

// Normalize converts a validated payload into the bus event form.
// Normalization is stable: re-normalizing a retransmitted payload yields a
// byte-identical event.
func Normalize(p *Payload) (*event.NormalizedOrderEvent, error) {
	side, err := MapSide(p.Side)
	if err != nil {
		return nil, err
	}
	at := p.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	ev := &event.NormalizedOrderEvent{
		Kind:              MapEventKind(p.EventType),
		BrokerOrderID:     p.brokerOrderID(),
		ExchangeOrderID:   strings.TrimSpace(p.ExchangeOrderID),
		Symbol:            strings.ToUpper(strings.TrimSpace(p.Symbol)),
		ScripCode:         p.ScripCode,
		Exchange:          MapExchange(p.Exchange),
		ExchangeType:      MapSegment(p.Segment),
		Side:              string(side),
		OrderType:         string(MapOrderType(p.OrderType, p.Price.IsPositive())),
		Quantity:          p.Quantity,
		DisclosedQuantity: p.DisclosedQuantity,
		Price:             p.Price,
		TriggerPrice:      p.TriggerPrice,
		FilledQuantity:    p.FilledQuantity,
		PendingQuantity:   p.PendingQuantity,
		AveragePrice:      p.AveragePrice,
		Status:            string(MapBrokerStatus(p.Status)),
		Product:           strings.ToUpper(strings.TrimSpace(p.Product)),
		Validity:          strings.ToUpper(strings.TrimSpace(p.Validity)),
		IsIntraday:        IsIntraday(p.Product),
		Timestamp:         at.UTC(),
		Metadata:          p.Metadata,
	}
	return ev, nil
}
