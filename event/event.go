// Copyright (c) 2025 BVK Chaitanya

// Package event defines the normalized order event that travels on the event
// bus between the webhook ingress and the order workers.
package event

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	New    Kind = "NEW"
	Modify Kind = "MODIFY"
	Cancel Kind = "CANCEL"
	Fill   Kind = "FILL"
)

// Bus subjects, partitioned by event kind.
const (
	SubjectNew       = "orders.new"
	SubjectModified  = "orders.modified"
	SubjectCancelled = "orders.cancelled"
	SubjectFilled    = "orders.filled"
)

func Subjects() []string {
	return []string{SubjectNew, SubjectModified, SubjectCancelled, SubjectFilled}
}

func (k Kind) Subject() string {
	switch k {
	case Modify:
		return SubjectModified
	case Cancel:
		return SubjectCancelled
	case Fill:
		return SubjectFilled
	}
	return SubjectNew
}

// KindForSubject is the inverse of Kind.Subject.
func KindForSubject(subject string) (Kind, error) {
	switch subject {
	case SubjectNew:
		return New, nil
	case SubjectModified:
		return Modify, nil
	case SubjectCancelled:
		return Cancel, nil
	case SubjectFilled:
		return Fill, nil
	}
	return "", fmt.Errorf("unrecognized bus subject %q", subject)
}

// NormalizedOrderEvent carries every recognized field of a vendor webhook in
// normalized form. Unrecognized vendor fields pass through only in Metadata.
type NormalizedOrderEvent struct {
	Kind Kind `json:"event_kind"`

	// MasterOrderID is the local id of the master Order row upserted by the
	// ingress, not the broker-side order id.
	MasterOrderID int64 `json:"master_order_id"`

	MasterUserID int64 `json:"master_user_id"`

	BrokerOrderID   string `json:"broker_order_id"`
	ExchangeOrderID string `json:"exchange_order_id,omitempty"`

	Symbol       string `json:"symbol"`
	ScripCode    int64  `json:"scrip_code,omitempty"`
	Exchange     string `json:"exchange"`
	ExchangeType string `json:"exchange_type"`

	Side      string `json:"side"`
	OrderType string `json:"order_type"`

	Quantity          int64           `json:"quantity"`
	DisclosedQuantity int64           `json:"disclosed_quantity,omitempty"`
	Price             decimal.Decimal `json:"price"`
	TriggerPrice      decimal.Decimal `json:"trigger_price"`

	FilledQuantity  int64           `json:"filled_quantity"`
	PendingQuantity int64           `json:"pending_quantity,omitempty"`
	AveragePrice    decimal.Decimal `json:"average_price"`

	Status string `json:"status"`

	Product    string `json:"product,omitempty"`
	Validity   string `json:"validity,omitempty"`
	IsIntraday bool   `json:"is_intraday"`

	Timestamp time.Time `json:"timestamp"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Envelope is the bus message payload. IdempotencyKey is duplicated into the
// message headers for bus-level deduplication.
type Envelope struct {
	EventType      Kind                 `json:"event_type"`
	MasterOrderID  int64                `json:"master_order_id"`
	OrderData      NormalizedOrderEvent `json:"order_data"`
	Timestamp      time.Time            `json:"timestamp"`
	IdempotencyKey string               `json:"idempotency_key"`
}

func NewEnvelope(ev *NormalizedOrderEvent, at time.Time) *Envelope {
	return &Envelope{
		EventType:      ev.Kind,
		MasterOrderID:  ev.MasterOrderID,
		OrderData:      *ev,
		Timestamp:      at,
		IdempotencyKey: IdempotencyKey(ev.MasterOrderID, ev.Kind, at),
	}
}

// IdempotencyKey is stable for retransmissions of the same upstream webhook,
// which carry the same event timestamp.
func IdempotencyKey(masterOrderID int64, kind Kind, at time.Time) string {
	return fmt.Sprintf("%d_%s_%d", masterOrderID, kind, at.Unix())
}
