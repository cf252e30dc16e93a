// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

type OrderType string

const (
	Market         OrderType = "MARKET"
	Limit          OrderType = "LIMIT"
	StopLoss       OrderType = "STOP_LOSS"
	StopLossMarket OrderType = "STOP_LOSS_MARKET"
)

type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderSubmitted       OrderStatus = "SUBMITTED"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderFailed          OrderStatus = "FAILED"
)

// Done returns true for terminal order states.
func (s OrderStatus) Done() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderFailed:
		return true
	}
	return false
}

type Order struct {
	ID int64

	UserID   int64
	IsMaster bool

	// MasterOrderID is zero on master orders and holds the parent master
	// order id on follower orders.
	MasterOrderID int64

	Symbol       string
	ScripCode    int64
	Exchange     string
	ExchangeType string

	Side OrderSide
	Type OrderType

	Quantity     int64
	Price        decimal.Decimal
	TriggerPrice decimal.Decimal

	FilledQuantity int64
	AveragePrice   decimal.Decimal

	Status OrderStatus

	BrokerOrderID   string
	ExchangeOrderID string

	IsIntraday bool

	ErrorMessage string

	ReplicationLatency time.Duration

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ReplicationStatus string

const (
	ReplicationPending ReplicationStatus = "PENDING"
	ReplicationSuccess ReplicationStatus = "SUCCESS"
	ReplicationFailed  ReplicationStatus = "FAILED"
)

// OrderMap records one replication attempt of a master order onto one
// follower account. At most one row exists per (master-order, follower-user)
// pair.
type OrderMap struct {
	ID int64

	MasterOrderID  int64
	FollowerUserID int64

	// FollowerOrderID is zero when the replication attempt failed before a
	// follower order row was created.
	FollowerOrderID int64

	MasterBrokerOrderID   string
	FollowerBrokerOrderID string

	ScalingFactor    decimal.Decimal
	OriginalQuantity int64
	FollowerQuantity int64

	Status ReplicationStatus

	Latency      time.Duration
	ErrorMessage string

	CreatedAt time.Time
}

type AuditRecord struct {
	Seq int64

	Action string

	UserID  int64
	OrderID int64

	Details string

	At time.Time
}

// Audit action names.
const (
	AuditWebhookReceived      = "WEBHOOK_RECEIVED"
	AuditReplicationStarted   = "REPLICATION_STARTED"
	AuditReplicationCompleted = "REPLICATION_COMPLETED"
	AuditReplicationFailed    = "REPLICATION_FAILED"
	AuditAuthSuccess          = "IIFL_AUTH_SUCCESS"
	AuditAuthFailed           = "IIFL_AUTH_FAILED"
	AuditOrderPlaced          = "ORDER_PLACED"
	AuditOrderModified        = "ORDER_MODIFIED"
	AuditOrderCancelled       = "ORDER_CANCELLED"
)
