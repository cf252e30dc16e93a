// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleMaster   Role = "MASTER"
	RoleFollower Role = "FOLLOWER"
	RoleBoth     Role = "BOTH"
)

func (r Role) IsMaster() bool {
	return r == RoleMaster || r == RoleBoth
}

func (r Role) IsFollower() bool {
	return r == RoleFollower || r == RoleBoth
}

type User struct {
	ID int64

	Role   Role
	Active bool

	// BrokerAccountCode is the broker-side account code carried in webhook
	// payloads (e.g. "MASTER001").
	BrokerAccountCode string

	BrokerUserID string

	// BrokerPassword holds the encrypted broker password. Never logged.
	BrokerPassword string

	PublicIP string

	Balance decimal.Decimal

	CreatedAt time.Time
}

type CopyStrategy string

const (
	FixedRatio    CopyStrategy = "FIXED_RATIO"
	Percentage    CopyStrategy = "PERCENTAGE"
	FixedQuantity CopyStrategy = "FIXED_QUANTITY"
)

type FollowerRelationship struct {
	ID int64

	MasterID   int64
	FollowerID int64

	Active     bool
	AutoFollow bool

	Strategy      CopyStrategy
	Ratio         decimal.Decimal
	Percent       decimal.Decimal
	FixedQuantity int64

	MaxOrderValue decimal.Decimal
	MaxDailyLoss  decimal.Decimal

	CreatedAt time.Time
}
