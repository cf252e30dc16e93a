// Copyright (c) 2025 BVK Chaitanya

package api

import "github.com/shopspring/decimal"

type FollowerLinkRequest struct {
	MasterID   int64
	FollowerID int64

	// Strategy is one of FIXED_RATIO, PERCENTAGE or FIXED_QUANTITY.
	Strategy string

	Ratio         decimal.Decimal
	Percent       decimal.Decimal
	FixedQuantity int64

	MaxOrderValue decimal.Decimal
	MaxDailyLoss  decimal.Decimal
}

type FollowerLinkResponse struct {
	RelationshipID int64
}

type FollowerUnlinkRequest struct {
	MasterID   int64
	FollowerID int64
}

type FollowerUnlinkResponse struct {
}

type FollowerListRequest struct {
	MasterID int64
}

type FollowerListResponseItem struct {
	FollowerID int64

	Active bool

	Strategy string

	Ratio         decimal.Decimal
	Percent       decimal.Decimal
	FixedQuantity int64
}

type FollowerListResponse struct {
	Followers []*FollowerListResponseItem
}
