// Copyright (c) 2025 BVK Chaitanya

package api

import "github.com/shopspring/decimal"

type UserAddRequest struct {
	Role string

	BrokerAccountCode string
	BrokerUserID      string
	BrokerPassword    string

	PublicIP string

	Balance decimal.Decimal
}

type UserAddResponse struct {
	ID int64
}

type UserListRequest struct {
}

type UserListResponseItem struct {
	ID int64

	Role string

	Active bool

	BrokerAccountCode string

	Balance decimal.Decimal
}

type UserListResponse struct {
	Users []*UserListResponseItem
}
