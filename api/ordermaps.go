// Copyright (c) 2025 BVK Chaitanya

package api

import "time"

type OrderMapGetRequest struct {
	MasterOrderID int64
}

type OrderMapGetResponseItem struct {
	FollowerUserID int64

	FollowerOrderID int64

	FollowerBrokerOrderID string

	Status string

	Latency time.Duration

	ErrorMessage string
}

type OrderMapGetResponse struct {
	MasterOrderID int64

	Maps []*OrderMapGetResponseItem
}
