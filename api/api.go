// Copyright (c) 2025 BVK Chaitanya

// Package api defines the wire types of the HTTP endpoints.
package api

import "time"

// HTTP paths served by the daemon.
const (
	WebhookPath = "/webhooks/blaze/order"

	StatusPath = "/replicon/api/status"

	UserAddPath  = "/replicon/api/user/add"
	UserListPath = "/replicon/api/user/list"

	FollowerLinkPath   = "/replicon/api/follower/link"
	FollowerUnlinkPath = "/replicon/api/follower/unlink"
	FollowerListPath   = "/replicon/api/follower/list"

	OrderMapGetPath = "/replicon/api/ordermap/get"
)

// WebhookResponse acknowledges a vendor webhook.
type WebhookResponse struct {
	Success bool `json:"success"`

	Message string `json:"message"`

	ProcessedAt time.Time `json:"processed_at"`

	// ReplicationInitiated is true when the event was a new order and the
	// master has active followers.
	ReplicationInitiated bool `json:"replication_initiated"`

	FollowerCount int `json:"follower_count"`
}

type StatusRequest struct {
}

type StatusResponse struct {
	UptimeSecs int64

	NumUsers int

	NumOrders int64

	NumReplicationsOK     int64
	NumReplicationsFailed int64
}
