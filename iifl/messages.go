// Copyright (c) 2025 BVK Chaitanya

package iifl

import "encoding/json"

// Every broker request and response is a {head, body} envelope. The head
// carries the vendor key; the body carries the operation payload.

type requestHead struct {
	Key string `json:"key"`
}

type request struct {
	Head requestHead `json:"head"`
	Body any         `json:"body"`
}

type response struct {
	Body json.RawMessage `json:"body"`
}

// result holds the status fields common to every response body.
type result struct {
	Success bool   `json:"Success"`
	Message string `json:"Message"`
}

func (r *result) status() (bool, string) {
	return r.Success, r.Message
}

type statuser interface {
	status() (bool, string)
}

type vendorLoginRequest struct {
	VendorCode   string `json:"VendorCode"`
	VendorSecret string `json:"VendorSecret"`
}

type vendorLoginResponse struct {
	result
	EncryptionKey string `json:"EncryptionKey"`
}

type clientLoginRequest struct {
	ClientCode    string `json:"ClientCode"`
	Password      string `json:"Password"`
	PublicIP      string `json:"PublicIP"`
	EncryptionKey string `json:"EncryptionKey"`
}

type clientLoginResponse struct {
	result
	ClientToken string `json:"ClientToken"`
}

// OrderRequest is the payload for the place, modify and cancel operations.
// OrderFor selects the operation: "P" places, "M" modifies and "C" cancels.
type OrderRequest struct {
	ClientCode   string `json:"ClientCode"`
	OrderFor     string `json:"OrderFor"`
	Exchange     string `json:"Exchange"`
	ExchangeType string `json:"ExchangeType"`
	ScripCode    int64  `json:"ScripCode"`

	BuySell string  `json:"BuySell"`
	Qty     int64   `json:"Qty"`
	DisQty  int64   `json:"DisQty"`
	Price   float64 `json:"Price"`

	AtMarket      bool    `json:"AtMarket"`
	WithTrigger   bool    `json:"WithTrigger"`
	TriggerPrice  float64 `json:"TriggerPrice"`
	IsIntraday    bool    `json:"IsIntraday"`
	RemoteOrderID string  `json:"RemoteOrderID"`

	// BrokerOrderID identifies the order being modified or cancelled.
	BrokerOrderID string `json:"BrokerOrderID,omitempty"`
}

type OrderResponse struct {
	result
	BrokerOrderID   string `json:"BrokerOrderID"`
	ExchangeOrderID string `json:"ExchOrderID"`
	RMSCode         string `json:"RMSResponseCode"`
}

type orderStatusRequest struct {
	ClientCode    string `json:"ClientCode"`
	BrokerOrderID string `json:"BrokerOrderID"`
}

type OrderStatusResponse struct {
	result
	Status          string  `json:"Status"`
	PendingQty      int64   `json:"PendingQty"`
	TradedQty       int64   `json:"TradedQty"`
	AveragePrice    float64 `json:"AveragePrice"`
	ExchangeOrderID string  `json:"ExchOrderID"`
}
