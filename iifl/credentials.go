// Copyright (c) 2025 BVK Chaitanya

package iifl

import "fmt"

// Credentials holds the vendor-level API credentials issued by the broker.
type Credentials struct {
	BaseURL string `json:"base_url"`

	VendorKey    string `json:"vendor_key"`
	VendorCode   string `json:"vendor_code"`
	VendorSecret string `json:"vendor_secret"`
}

func (v *Credentials) Check() error {
	if len(v.BaseURL) == 0 {
		return fmt.Errorf("broker base url cannot be empty")
	}
	if len(v.VendorKey) == 0 {
		return fmt.Errorf("vendor key cannot be empty")
	}
	if len(v.VendorCode) == 0 {
		return fmt.Errorf("vendor code cannot be empty")
	}
	if len(v.VendorSecret) == 0 {
		return fmt.Errorf("vendor secret cannot be empty")
	}
	return nil
}

func (v *Credentials) Clone() *Credentials {
	c := *v
	return &c
}
