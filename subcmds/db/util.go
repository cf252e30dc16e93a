// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"fmt"

	"github.com/bvk/replicon/gobs"
)

func TypeNameValue(typename string) (any, error) {
	var v any
	switch typename {
	case "User":
		v = new(gobs.User)
	case "FollowerRelationship":
		v = new(gobs.FollowerRelationship)
	case "Order":
		v = new(gobs.Order)
	case "OrderMap":
		v = new(gobs.OrderMap)
	case "AuditRecord":
		v = new(gobs.AuditRecord)
	case "SessionToken":
		v = new(gobs.SessionToken)
	case "OrderMapping":
		v = new(gobs.OrderMapping)
	case "DedupEntry":
		v = new(gobs.DedupEntry)
	case "KeyValue":
		v = new(gobs.KeyValue)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
