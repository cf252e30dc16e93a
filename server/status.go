// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"time"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/kvutil"
	"github.com/bvk/replicon/store"
	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"
)

func (s *Server) doStatus(ctx context.Context, req *api.StatusRequest) (*api.StatusResponse, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	var numOrders int64
	begin, end := kvutil.PathRange(store.OrdersKeyspace)
	count := func(ctx context.Context, r kv.Reader, k string, o *gobs.Order) error {
		numOrders++
		return nil
	}
	if err := kvutil.AscendDB(ctx, s.db, begin, end, count); err != nil {
		return nil, err
	}

	return &api.StatusResponse{
		UptimeSecs:            int64(time.Since(s.startedAt).Seconds()),
		NumUsers:              len(users),
		NumOrders:             numOrders,
		NumReplicationsOK:     s.numOK.Load(),
		NumReplicationsFailed: s.numFailed.Load(),
	}, nil
}

func (s *Server) statusTelegramCmd(ctx context.Context, args []string) error {
	resp, err := s.doStatus(ctx, &api.StatusRequest{})
	if err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	fmt.Fprintf(stdout, "Uptime: %s\n", time.Duration(resp.UptimeSecs)*time.Second)
	fmt.Fprintf(stdout, "Users: %d\n", resp.NumUsers)
	fmt.Fprintf(stdout, "Orders: %d\n", resp.NumOrders)
	fmt.Fprintf(stdout, "Replications: %d ok, %d failed\n", resp.NumReplicationsOK, resp.NumReplicationsFailed)
	return nil
}
