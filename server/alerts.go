// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/visvasity/topic"
)

// watchForFailures subscribes to the worker's per-follower outcomes, keeps
// the replication counters and alerts the operator on failures. Alerts for
// the same master are frozen for a while so a busy master doesn't flood the
// chat.
func (s *Server) watchForFailures(ctx context.Context) {
	results, err := topic.Subscribe(s.worker.Results(), 0, true)
	if err != nil {
		slog.Error("could not subscribe to replication results", "err", err)
		return
	}
	defer results.Close()
	context.AfterFunc(ctx, results.Close)

	resultCh, err := topic.ReceiveCh(results)
	if err != nil {
		slog.Error("could not open the results channel", "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case res, ok := <-resultCh:
			if !ok {
				return
			}
			switch {
			case res.Skipped:
			case res.Err != nil:
				s.numFailed.Add(1)
				s.alertOnFailure(ctx, res.MasterUserID, res.FollowerUserID, res.Err)
			default:
				s.numOK.Add(1)
			}
		}
	}
}

func (s *Server) alertOnFailure(ctx context.Context, masterUserID, followerUserID int64, cause error) {
	now := time.Now()
	key := fmt.Sprintf("alerts/replication-failed/%d", masterUserID)
	if deadline, ok := s.alertFreezeDeadlineMap[key]; ok {
		if now.Before(deadline) {
			return
		}
		delete(s.alertFreezeDeadlineMap, key)
	}
	s.SendMessage(ctx, now,
		"Replication of master %d's order to follower %d failed: %v",
		masterUserID, followerUserID, cause)
	s.alertFreezeDeadlineMap[key] = now.Add(s.opts.AlertFreeze)
}
