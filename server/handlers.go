// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/gobs"
)

// postHandler adapts a typed request/response function into an http handler.
func postHandler[REQ, RESP any](fn func(context.Context, *REQ) (*RESP, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req := new(REQ)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := fn(r.Context(), req)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, os.ErrNotExist):
				status = http.StatusNotFound
			case errors.Is(err, os.ErrExist), errors.Is(err, os.ErrInvalid):
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
}

func (s *Server) doUserAdd(ctx context.Context, req *api.UserAddRequest) (*api.UserAddResponse, error) {
	role := gobs.Role(req.Role)
	switch role {
	case gobs.RoleMaster, gobs.RoleFollower, gobs.RoleBoth:
	default:
		return nil, fmt.Errorf("unrecognized role %q: %w", req.Role, os.ErrInvalid)
	}
	u := &gobs.User{
		Role:              role,
		Active:            true,
		BrokerAccountCode: req.BrokerAccountCode,
		BrokerUserID:      req.BrokerUserID,
		BrokerPassword:    req.BrokerPassword,
		PublicIP:          req.PublicIP,
		Balance:           req.Balance,
	}
	id, err := s.store.AddUser(ctx, u)
	if err != nil {
		return nil, err
	}
	return &api.UserAddResponse{ID: id}, nil
}

func (s *Server) doUserList(ctx context.Context, req *api.UserListRequest) (*api.UserListResponse, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	resp := new(api.UserListResponse)
	for _, u := range users {
		resp.Users = append(resp.Users, &api.UserListResponseItem{
			ID:                u.ID,
			Role:              string(u.Role),
			Active:            u.Active,
			BrokerAccountCode: u.BrokerAccountCode,
			Balance:           u.Balance,
		})
	}
	return resp, nil
}

func (s *Server) doFollowerLink(ctx context.Context, req *api.FollowerLinkRequest) (*api.FollowerLinkResponse, error) {
	strategy := gobs.CopyStrategy(req.Strategy)
	switch strategy {
	case gobs.FixedRatio, gobs.Percentage, gobs.FixedQuantity:
	default:
		return nil, fmt.Errorf("unrecognized copy strategy %q: %w", req.Strategy, os.ErrInvalid)
	}
	rel := &gobs.FollowerRelationship{
		MasterID:      req.MasterID,
		FollowerID:    req.FollowerID,
		Active:        true,
		AutoFollow:    true,
		Strategy:      strategy,
		Ratio:         req.Ratio,
		Percent:       req.Percent,
		FixedQuantity: req.FixedQuantity,
		MaxOrderValue: req.MaxOrderValue,
		MaxDailyLoss:  req.MaxDailyLoss,
	}
	id, err := s.store.LinkFollower(ctx, rel)
	if err != nil {
		return nil, err
	}
	return &api.FollowerLinkResponse{RelationshipID: id}, nil
}

func (s *Server) doFollowerUnlink(ctx context.Context, req *api.FollowerUnlinkRequest) (*api.FollowerUnlinkResponse, error) {
	if err := s.store.UnlinkFollower(ctx, req.MasterID, req.FollowerID); err != nil {
		return nil, err
	}
	return &api.FollowerUnlinkResponse{}, nil
}

func (s *Server) doFollowerList(ctx context.Context, req *api.FollowerListRequest) (*api.FollowerListResponse, error) {
	rels, err := s.store.FollowersOf(ctx, req.MasterID)
	if err != nil {
		return nil, err
	}
	resp := new(api.FollowerListResponse)
	for _, rel := range rels {
		resp.Followers = append(resp.Followers, &api.FollowerListResponseItem{
			FollowerID:    rel.FollowerID,
			Active:        rel.Active,
			Strategy:      string(rel.Strategy),
			Ratio:         rel.Ratio,
			Percent:       rel.Percent,
			FixedQuantity: rel.FixedQuantity,
		})
	}
	return resp, nil
}

func (s *Server) doOrderMapGet(ctx context.Context, req *api.OrderMapGetRequest) (*api.OrderMapGetResponse, error) {
	maps, err := s.store.OrderMapsForMaster(ctx, req.MasterOrderID)
	if err != nil {
		return nil, err
	}
	resp := &api.OrderMapGetResponse{MasterOrderID: req.MasterOrderID}
	for _, m := range maps {
		resp.Maps = append(resp.Maps, &api.OrderMapGetResponseItem{
			FollowerUserID:        m.FollowerUserID,
			FollowerOrderID:       m.FollowerOrderID,
			FollowerBrokerOrderID: m.FollowerBrokerOrderID,
			Status:                string(m.Status),
			Latency:               m.Latency,
			ErrorMessage:          m.ErrorMessage,
		})
	}
	return resp, nil
}
