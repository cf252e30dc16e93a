// Copyright (c) 2025 BVK Chaitanya

package follower

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/subcmds/cmdutil"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
)

type Link struct {
	cmdutil.ClientFlags

	masterID   int64
	followerID int64

	strategy string

	ratio         float64
	percent       float64
	fixedQuantity int64

	maxOrderValue float64
	maxDailyLoss  float64
}

func (c *Link) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("link", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Int64Var(&c.masterID, "master-id", 0, "user id of the master account")
	fset.Int64Var(&c.followerID, "follower-id", 0, "user id of the follower account")
	fset.StringVar(&c.strategy, "strategy", "FIXED_RATIO", "copy strategy; one of FIXED_RATIO, PERCENTAGE or FIXED_QUANTITY")
	fset.Float64Var(&c.ratio, "ratio", 1, "quantity multiplier for the FIXED_RATIO strategy")
	fset.Float64Var(&c.percent, "percent", 0, "balance percentage for the PERCENTAGE strategy")
	fset.Int64Var(&c.fixedQuantity, "fixed-quantity", 0, "quantity for the FIXED_QUANTITY strategy")
	fset.Float64Var(&c.maxOrderValue, "max-order-value", 0, "per-order value limit; zero disables the limit")
	fset.Float64Var(&c.maxDailyLoss, "max-daily-loss", 0, "daily loss limit; zero disables the limit")
	return "link", fset, cli.CmdFunc(c.run)
}

func (c *Link) Purpose() string {
	return "Links a follower account to a master account"
}

func (c *Link) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if c.masterID == 0 || c.followerID == 0 {
		return fmt.Errorf("master-id and follower-id flags are required")
	}

	req := &api.FollowerLinkRequest{
		MasterID:      c.masterID,
		FollowerID:    c.followerID,
		Strategy:      c.strategy,
		Ratio:         decimal.NewFromFloat(c.ratio),
		Percent:       decimal.NewFromFloat(c.percent),
		FixedQuantity: c.fixedQuantity,
		MaxOrderValue: decimal.NewFromFloat(c.maxOrderValue),
		MaxDailyLoss:  decimal.NewFromFloat(c.maxDailyLoss),
	}
	resp, err := cmdutil.Post[api.FollowerLinkResponse](ctx, &c.ClientFlags, api.FollowerLinkPath, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.Stdout(ctx), resp.RelationshipID)
	return nil
}
