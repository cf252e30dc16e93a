// Copyright (c) 2025 BVK Chaitanya

package follower

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type List struct {
	cmdutil.ClientFlags

	masterID int64
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Int64Var(&c.masterID, "master-id", 0, "user id of the master account")
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Prints followers linked to a master account"
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if c.masterID == 0 {
		return fmt.Errorf("master-id flag is required")
	}

	req := &api.FollowerListRequest{MasterID: c.masterID}
	resp, err := cmdutil.Post[api.FollowerListResponse](ctx, &c.ClientFlags, api.FollowerListPath, req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cli.Stdout(ctx), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Follower\tActive\tStrategy\tRatio\tPercent\tFixedQty\t\n")
	for _, f := range resp.Followers {
		fmt.Fprintf(tw, "%d\t%t\t%s\t%s\t%s\t%d\t\n", f.FollowerID, f.Active, f.Strategy, f.Ratio.String(), f.Percent.String(), f.FixedQuantity)
	}
	return tw.Flush()
}
