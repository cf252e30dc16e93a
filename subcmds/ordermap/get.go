// Copyright (c) 2025 BVK Chaitanya

package ordermap

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Get struct {
	cmdutil.ClientFlags
}

func (c *Get) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("get", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "get", fset, cli.CmdFunc(c.run)
}

func (c *Get) Purpose() string {
	return "Prints follower order mappings for a master order"
}

func (c *Get) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (master order id) argument")
	}
	masterOrderID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse master order id %q: %w", args[0], err)
	}

	req := &api.OrderMapGetRequest{MasterOrderID: masterOrderID}
	resp, err := cmdutil.Post[api.OrderMapGetResponse](ctx, &c.ClientFlags, api.OrderMapGetPath, req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cli.Stdout(ctx), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Follower\tOrder\tBrokerOrder\tStatus\tLatency\tError\t\n")
	for _, m := range resp.Maps {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t\n", m.FollowerUserID, m.FollowerOrderID, m.FollowerBrokerOrderID, m.Status, m.Latency, m.ErrorMessage)
	}
	return tw.Flush()
}
