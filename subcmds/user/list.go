// Copyright (c) 2025 BVK Chaitanya

package user

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
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Prints all registered user accounts"
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}

	resp, err := cmdutil.Post[api.UserListResponse](ctx, &c.ClientFlags, api.UserListPath, &api.UserListRequest{})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cli.Stdout(ctx), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tRole\tActive\tAccount\tBalance\t\n")
	for _, u := range resp.Users {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\t%s\t\n", u.ID, u.Role, u.Active, u.BrokerAccountCode, u.Balance.StringFixed(2))
	}
	return tw.Flush()
}
