// Copyright (c) 2025 BVK Chaitanya

package follower

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Unlink struct {
	cmdutil.ClientFlags

	masterID   int64
	followerID int64
}

func (c *Unlink) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("unlink", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Int64Var(&c.masterID, "master-id", 0, "user id of the master account")
	fset.Int64Var(&c.followerID, "follower-id", 0, "user id of the follower account")
	return "unlink", fset, cli.CmdFunc(c.run)
}

func (c *Unlink) Purpose() string {
	return "Removes a follower account's link to a master account"
}

func (c *Unlink) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if c.masterID == 0 || c.followerID == 0 {
		return fmt.Errorf("master-id and follower-id flags are required")
	}

	req := &api.FollowerUnlinkRequest{
		MasterID:   c.masterID,
		FollowerID: c.followerID,
	}
	if _, err := cmdutil.Post[api.FollowerUnlinkResponse](ctx, &c.ClientFlags, api.FollowerUnlinkPath, req); err != nil {
		return err
	}
	return nil
}
