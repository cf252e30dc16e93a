// Copyright (c) 2025 BVK Chaitanya

package user

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/subcmds/cmdutil"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
	"golang.org/x/term"
)

type Add struct {
	cmdutil.ClientFlags

	role string

	accountCode string
	userID      string
	password    string

	publicIP string

	balance float64
}

func (c *Add) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("add", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.role, "role", "FOLLOWER", "user role; one of MASTER, FOLLOWER or BOTH")
	fset.StringVar(&c.accountCode, "account-code", "", "brokerage account client code")
	fset.StringVar(&c.userID, "user-id", "", "brokerage login user id")
	fset.StringVar(&c.password, "password", "", "brokerage login password (prompted when empty)")
	fset.StringVar(&c.publicIP, "public-ip", "", "public ip address reported to the brokerage")
	fset.Float64Var(&c.balance, "balance", 0, "account balance used for percentage scaling")
	return "add", fset, cli.CmdFunc(c.run)
}

func (c *Add) Purpose() string {
	return "Registers a master or follower account with the service"
}

func (c *Add) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if len(c.accountCode) == 0 {
		return fmt.Errorf("account-code flag is required")
	}

	// Prompt for the password so that it doesn't end up in the shell
	// history.
	if len(c.password) == 0 {
		fmt.Fprintf(os.Stderr, "Password for account %s: ", c.accountCode)
		data, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("could not read the password: %w", err)
		}
		c.password = string(data)
	}

	req := &api.UserAddRequest{
		Role:              c.role,
		BrokerAccountCode: c.accountCode,
		BrokerUserID:      c.userID,
		BrokerPassword:    c.password,
		PublicIP:          c.publicIP,
		Balance:           decimal.NewFromFloat(c.balance),
	}
	resp, err := cmdutil.Post[api.UserAddResponse](ctx, &c.ClientFlags, api.UserAddPath, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.Stdout(ctx), resp.ID)
	return nil
}
