// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/bvk/replicon/idgen"
	"github.com/visvasity/cli"
)

type IDGen struct {
	from  uint64
	count int
}

func (c *IDGen) run(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)

	// With two integer arguments prints the deterministic client-order-id
	// used for the (master order, follower user) pair.
	if len(args) == 2 {
		masterOrderID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("could not parse master order id %q: %w", args[0], err)
		}
		followerUserID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("could not parse follower user id %q: %w", args[1], err)
		}
		fmt.Fprintln(stdout, idgen.ClientOrderID(masterOrderID, followerUserID))
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("this command takes one (seed) or two (master-order-id, follower-user-id) arguments")
	}
	gen := idgen.New(args[0], c.from)
	for i := 0; i < c.count; i++ {
		offset, id := gen.Offset(), gen.NextID()
		fmt.Fprintf(stdout, "%d: %s\n", offset, id)
	}
	return nil
}

func (c *IDGen) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("idgen", flag.ContinueOnError)
	fset.Uint64Var(&c.from, "from", 0, "initial id offset")
	fset.IntVar(&c.count, "count", 10, "number of uuids")
	return "idgen", fset, cli.CmdFunc(c.run)
}

func (c *IDGen) Purpose() string {
	return "Prints client-order-ids for a seed string"
}
