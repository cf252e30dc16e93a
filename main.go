// Copyright (c) 2025 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/replicon/subcmds"
	"github.com/bvk/replicon/subcmds/db"
	"github.com/bvk/replicon/subcmds/follower"
	"github.com/bvk/replicon/subcmds/ordermap"
	"github.com/bvk/replicon/subcmds/setup"
	"github.com/bvk/replicon/subcmds/user"
	"github.com/visvasity/cli"
)

func main() {
	dbCmds := []cli.Command{
		new(db.Get),
		new(db.Set),
		new(db.Delete),
		new(db.List),
		new(db.Backup),
		new(db.Restore),
	}

	userCmds := []cli.Command{
		new(user.Add),
		new(user.List),
	}

	followerCmds := []cli.Command{
		new(follower.Link),
		new(follower.Unlink),
		new(follower.List),
	}

	ordermapCmds := []cli.Command{
		new(ordermap.Get),
	}

	setupCmds := []cli.Command{
		new(setup.IIFL),
		new(setup.Telegram),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		new(subcmds.IDGen),
		cli.NewGroup("db", "View/update database directly", dbCmds...),
		cli.NewGroup("user", "Manage master and follower accounts", userCmds...),
		cli.NewGroup("follower", "Manage master-follower links", followerCmds...),
		cli.NewGroup("ordermap", "View order replication mappings", ordermapCmds...),
		cli.NewGroup("setup", "Configure api keys and notifications", setupCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
