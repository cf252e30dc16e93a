// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/subcmds/cmdutil"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/visvasity/cli"
)

type Status struct {
	cmdutil.ClientFlags

	noProcessStats bool
}

func (c *Status) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.BoolVar(&c.noProcessStats, "no-process-stats", false, "when true, server process stats are not printed")
	return "status", fset, cli.CmdFunc(c.run)
}

func (c *Status) Purpose() string {
	return "Prints a summary of the replication service"
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}

	resp, err := cmdutil.Post[api.StatusResponse](ctx, &c.ClientFlags, api.StatusPath, &api.StatusRequest{})
	if err != nil {
		return err
	}

	stdout := cli.Stdout(ctx)
	fmt.Fprintf(stdout, "Uptime: %s\n", time.Duration(resp.UptimeSecs)*time.Second)
	fmt.Fprintf(stdout, "Users: %d\n", resp.NumUsers)
	fmt.Fprintf(stdout, "Orders: %d\n", resp.NumOrders)
	fmt.Fprintf(stdout, "Replications: %d ok, %d failed\n", resp.NumReplicationsOK, resp.NumReplicationsFailed)

	if !c.noProcessStats {
		if err := c.printProcessStats(ctx, stdout); err != nil {
			fmt.Fprintf(stdout, "Server process stats are unavailable: %v\n", err)
		}
	}
	return nil
}

// printProcessStats resolves the server pid through the /pid endpoint and
// prints its resource usage. Only meaningful when the server runs on the
// same host.
func (c *Status) printProcessStats(ctx context.Context, stdout io.Writer) error {
	addrURL := c.ClientFlags.AddressURL()
	addrURL.Path = path.Join(addrURL.Path, "/pid")
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, addrURL.String(), nil)
	if err != nil {
		return err
	}
	httpResp, err := c.ClientFlags.HttpClient().Do(r)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status code %d", httpResp.StatusCode)
	}
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return err
	}
	pid, err := strconv.ParseInt(string(data), 10, 32)
	if err != nil {
		return fmt.Errorf("could not parse server pid %q: %w", data, err)
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nServer PID: %d\n", pid)
	if v, err := proc.CPUPercentWithContext(ctx); err == nil {
		fmt.Fprintf(stdout, "CPU: %.02f%%\n", v)
	}
	if v, err := proc.MemoryInfoWithContext(ctx); err == nil {
		fmt.Fprintf(stdout, "Memory: %d MB resident, %d MB virtual\n", v.RSS/1024/1024, v.VMS/1024/1024)
	}
	if v, err := proc.NumThreadsWithContext(ctx); err == nil {
		fmt.Fprintf(stdout, "Threads: %d\n", v)
	}
	return nil
}
