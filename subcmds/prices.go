// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bvk/pricebot/message"
	"github.com/bvk/pricebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Prices struct {
	cmdutil.DataFlags

	timeout time.Duration
}

func (c *Prices) Purpose() string {
	return "Fetches the current prices once and prints the channel message"
}

func (c *Prices) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("prices", flag.ContinueOnError)
	c.DataFlags.SetFlags(fset)
	fset.DurationVar(&c.timeout, "timeout", time.Minute, "timeout for fetching the prices")
	return "prices", fset, cli.CmdFunc(c.run)
}

func (c *Prices) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments: %w", os.ErrInvalid)
	}
	if err := c.LoadEnv(); err != nil {
		return err
	}
	secrets, err := c.Secrets()
	if err != nil {
		return err
	}
	feed, err := c.NewFeed(secrets)
	if err != nil {
		return err
	}

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snaps, err := feed.Fetch(fctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.Stdout(ctx), message.Format(snaps, snaps.FetchTime))
	return nil
}
