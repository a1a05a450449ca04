// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/pricebot/asset"
	"github.com/bvk/pricebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Links struct {
	cmdutil.DataFlags
}

func (c *Links) Purpose() string {
	return "Prints the chart links for the tracked assets"
}

func (c *Links) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("links", flag.ContinueOnError)
	c.DataFlags.SetFlags(fset)
	return "links", fset, cli.CmdFunc(c.run)
}

func (c *Links) Description() string {
	return `

Command "links" prints the chart links for all tracked assets or only for the
asset ids given as arguments.

  $ pricebot links bitcoin ethereum
`
}

func (c *Links) run(ctx context.Context, args []string) error {
	table, err := c.AssetTable()
	if err != nil {
		return err
	}

	assets := table.Assets()
	if len(args) != 0 {
		assets = assets[:0:0]
		for _, id := range args {
			a, ok := table.Lookup(id)
			if !ok {
				return fmt.Errorf("asset %q is not tracked: %w", id, os.ErrNotExist)
			}
			assets = append(assets, a)
		}
	}

	stdout := cli.Stdout(ctx)
	for _, a := range assets {
		fmt.Fprintf(stdout, "%s (%s)\n", a.Symbol, a.ID)
		for _, link := range asset.ChartLinks(a) {
			fmt.Fprintf(stdout, "  %-12s %s\n", link.Name, link.URL)
		}
	}
	return nil
}
