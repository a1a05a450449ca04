// Copyright (c) 2023 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/pricebot/subcmds"
	"github.com/visvasity/cli"
)

func main() {
	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Prices),
		new(subcmds.Links),
		new(subcmds.Setup),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
