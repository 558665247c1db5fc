package main

import (
	"context"
	"os"

	"github.com/drblury/nodeflow"
	"github.com/drblury/nodeflow/internal/cli"
	"github.com/drblury/nodeflow/internal/nodes/broadcast"
)

func main() {
	cmd := cli.NewRootCommand("broadcast", "Single-node broadcast store",
		func(ctx context.Context, logger nodeflow.Logger, opts ...nodeflow.Option) error {
			return broadcast.Run(ctx, logger, opts...)
		})
	os.Exit(cli.Execute(cmd, os.Stderr))
}
