package main

import (
	"context"
	"os"

	"github.com/drblury/nodeflow"
	"github.com/drblury/nodeflow/internal/cli"
	"github.com/drblury/nodeflow/internal/nodes/uniqueids"
)

func main() {
	var ids string

	cmd := cli.NewRootCommand("unique-ids", "Coordination-free unique id generator",
		func(ctx context.Context, logger nodeflow.Logger, opts ...nodeflow.Option) error {
			strategy, err := uniqueids.ParseStrategy(ids)
			if err != nil {
				return err
			}
			logger.Info("Starting id node", nodeflow.LogFields{"strategy": string(strategy)})
			return uniqueids.Run(ctx, strategy, opts...)
		})
	cmd.Flags().StringVar(&ids, "ids", string(uniqueids.StrategyCounter), "id strategy: counter or ulid")

	os.Exit(cli.Execute(cmd, os.Stderr))
}
