package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/onboard-chat/internal/retention"
)

var purgeOlderThan time.Duration

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete conversations idle for longer than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, cfg, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		ttl := purgeOlderThan
		if ttl <= 0 {
			ttl = cfg.Retention.TTL
		}
		if ttl <= 0 {
			return fmt.Errorf("set --older-than or RETENTION_TTL")
		}

		worker := retention.NewWorker(svc.Orchestrator, ttl, time.Hour, nil)
		deleted, err := worker.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d conversation(s) idle for more than %s\n", deleted, ttl)
		return nil
	},
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "idle duration, e.g. 720h (defaults to RETENTION_TTL)")
}
