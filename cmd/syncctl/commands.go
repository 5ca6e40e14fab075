package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/internal/pkg/adsync"
	"github.com/ManuelReschke/TrackFox/internal/pkg/bootstrap"
	"github.com/ManuelReschke/TrackFox/internal/pkg/config"
	"github.com/ManuelReschke/TrackFox/internal/pkg/env"
	"github.com/ManuelReschke/TrackFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/TrackFox/internal/pkg/security"
)

// loadServices is replaced in tests.
var loadServices = func(ctx context.Context) (*bootstrap.Services, error) {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log.SetLevel(bootstrap.ParseLogLevel(cfg.App.LogLevel))
	return bootstrap.New(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "syncctl",
		Short:         "TrackFox ad account sync trigger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(connectionCmd())
	rootCmd.AddCommand(enqueueDueCmd())
	rootCmd.AddCommand(genKeyCmd())
	return rootCmd
}

func runCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync the connections that are due, one after another",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 || limit > 100 {
				return fmt.Errorf("limit must be between 0 and 100")
			}
			services, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			defer services.Close()

			results, err := services.Orchestrator.SyncDue(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if failed := countFailed(results); failed > 0 {
				return fmt.Errorf("%d of %d connections failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum connections to sync (0 uses SYNC_BATCH_SIZE)")
	return cmd
}

func connectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connection [id]",
		Short: "Sync a single ad account connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			services, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			defer services.Close()

			res := services.Orchestrator.SyncConnection(cmd.Context(), id)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Status != models.SyncStatusSuccess {
				return fmt.Errorf("connection %d: %s", id, res.Error)
			}
			return nil
		},
	}
}

func enqueueDueCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "enqueue-due",
		Short: "Push the due connections onto the job queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			defer services.Close()

			n, err := jobqueue.EnqueueDueSyncs(services.Queue, services.Orchestrator, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d sync jobs\n", n)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum connections to enqueue (0 uses SYNC_BATCH_SIZE)")
	return cmd
}

func genKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-key",
		Short: "Print a new base64 key for SECURITY_TOKEN_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := security.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func parseConnectionID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid connection id %q", raw)
	}
	return uint(id), nil
}

func countFailed(results []adsync.Result) int {
	failed := 0
	for _, r := range results {
		if r.Status != models.SyncStatusSuccess && !r.Skipped {
			failed++
		}
	}
	return failed
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
