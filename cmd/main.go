package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/drugcontent/pkg/config"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logx.Fatalf("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "drugcontent",
		Short:         "Content enhancement jobs for drug pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		queueCmd(),
		scanCmd(),
		enqueueCmd(),
		rateLimitCmd(),
	)
	return root
}

// loadConfig reads configuration and applies the logging section.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logx.Configure(cfg.Log.Logx())
	return cfg, nil
}

// withContainer builds the container for one command and tears it down after.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Cleanup()
	return fn(ctx, c)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
