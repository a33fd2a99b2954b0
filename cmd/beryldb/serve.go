package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beryldb/beryldb/pkg/config"
	"github.com/beryldb/beryldb/pkg/log"
	"github.com/beryldb/beryldb/pkg/metrics"
	"github.com/beryldb/beryldb/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the beryldb server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "path to a YAML config file")
	serveCmd.Flags().Bool("nofork", true, "run in the foreground (beryldb never daemonizes; kept for CLI-compatibility)")
	serveCmd.Flags().Bool("asroot", false, "allow running as the root user")
	serveCmd.Flags().Bool("flushdb", false, "wipe every database's contents on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	asRoot, _ := cmd.Flags().GetBool("asroot")
	flushdb, _ := cmd.Flags().GetBool("flushdb")

	if !asRoot && os.Geteuid() == 0 {
		return fmt.Errorf("serve: refusing to run as root without --asroot")
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg = config.Default()
		err = cfg.Validate()
	}
	if err != nil {
		return fmt.Errorf("serve: loading config: %w", err)
	}

	metrics.SetVersion(Version)

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	if flushdb {
		if err := srv.FlushAll(); err != nil {
			return fmt.Errorf("serve: --flushdb: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithComponent("server").Info().Str("listen", cfg.Listen).Msg("starting beryldb")
	return srv.Run(ctx)
}
