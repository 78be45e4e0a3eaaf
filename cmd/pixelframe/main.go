package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pixelframe/pixelframe/internal/app"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pixelframe",
	Short: "Collaborative pixel canvas server",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.RunServer(ctx, configPath)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Migrate(cmd.Context(), configPath)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run one snapshot compaction pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.SnapshotOnce(cmd.Context(), configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, snapshotCmd)
}
