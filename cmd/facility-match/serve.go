// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/facility-match/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP API",
	Long: `Serve exposes reconciliation over HTTP:

  GET  /healthz                   liveness and version
  POST /api/v1/reconcile          JSON lists in, JSON report out
  POST /api/v1/reconcile/upload   multipart files in, result file out

Each request is independent; nothing is stored between requests.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("mode", "", "gin mode: debug, release, test (default release)")
	serveCmd.Flags().Int64("max-upload-bytes", 0, "largest accepted request body (default 32 MiB)")

	bindFlag(serveCmd, "server.addr", "addr")
	bindFlag(serveCmd, "server.mode", "mode")
	bindFlag(serveCmd, "server.max_upload_bytes", "max-upload-bytes")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, version, logger).ListenAndServe(ctx)
}
