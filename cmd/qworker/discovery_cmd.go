package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/pkg/discovery"
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Run a standalone discovery host",
}

var discoveryServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bind the discovery UDP port and track announced workers",
	RunE:  runDiscoveryServe,
}

func init() {
	discoveryServeCmd.Flags().Int("port", 9999, "UDP discovery port")

	discoveryCmd.AddCommand(discoveryServeCmd)
}

func runDiscoveryServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")

	responder, err := discovery.Bind(port)
	if err != nil {
		return err
	}
	defer responder.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	discoveryLog := log.WithComponent("discovery-cmd")
	discoveryLog.Info().Int("port", port).Msg("discovery host serving")

	return responder.Serve(ctx)
}
