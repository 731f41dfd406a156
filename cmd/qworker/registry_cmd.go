package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/pkg/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Run the registry server",
}

var registryServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the shared worker registry over HTTP",
	RunE:  runRegistryServe,
}

func init() {
	registryServeCmd.Flags().String("addr", "127.0.0.1:9400", "HTTP listen address")
	registryServeCmd.Flags().String("data-dir", "./qworker-data", "Directory holding the registry's bbolt database")

	registryCmd.AddCommand(registryServeCmd)
}

func runRegistryServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	stopMetrics := maybeServeMetrics(mustString(cmd.Root(), "metrics-addr"))
	defer stopMetrics()

	srv, err := registry.NewServer(dataDir)
	if err != nil {
		return fmt.Errorf("registry serve: %w", err)
	}
	defer srv.Shutdown()

	log.WithComponent("registry-cmd").Info().Str("addr", addr).Msg("registry serving")
	return srv.ListenAndServe(addr)
}
