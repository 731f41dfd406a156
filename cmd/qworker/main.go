package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/internal/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qworker",
	Short: "qworker - a distributed task-execution service",
	Long: `qworker runs a pool of TCP worker processes that accept named
handler calls, execute them immediately or through a bounded background
queue, and return results over the same connection. Workers are
discovered by clients through a shared registry and a UDP
self-announcement broadcast.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("metrics-addr", "", "If set, serve /metrics and /health on this address")

	cobra.OnInitialize(initLogging)

	rootCmd.SetVersionTemplate(fmt.Sprintf("qworker version %s\nCommit: %s\n", Version, Commit))

	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(discoveryCmd)
	rootCmd.AddCommand(clientCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// maybeServeMetrics starts the optional metrics/health HTTP server when
// --metrics-addr is set, returning a no-op shutdown function otherwise.
func maybeServeMetrics(addr string) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithComponent("metrics").Error().Err(err).Msg("metrics server exited")
		}
	}()

	return func() { _ = srv.Close() }
}
