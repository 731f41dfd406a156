package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qworkerhq/qworker/internal/config"
	"github.com/qworkerhq/qworker/internal/fdlimit"
	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/pkg/discovery"
	"github.com/qworkerhq/qworker/pkg/registry"
	"github.com/qworkerhq/qworker/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a qworker worker process",
}

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a worker server",
	RunE:  runWorkerStart,
}

func init() {
	workerStartCmd.Flags().String("config", "", "Optional YAML config file")
	workerStartCmd.Flags().String("name", "worker", "Worker base name")
	workerStartCmd.Flags().Int("index", 0, "Worker index, for \"<name>-<port>_<index>\" identity")
	workerStartCmd.Flags().String("host", "", "Bind host (overrides config/env)")
	workerStartCmd.Flags().Int("port", 0, "Bind port (overrides config/env)")
	workerStartCmd.Flags().Int("queue-size", 0, "Bounded queue capacity (overrides config/env)")
	workerStartCmd.Flags().String("registry-url", "", "Registry server URL (overrides config/env)")
	workerStartCmd.Flags().String("registry-list", "", "Registry list name")
	workerStartCmd.Flags().Int("discovery-port", 0, "UDP discovery port (overrides config/env)")

	workerCmd.AddCommand(workerStartCmd)
}

func runWorkerStart(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	applyWorkerFlagOverrides(cmd, cfg)

	workerLog := log.WithComponent("worker-cmd")

	if limit, err := fdlimit.Raise(cfg.NoFiles); err != nil {
		workerLog.Warn().Err(err).Msg("could not raise file descriptor limit")
	} else {
		workerLog.Info().Uint64("limit", limit).Msg("file descriptor limit")
	}

	stopMetrics := maybeServeMetrics(mustString(cmd.Root(), "metrics-addr"))
	defer stopMetrics()

	var registryClient *registry.Client
	if cfg.RegistryURL != "" {
		registryClient = registry.NewClient(cfg.RegistryURL, cfg.RegistryList)
	}

	name, _ := cmd.Flags().GetString("name")
	index, _ := cmd.Flags().GetInt("index")

	workerCfg := worker.Config{
		Name:          name,
		Index:         index,
		Host:          cfg.Host,
		Port:          cfg.Port,
		QueueCapacity: cfg.QueueSize,
		ImmediatePool: cfg.DefaultQty,
		Handlers:      demoHandlers(),
		Registry:      registryClient,
		DiscoveryHost: cfg.Host,
		DiscoveryPort: cfg.DiscoveryPort,
	}

	if responder, err := discovery.Bind(cfg.DiscoveryPort); err == nil {
		workerCfg.Discovery = responder
		defer responder.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = responder.Serve(ctx) }()
		workerLog.Info().Int("port", cfg.DiscoveryPort).Msg("co-located discovery bound")
	} else {
		workerLog.Info().Err(err).Msg("discovery port busy, falling back to announce")
	}

	srv := worker.NewServer(workerCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerLog.Info().Str("name", srv.Name()).Msg("starting worker")
	return srv.ListenAndServe(ctx)
}

func applyWorkerFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Host = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		cfg.Port = v
	}
	if v, _ := cmd.Flags().GetInt("queue-size"); v != 0 {
		cfg.QueueSize = v
	}
	if v, _ := cmd.Flags().GetString("registry-url"); v != "" {
		cfg.RegistryURL = v
	}
	if v, _ := cmd.Flags().GetString("registry-list"); v != "" {
		cfg.RegistryList = v
	}
	if v, _ := cmd.Flags().GetInt("discovery-port"); v != 0 {
		cfg.DiscoveryPort = v
	}
}

func mustString(cmd *cobra.Command, name string) string {
	v, err := cmd.PersistentFlags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}
