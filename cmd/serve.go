package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lanplay/slpd/internal/blockerplugin"
	"github.com/lanplay/slpd/internal/config"
	"github.com/lanplay/slpd/internal/ldnplugin"
	"github.com/lanplay/slpd/internal/log"
	"github.com/lanplay/slpd/internal/metrics"
	"github.com/lanplay/slpd/internal/netio"
	"github.com/lanplay/slpd/internal/peermanager"
	"github.com/lanplay/slpd/internal/pluginapi"
	"github.com/lanplay/slpd/internal/relay"
	"github.com/lanplay/slpd/internal/trafficplugin"
)

// serveCmd runs the relay in the foreground until SIGINT/SIGTERM.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay in the foreground",
	Long: `serve loads the configured bind address and plugin pipeline, binds
the UDP socket, and runs the relay engine until it receives SIGINT or
SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	log.Init(&log.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Pattern: cfg.Log.Pattern,
		Time:    cfg.Log.Time,
		Outputs: logOutputsFromConfig(cfg.Log.Outputs),
	})
	logger := log.GetLogger()

	sock, err := netio.Bind(cfg.BindAddr, netio.DefaultSocketBuffer)
	if err != nil {
		return err
	}
	logger.WithField("addr", cfg.BindAddr).Info("slpd: socket bound")

	manager := peermanager.New(cfg.IgnoreIdle)
	registry := pluginapi.NewRegistry()

	if err := registerPlugins(registry, manager, sock, cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop/StopAll run after ctx is already canceled (the signal handler
	// below cancels it to unblock engine.Run), so teardown uses a fresh
	// background context rather than the one that just triggered it.
	defer registry.StopAll(context.Background())

	if err := registry.StartAll(ctx); err != nil {
		return err
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(metrics.DefaultAddr, metrics.DefaultPath)
		if err := metricsServer.Start(ctx); err != nil {
			return err
		}
		defer metricsServer.Stop(context.Background())
	}

	engine := relay.New(sock, manager, registry)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("slpd: relay running")
	go func() {
		<-sigCh
		logger.Info("slpd: shutdown signal received")
		cancel()
	}()

	engine.Run(ctx)
	logger.Info("slpd: relay stopped")
	return nil
}

// registerPlugins wires up the fixed plugin pipeline in the order the
// relay engine drives them: traffic accounting, port blocking, then LDN
// discovery (gated by ldn_enabled).
func registerPlugins(registry *pluginapi.Registry, manager *peermanager.Manager, sock *netio.Socket, cfg *config.GlobalConfig) error {
	if err := registry.Register(trafficplugin.New()); err != nil {
		return err
	}

	blocker := blockerplugin.New()
	rules := make([]blockerplugin.Rule, 0, len(cfg.BlockRules))
	for _, s := range cfg.BlockRules {
		rule, err := blockerplugin.ParseRule(s)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
	}
	blocker.SetBlockRules(rules)
	if err := registry.Register(blocker); err != nil {
		return err
	}

	if cfg.LDNEnabled {
		if err := registry.Register(ldnplugin.New(manager, sock)); err != nil {
			return err
		}
	}
	return nil
}

func logOutputsFromConfig(outputs []config.OutputConfig) []log.OutputConfig {
	out := make([]log.OutputConfig, len(outputs))
	for i, o := range outputs {
		out[i] = log.OutputConfig{
			Type:       o.Type,
			Path:       o.Path,
			MaxSizeMB:  o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAgeDays: o.MaxAgeDays,
			Compress:   o.Compress,
		}
	}
	return out
}
