package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/swarmd/pkg/log"
	"github.com/cuemby/swarmd/pkg/metrics"
	"github.com/cuemby/swarmd/pkg/provider"
	"github.com/cuemby/swarmd/pkg/provider/clouddriver"
	"github.com/cuemby/swarmd/pkg/provider/containerdriver"
	providerregistry "github.com/cuemby/swarmd/pkg/provider/registry"
	"github.com/cuemby/swarmd/pkg/swarm"
	"github.com/spf13/cobra"
)

var (
	// Version information, set via ldflags during build.
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
	Use:     "swarmd",
	Short:   "swarmd - a development-environment swarm control plane",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("swarmd version %s\ncommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(startCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the swarm control plane daemon",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().String("config", "/etc/swarmd/config.yaml", "path to the daemon config file")
}

func runStart(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	fc, err := loadFileConfig(configPath)
	if err != nil {
		return err
	}

	factory := providerregistry.New()
	var providerConfigs []swarm.ProviderConfig

	if fc.Container != nil {
		cfg := fc.containerConfig()
		factory.Register("container", func(raw any) (provider.Driver, error) {
			c, _ := raw.(containerdriver.Config)
			return containerdriver.New(c), nil
		})
		providerConfigs = append(providerConfigs, swarm.ProviderConfig{
			Kind: "container", Enabled: fc.Container.Enabled, Raw: cfg,
		})
	}

	if fc.Cloud != nil {
		cfg := fc.cloudConfig()
		factory.Register("cloud", func(raw any) (provider.Driver, error) {
			c, _ := raw.(clouddriver.Config)
			return clouddriver.New(c), nil
		})
		providerConfigs = append(providerConfigs, swarm.ProviderConfig{
			Kind: "cloud", Enabled: fc.Cloud.Enabled, Raw: cfg,
		})
	}

	controller := swarm.New(swarm.Config{
		StateDir:            fc.StateDir,
		Providers:           providerConfigs,
		Instances:           fc.registryConfig(),
		Health:              fc.healthConfig(),
		Migration:           fc.migrationConfig(),
		EnableHealthMonitor: fc.HealthMonitor.Enabled,
		EnableMigration:     fc.Migration.Enabled,
	}, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := controller.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing swarm controller: %w", err)
	}
	log.Info("swarm controller initialized")

	metrics.SetVersion(Version)

	var metricsServer *http.Server
	if fc.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/healthz", metrics.HealthHandler())
		mux.Handle("/readyz", metrics.ReadyHandler())
		mux.Handle("/livez", metrics.LivenessHandler())
		metricsServer = &http.Server{Addr: fc.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal(fmt.Sprintf("metrics server stopped unexpectedly: %v", err))
			}
		}()
		log.Logger.Info().Str("addr", fc.MetricsAddr).Msg("metrics server listening")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}
	controller.Dispose()
	log.Info("shutdown complete")
	return nil
}
