package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/swarmd/pkg/health"
	"github.com/cuemby/swarmd/pkg/log"
	"github.com/cuemby/swarmd/pkg/migration"
	"github.com/cuemby/swarmd/pkg/provider/clouddriver"
	"github.com/cuemby/swarmd/pkg/provider/containerdriver"
	"github.com/cuemby/swarmd/pkg/registry"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of the daemon's config file. It maps
// close to swarm.Config but keeps provider-specific settings typed so a
// YAML file can configure either backend without an `any` blob.
type fileConfig struct {
	StateDir    string `yaml:"state_dir"`
	MetricsAddr string `yaml:"metrics_addr"`

	Container *containerProviderConfig `yaml:"container"`
	Cloud     *cloudProviderConfig     `yaml:"cloud"`

	HealthMonitor healthConfigYAML    `yaml:"health_monitor"`
	Migration     migrationConfigYAML `yaml:"migration"`
	Registry      registryConfigYAML  `yaml:"registry"`
}

type containerProviderConfig struct {
	Enabled        bool          `yaml:"enabled"`
	CLIPath        string        `yaml:"cli_path"`
	Network        string        `yaml:"network"`
	PublishedHost  string        `yaml:"published_host"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type cloudProviderConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"base_url"`
	TokenEnv       string        `yaml:"token_env"`
	AppNamePrefix  string        `yaml:"app_name_prefix"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type healthConfigYAML struct {
	Enabled             bool          `yaml:"enabled"`
	CheckInterval       time.Duration `yaml:"check_interval"`
	CheckTimeout        time.Duration `yaml:"check_timeout"`
	HistorySize         int           `yaml:"history_size"`
	ProbeType           string        `yaml:"probe_type"`
	ProbeCommand        []string      `yaml:"probe_command"`
	ProbePath           string        `yaml:"probe_path"`
	AutoRecover         bool          `yaml:"auto_recover"`
	MaxRecoveryAttempts int           `yaml:"max_recovery_attempts"`
}

type migrationConfigYAML struct {
	Enabled        bool          `yaml:"enabled"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

type registryConfigYAML struct {
	LoadStateOnStartup bool          `yaml:"load_state_on_startup"`
	FlushInterval      time.Duration `yaml:"flush_interval"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.StateDir == "" {
		return nil, fmt.Errorf("config: state_dir is required")
	}
	log.Debug(fmt.Sprintf("loaded config file %s", path))
	return cfg, nil
}

func (fc *fileConfig) containerConfig() containerdriver.Config {
	if fc.Container == nil {
		return containerdriver.Config{}
	}
	return containerdriver.Config{
		CLIPath:        fc.Container.CLIPath,
		Network:        fc.Container.Network,
		PublishedHost:  fc.Container.PublishedHost,
		RequestTimeout: fc.Container.RequestTimeout,
	}
}

func (fc *fileConfig) cloudConfig() clouddriver.Config {
	if fc.Cloud == nil {
		return clouddriver.Config{}
	}
	return clouddriver.Config{
		BaseURL:        fc.Cloud.BaseURL,
		Token:          os.Getenv(fc.Cloud.TokenEnv),
		AppNamePrefix:  fc.Cloud.AppNamePrefix,
		RequestTimeout: fc.Cloud.RequestTimeout,
	}
}

func (fc *fileConfig) healthConfig() health.Config {
	return health.Config{
		CheckInterval:       fc.HealthMonitor.CheckInterval,
		CheckTimeout:        fc.HealthMonitor.CheckTimeout,
		HistorySize:         fc.HealthMonitor.HistorySize,
		ProbeType:           health.CheckType(fc.HealthMonitor.ProbeType),
		ProbeCommand:        fc.HealthMonitor.ProbeCommand,
		ProbePath:           fc.HealthMonitor.ProbePath,
		AutoRecover:         fc.HealthMonitor.AutoRecover,
		MaxRecoveryAttempts: fc.HealthMonitor.MaxRecoveryAttempts,
	}
}

func (fc *fileConfig) migrationConfig() migration.Config {
	return migration.Config{DefaultTimeout: fc.Migration.DefaultTimeout}
}

func (fc *fileConfig) registryConfig() registry.Config {
	return registry.Config{
		LoadStateOnStartup: fc.Registry.LoadStateOnStartup,
		FlushInterval:      fc.Registry.FlushInterval,
	}
}
