// Package common builds the shared dependencies every subcommand needs:
// logger, loaded configuration and a fully wired monitor.
package common

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/extensions"
	"github.com/MalasadaTech/masq-monitor/internal/history"
	"github.com/MalasadaTech/masq-monitor/internal/logger"
	"github.com/MalasadaTech/masq-monitor/internal/metrics"
	"github.com/MalasadaTech/masq-monitor/internal/monitor"
	"github.com/MalasadaTech/masq-monitor/internal/platform"
	"github.com/MalasadaTech/masq-monitor/internal/storage"
)

// CommandDeps holds the dependencies shared across subcommands.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewCommandDeps builds the logger from viper settings and loads the query
// configuration file.
func NewCommandDeps() (*CommandDeps, error) {
	log, err := logger.New(&logger.Config{
		Level:       logger.Level(viper.GetString("logger.level")),
		Development: viper.GetBool("logger.development"),
		Encoding:    viper.GetString("logger.encoding"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, err := config.Load(viper.GetString("config_file"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return &CommandDeps{Config: cfg, Logger: log}, nil
}

// NewClientFactory builds platform clients with API keys drawn from the
// environment (MASQ_URLSCAN_API_KEY, MASQ_SILENTPUSH_API_KEY).
func NewClientFactory(deps *CommandDeps) monitor.ClientFactory {
	return func(platformName string) (platform.Client, error) {
		opts := platform.Options{Logger: deps.Logger}
		switch platformName {
		case config.PlatformURLScan:
			opts.APIKey = viper.GetString("urlscan_api_key")
		case config.PlatformSilentPush:
			opts.APIKey = viper.GetString("silentpush_api_key")
		}
		return platform.New(platformName, opts)
	}
}

// NewMonitor wires a monitor with history, metrics, optional Elasticsearch
// storage and the configured extensions. The returned cleanup closes the
// history database and must be deferred by the caller.
func NewMonitor(deps *CommandDeps) (*monitor.Monitor, func(), error) {
	db, err := history.Open(deps.Config.History.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}
	cleanup := func() { _ = db.Close() }

	opts := monitor.Options{
		Config:     deps.Config,
		Logger:     deps.Logger,
		Clients:    NewClientFactory(deps),
		History:    history.NewRunRepository(db),
		Metrics:    metrics.New(nil),
		Extensions: newExtensionsRunner(deps),
	}

	if deps.Config.Storage.Enabled {
		store, storeErr := newResultStore(deps)
		if storeErr != nil {
			cleanup()
			return nil, nil, storeErr
		}
		opts.Store = store
	}

	m, err := monitor.New(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return m, cleanup, nil
}

func newResultStore(deps *CommandDeps) (*storage.ResultStore, error) {
	client, err := storage.NewClient(storage.Config{
		Addresses: []string{deps.Config.Storage.URL},
		APIKey:    viper.GetString("elasticsearch_api_key"),
		Username:  viper.GetString("elasticsearch_username"),
		Password:  viper.GetString("elasticsearch_password"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return storage.NewResultStore(client, deps.Config.Storage.Index, deps.Logger), nil
}

// newExtensionsRunner assembles the configured post-run hooks, or nil when
// none are enabled.
func newExtensionsRunner(deps *CommandDeps) *extensions.Runner {
	var hooks []extensions.Hook
	if deps.Config.Extensions.GTM {
		hooks = append(hooks, extensions.NewGTMExtractor(extensions.GTMOptions{Logger: deps.Logger}))
	}
	for _, cmd := range deps.Config.Extensions.Commands {
		hooks = append(hooks, extensions.NewCommandHook(cmd.Name, cmd.Args))
	}
	if len(hooks) == 0 {
		return nil
	}
	return extensions.NewRunner(deps.Logger, hooks...)
}
