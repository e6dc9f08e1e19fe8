// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kgtool/internal/config"
	"github.com/xkilldash9x/kgtool/internal/observability"
)

type contextKey string

const configKey contextKey = "kgtool.config"

// flagBindings maps command line flags onto configuration keys. A flag only
// overrides the config file and environment when it is set explicitly.
var flagBindings = map[string]string{
	"base-url":         "cms.base_url",
	"rate-limit":       "cms.rate_limit",
	"catalogue":        "synth.catalogue",
	"output":           "synth.output",
	"target":           "synth.target",
	"seed":             "synth.seed",
	"max-attempts":     "synth.max_fill_attempts",
	"first-edge":       "synth.first_edge_number",
	"load-postgres":    "database.load_edges",
	"existing-from-db": "database.seed_existing",
	"apply-sqlite":     "sqlite.apply",
	"sqlite-path":      "sqlite.path",
	"sqlite-migrate":   "sqlite.migrate",
	"mirror-neo4j":     "neo4j.enabled",
	"report":           "synth.report",
	"report-format":    "synth.report_format",
	"log-level":        "logger.level",
}

// NewRootCommand builds the kgtool command tree with production providers.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultArticleServiceProvider{}, defaultSinkProvider{})
}

func newRootCommand(articles articleServiceProvider, sinks sinkProvider) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "kgtool",
		Short:         "Maintenance tools for the knowledge base CMS.",
		Long:          "kgtool removes incomplete articles from the CMS and synthesizes knowledge graph edges between articles.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "kgtool"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting kgtool", zap.String("version", Version), zap.String("command", cmd.Name()))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey, cfg))
			return nil
		},
	}
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./kgtool.yaml or ~/.kgtool/kgtool.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newCleanupCmd(articles))
	rootCmd.AddCommand(newEdgesCmd(sinks))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command with the given context and logs failures.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// initializeConfig reads the config file and environment into v and binds
// the command's flags.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".kgtool"))
		}
		v.SetConfigName("kgtool")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// getConfigFromContext returns the configuration stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	if ctx == nil {
		return nil, errors.New("command context is nil")
	}
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not found in context")
	}
	return cfg, nil
}
