// Package cmd implements the masq-monitor command-line interface: the root
// command, global configuration handling and the subcommand wiring.
package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdiocs "github.com/MalasadaTech/masq-monitor/cmd/iocs"
	cmdqueries "github.com/MalasadaTech/masq-monitor/cmd/queries"
	cmdreport "github.com/MalasadaTech/masq-monitor/cmd/report"
	cmdrun "github.com/MalasadaTech/masq-monitor/cmd/run"
	cmdschedule "github.com/MalasadaTech/masq-monitor/cmd/schedule"
	cmdserve "github.com/MalasadaTech/masq-monitor/cmd/serve"
	cmdversion "github.com/MalasadaTech/masq-monitor/cmd/version"
)

var (
	// cfgFile holds the path to the query configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "masq-monitor",
		Short: "Monitor scan platforms for masquerading infrastructure",
		Long: `masq-monitor runs saved queries against urlscan.io and Silent Push,
classifies and normalizes the results, extracts indicators of compromise and
renders TLP-filtered HTML reports.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so API keys are visible to viper's env lookups.
	_ = godotenv.Load()

	if err := initConfig(); err != nil {
		return err
	}
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "query configuration file (default config.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(cmdrun.Command())
	rootCmd.AddCommand(cmdqueries.Command())
	rootCmd.AddCommand(cmdreport.Command())
	rootCmd.AddCommand(cmdiocs.Command())
	rootCmd.AddCommand(cmdserve.Command())
	rootCmd.AddCommand(cmdschedule.Command())
	rootCmd.AddCommand(cmdversion.Command())
}

// initConfig wires viper: MASQ_-prefixed environment variables override
// defaults, and the --config/--debug flags override both.
func initConfig() error {
	viper.SetEnvPrefix("MASQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Flags were not parsed yet; peek at the raw arguments so the logger and
	// config path are right from the first log line.
	_ = rootCmd.ParseFlags(os.Args[1:])
	if cfgFile != "" {
		viper.Set("config_file", cfgFile)
	}
	if debug {
		viper.Set("logger.level", "debug")
		viper.Set("logger.development", true)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("config_file", "config.yml")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "console")
	viper.SetDefault("logger.development", false)
	viper.SetDefault("serve.addr", ":8080")
}
