package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tunectl/tunectl/pkg/tune/config"
	"github.com/tunectl/tunectl/pkg/tune/logging"
	"github.com/tunectl/tunectl/pkg/tune/output"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tunectl",
		Short: "Apply and roll back OS latency tuning",
		Long: `Tunectl applies a fixed sequence of OS-level latency tweaks (power plan,
network stack, registry values, service states, boot configuration) and
records every change in a per-run journal so the run can be undone later.

Examples:
  tunectl apply                       # Run the tuning pipeline
  tunectl apply --dry-run             # Show the pipeline without running it
  tunectl history                     # List prior runs
  tunectl rollback <context-file>     # Undo a prior run
  tunectl config show                 # Show configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/tunectl/config.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "table", "output format (table, plain, json, yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig points viper at the config file and environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.SetEnvPrefix("TUNECTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the structured configuration used by subcommands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if getVerbose() {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the injected logger for a command, writing to the given
// path. Verbose mode mirrors log lines to stderr.
func newLogger(cfg *config.Config, path string) (*logging.Logger, error) {
	var maxSize int64
	if s := cfg.Logging.Rotation.MaxSize; s != "" {
		parsed, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid logging.rotation.max_size %q: %w", s, err)
		}
		maxSize = int64(parsed)
	}
	return logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Path:    path,
		Console: cfg.Logging.Console || getVerbose(),
		Rotation: logging.RotationConfig{
			MaxSize:    maxSize,
			MaxBackups: cfg.Logging.Rotation.MaxBackups,
		},
	})
}

// render formats a report with the flag-selected formatter and prints it.
func render(report *output.Report) error {
	formatter, err := output.Get(viper.GetString("format"))
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(output.Available(), ", "))
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, report); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message unless quiet mode is enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
