package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tunectl/tunectl/pkg/tune/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage tunectl configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/tunectl/config.yaml (if set)
  2. ~/.config/tunectl/config.yaml

Environment variables can override config file settings using the TUNECTL_ prefix:
  TUNECTL_WORKSPACE=/var/lib/tunectl/runs
  TUNECTL_PHASE_TIMEOUT=5m
  TUNECTL_LOGGING_LEVEL=debug`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("workspace:        %s\n", cfg.Workspace)
	fmt.Printf("phase_timeout:    %s\n", cfg.PhaseTimeout)
	fmt.Printf("logging.level:    %s\n", cfg.Logging.Level)
	fmt.Printf("logging.console:  %t\n", cfg.Logging.Console)
	fmt.Printf("tools.registry:   %s\n", orPath(cfg.Tools.Registry))
	fmt.Printf("tools.services:   %s\n", orPath(cfg.Tools.Services))
	fmt.Printf("tools.power:      %s\n", orPath(cfg.Tools.Power))

	fmt.Println("\nPhases:")
	fmt.Println("-------")
	for i, p := range cfg.Phases {
		timeout := "(default)"
		if p.Timeout > 0 {
			timeout = p.Timeout.String()
		}
		fmt.Printf("%d. %-10s %s  timeout=%s\n", i+1, p.Name, strings.Join(p.Command, " "), timeout)
	}

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	envVars := []string{
		"TUNECTL_WORKSPACE",
		"TUNECTL_PHASE_TIMEOUT",
		"TUNECTL_LOGGING_LEVEL",
		"TUNECTL_LOGGING_CONSOLE",
		"TUNECTL_TOOLS_REGISTRY",
		"TUNECTL_TOOLS_SERVICES",
		"TUNECTL_TOOLS_POWER",
	}
	anyOverrides := false
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			fmt.Printf("%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(config.ConfigDir(), "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		return nil
	}

	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file location.
func runConfigPath(cmd *cobra.Command, args []string) error {
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Println(configFile)
		return nil
	}
	fmt.Println(filepath.Join(config.ConfigDir(), "config.yaml"))
	return nil
}

// orPath renders an empty tool path as a PATH lookup marker.
func orPath(p string) string {
	if p == "" {
		return "(PATH)"
	}
	return p
}
