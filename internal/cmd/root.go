// Package cmd implements the novasystem command-line interface.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ctavolazzi/novasystem/internal/config"
)

// Exit codes reported by the execute command.
const (
	ExitSuccess   = 0
	ExitFailed    = 1
	ExitCancelled = 2
	ExitUsage     = 3
)

var rootCmd = &cobra.Command{
	Use:   "novasystem",
	Short: "Automated repository onboarding pipeline",
	Long: `NovaSystem onboards an arbitrary source-code repository: it clones or
mounts the repo, detects its build ecosystem, extracts candidate install
commands from its documentation, validates them against a security
policy, executes the approved commands in an isolated runtime, and
produces a structured run summary with a full event history.`,
	SilenceUsage: true,
}

// exitCode is set by subcommands that need a specific process exit
// status beyond cobra's error convention.
var exitCode = ExitSuccess

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if exitCode == ExitSuccess {
			return ExitUsage
		}
	}
	return exitCode
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/novasystem/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., NOVASYSTEM_RUNTIME_BACKEND for runtime.backend
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
