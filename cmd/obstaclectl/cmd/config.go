package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	fileName  = "config"
	fileType  = "yaml"
	envPrefix = "OBSTACLECTL"
	homeDir   = ".obstaclectl"
)

// Config keys.
const (
	keyAddress  = "address"
	keyTimeout  = "timeout"
	keyLogLevel = "log_level"
)

var defaults = map[string]any{
	keyAddress:  "127.0.0.1:9400",
	keyTimeout:  "10s",
	keyLogLevel: "warn",
}

// configDir returns the path to the client config directory (~/.obstaclectl/).
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", homeDir)
	}
	return filepath.Join(home, homeDir)
}

// configFilePath returns the full path to the config file.
func configFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(configDir(), fileName+"."+fileType)
}

// loadConfig initializes Viper to read from the flags, the environment and
// the config file, in that order of precedence.
func loadConfig(flags *pflag.FlagSet) error {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
	for key, flag := range map[string]string{
		keyAddress:  keyAddress,
		keyTimeout:  keyTimeout,
		keyLogLevel: "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	viper.SetConfigFile(configFilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
	return nil
}

// timeout returns the per-call timeout.
func timeout() (time.Duration, error) {
	d, err := time.ParseDuration(viper.GetString(keyTimeout))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", keyTimeout, err)
	}
	return d, nil
}

// setConfig writes a config key-value pair and saves the config file.
func setConfig(key, value string) error {
	if _, ok := defaults[key]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	if key == keyTimeout {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", keyTimeout, err)
		}
	}

	configFile := configFilePath()
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	viper.Set(key, value)
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change client settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if _, ok := defaults[args[0]]; !ok {
				return fmt.Errorf("unknown config key %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), viper.GetString(args[0]))
			return nil
		}
		out := make(map[string]string, len(defaults))
		for k := range defaults {
			out[k] = viper.GetString(k)
		}
		return printYAML(cmd, out)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Save a setting to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setConfig(args[0], args[1])
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
