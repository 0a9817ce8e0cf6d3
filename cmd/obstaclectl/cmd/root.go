package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/chazu/obstacled/pkg/logging"
	"github.com/chazu/obstacled/pkg/transport"
)

var (
	cfgFile   string
	requestID string
)

var rootCmd = &cobra.Command{
	Use:   "obstaclectl",
	Short: "Command-line client for obstacled",
	Long: `obstaclectl talks to an obstacled server over gRPC.

Settings are read from ~/.obstaclectl/config.yaml and OBSTACLECTL_ADDRESS,
OBSTACLECTL_TIMEOUT and OBSTACLECTL_LOG_LEVEL; flags win over both.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd.Root().PersistentFlags())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.obstaclectl/config.yaml)")
	rootCmd.PersistentFlags().String(keyAddress, "", "server address host:port")
	rootCmd.PersistentFlags().String(keyTimeout, "", "per-call timeout, e.g. 5s")
	rootCmd.PersistentFlags().String("log-level", "", "client log level")
	rootCmd.PersistentFlags().StringVar(&requestID, "request-id", "", "request ID sent with every call (default a new ID per call)")
}

// withClient dials the configured server and runs fn with it.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *transport.Client) error) error {
	d, err := timeout()
	if err != nil {
		return err
	}
	logger := logging.New(viper.GetString(keyLogLevel), "text", os.Stderr)

	cfg := transport.DefaultClientConfig(viper.GetString(keyAddress))
	cfg.Timeout = d
	c, err := transport.Dial(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := logging.WithLogger(cmd.Context(), logger)
	if requestID != "" {
		ctx = transport.WithRequestID(ctx, requestID)
	}
	return fn(ctx, c)
}

// printYAML writes v to the command's output.
func printYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}
