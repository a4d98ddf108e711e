package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/contour-mcp/internal/config"
	"github.com/ironsheep/contour-mcp/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "contour-mcp",
	Short: "Contour extraction and containment verification",
	Long: `contour-mcp masks an RGBA image by one channel, traces the contours of what
remains, selects the innermost region above a minimum area and checks that a
reference rectangle lies entirely inside it.

Run "serve" to expose the pipeline as MCP tools over stdin/stdout, or "verify"
to check one image from the command line.

Environment variables override configuration, e.g.:
  CONTOUR_MCP_LOG_LEVEL=debug
  CONTOUR_MCP_PIPELINE_MIN_AREA=5000`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotContained) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides configuration")
}

// setup loads configuration and builds the logger for a command.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}

	logger, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
