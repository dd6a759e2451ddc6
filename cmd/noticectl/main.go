package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-notice-rag/internal/bootstrap"
	"github.com/kirillkom/campus-notice-rag/internal/config"
	"github.com/kirillkom/campus-notice-rag/internal/observability/logging"
)

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	root := &cobra.Command{
		Use:          "noticectl",
		Short:        "Operate the campus notice index",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file (values sit beneath the environment)")

	root.AddCommand(searchCMD(), askCMD(), publishCMD(), indexCMD(), mcpCMD(), deadLetterCMD())
	return root
}

// loadConfig reads configuration, using the --config file when given.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var path string
	if flag := cmd.Flag("config"); flag != nil {
		path = flag.Value.String()
	}
	return config.LoadFile(path)
}

// openApp loads configuration and wires the application. withQueue connects
// to NATS for commands that publish.
func openApp(cmd *cobra.Command, withQueue bool) (*bootstrap.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), "noticectl", cfg.LogLevel, cfg.LogFormat)

	app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.Options{
		Logger:       logger,
		WithoutQueue: !withQueue,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}
