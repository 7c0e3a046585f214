package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/chatrelay/internal/config"
	"github.com/suPer8Hu/chatrelay/internal/logging"
	"go.uber.org/zap"
)

var (
	configFile string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatd",
	Short: "Browser chat relay for local and hosted LLMs",
	Long: `chatd serves a browser chat page that relays messages to Ollama,
OpenRouter or Gemini, keeps every named chat in a database or JSON files,
and understands slash commands (/chat reset, /chat open <name>, /system ...).

Settings come from the environment, optionally layered over a YAML or TOML
file given with --config or CONFIG_FILE.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = os.Getenv("CONFIG_FILE")
		}
		var err error
		cfg, err = config.LoadFile(path)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML or TOML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, chatsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
