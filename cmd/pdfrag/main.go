// Package main is the pdfrag CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/config"
	"github.com/hyperjump/pdfrag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/pdfrag/config.yaml"

var (
	cfgFile   string
	debugFlag bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdfrag",
		Short: "Question answering over a single PDF",
		Long: `pdfrag ingests a PDF (reading its text layer, with OCR for scanned pages),
splits it into overlapping chunks, embeds them, and retrieves the passages most
relevant to a question using maximal marginal relevance.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	root.AddCommand(newServeCmd(), newIngestCmd(), newAskCmd(), newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of pdfrag",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdfrag version %s\n", version)
		},
	}
}

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence so the binary picks up a project config during development.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, path, nil
}

// setup loads the config and builds a logger honoring --debug.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, path, err := loadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	debug := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", debug))
	return cfg, logger, nil
}
