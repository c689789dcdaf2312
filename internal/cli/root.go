// Package cli implements pollenctl, the operator tool for local screening and
// history inspection.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pollen-vision/internal/bootstrap"
	"github.com/kirillkom/pollen-vision/internal/config"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
	"github.com/kirillkom/pollen-vision/internal/observability/logging"
)

// Context carries what every subcommand needs once flags are parsed.
type Context struct {
	configPath  string
	historyPath string
	logLevel    string

	Config config.Config
	Logger *slog.Logger
}

// RootCommand builds the pollenctl command tree.
func RootCommand() *cobra.Command {
	ctx := &Context{}

	root := &cobra.Command{
		Use:           "pollenctl",
		Short:         "Rice pollen viability screening tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&ctx.configPath, "config", "", "Path to YAML config file (defaults to $CONFIG_PATH)")
	root.PersistentFlags().StringVar(&ctx.historyPath, "history", "", "History JSON file, overrides the configured backend")
	root.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		analyzeCommand(ctx),
		historyCommand(ctx),
		trendCommand(ctx),
		exportCommand(ctx),
	)
	return root
}

func (c *Context) load(stderr io.Writer) error {
	var (
		cfg config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFrom(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if c.historyPath != "" {
		cfg.HistoryBackend = config.HistoryBackendFile
		cfg.HistoryPath = c.historyPath
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	// The one-shot tool does not benefit from the read cache.
	cfg.TrendCacheTTL = 0

	c.Config = cfg
	c.Logger = logging.NewJSONLoggerTo(stderr, "pollenctl", cfg.LogLevel)
	return nil
}

func (c *Context) openHistory() (ports.HistoryStore, func(), error) {
	store, closeFn, err := bootstrap.OpenHistory(c.Config, c.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return store, closeFn, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
