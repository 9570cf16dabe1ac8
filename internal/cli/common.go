/*
Package cli implements the event-hub commands.

Every command loads configuration the same way (--config, then
EVENT_HUB_CONFIG, ./event-hub.yaml and ~/.event-hub/config.yaml), configures
the global logger from it and opens an engine.Engine. Logs go to stderr so
--json output on stdout stays machine readable.
*/
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/khanglvm/event-hub/internal/config"
	"github.com/khanglvm/event-hub/internal/engine"
	"github.com/khanglvm/event-hub/internal/logging"
)

var configFile string

// AddGlobalFlags registers the flags shared by every command.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Config file (default: ./event-hub.yaml or ~/.event-hub/config.yaml)")
}

// loadConfig loads configuration and configures logging from it.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFrom(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	return cfg, nil
}

// openEngine loads configuration and builds an engine from it.
func openEngine(ctx context.Context) (*engine.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(ctx, cfg, logging.Logger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return eng, cfg, nil
}

// commandContext returns the command's context, Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// writeJSON pretty-prints v.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
