package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/config"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/container"
	"github.com/AshrafHassan95/invoice-automation-agent/pkg/utils"
)

// loadConfig reads the configuration. The default path may be absent, in
// which case built-in defaults and the environment apply.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	path := opts.configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

// openContainer loads config and starts a container without background
// workers. Logs go to stderr so stdout stays machine readable.
func openContainer(cmd *cobra.Command, opts *rootOptions) (*container.Container, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logger
	if logCfg.OutputPath == "" || logCfg.OutputPath == "stdout" {
		logCfg.OutputPath = "stderr"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      logCfg.Level,
		OutputPath: logCfg.OutputPath,
		Format:     logCfg.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	c, err := container.NewContainer(cfg, logger.Named("invoicectl"), container.WithoutWorkers())
	if err != nil {
		return nil, err
	}
	if err := c.Start(cmd.Context()); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// closeContainer waits for in-flight event handlers, then releases the store
func closeContainer(c *container.Container) {
	if err := c.Close(); err != nil {
		c.Logger().Warn("Container close failed", zap.Error(err))
	}
	_ = c.Logger().Sync()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
