package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"qoxide/internal/config"
	"qoxide/internal/logging"
	"qoxide/internal/queue"
)

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
	configPath string
	configSeen bool
	logger     *slog.Logger
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the config file once and layers the persistent flags on
// top of it.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = &configError{err: err}
			return
		}
		c.configPath, c.configSeen = path, exists
		if err := c.applyFlags(cfg); err != nil {
			c.configErr = &configError{err: err}
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = &configError{err: err}
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}

		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Writer: cmd.ErrOrStderr(),
		})
		if err != nil {
			c.configErr = err
			return
		}
		c.logger, _ = logging.WithSession(logger)
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) applyFlags(cfg *config.Config) error {
	if backend := strings.ToLower(strings.TrimSpace(c.flags.backend)); backend != "" {
		cfg.Store.Backend = backend
	}
	if db := strings.TrimSpace(c.flags.db); db != "" {
		if c.flags.backend == "" {
			cfg.Store.Backend = config.BackendSQLite
		}
		if err := cfg.SetStorePath(db); err != nil {
			return err
		}
	}
	if level := strings.ToLower(strings.TrimSpace(c.flags.logLevel)); level != "" {
		cfg.Logging.Level = level
	}
	return nil
}

func (c *commandContext) JSONMode() bool {
	return c.flags != nil && c.flags.json
}

func (c *commandContext) commandLogger() *slog.Logger {
	if c.logger == nil {
		return logging.NewNop()
	}
	return c.logger
}

// withQueue opens the configured queue for the duration of fn.
func (c *commandContext) withQueue(cmd *cobra.Command, fn func(context.Context, *queue.Queue) error) error {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return err
	}
	logger := c.commandLogger().With(
		logging.String(logging.FieldBackend, cfg.Store.Backend),
		logging.String("command", cmd.Name()),
	)
	q, err := queue.Open(cfg, queue.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := q.Close(); cerr != nil {
			logger.Warn("close queue failed", logging.Error(cerr))
		}
	}()
	return fn(cmd.Context(), q)
}

type configError struct {
	err error
}

func (e *configError) Error() string { return "load config: " + e.err.Error() }

func (e *configError) Unwrap() error { return e.err }

// reportedError marks an error that has already been written to stderr as a
// JSON envelope.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// report renders err as a JSON error envelope in --json mode. Plain mode
// leaves printing to main.
func (c *commandContext) report(cmd *cobra.Command, err error) error {
	if err == nil || !c.JSONMode() {
		return err
	}
	c.commandLogger().Debug("command failed",
		logging.String(logging.FieldErrorKind, string(queue.KindOf(err))),
		logging.Error(err),
	)
	if werr := writeJSONError(cmd, err); werr != nil {
		return fmt.Errorf("%w (write json error: %v)", err, werr)
	}
	return &reportedError{err: err}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
