package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"sideline/internal/calibration"
	"sideline/internal/config"
	"sideline/internal/logging"
	"sideline/internal/session"
	"sideline/internal/stage"
	"sideline/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the session ledger for the duration of one command.
func (c *commandContext) withStore(fn func(cfg *config.Config, store *session.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := session.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withManager builds the full pipeline on top of the open store.
func (c *commandContext) withManager(fn func(cfg *config.Config, store *session.Store, mgr *workflow.Manager) error) error {
	return c.withStore(func(cfg *config.Config, store *session.Store) error {
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		return fn(cfg, store, newManager(cfg, store, logger))
	})
}

func newManager(cfg *config.Config, store *session.Store, logger *slog.Logger) *workflow.Manager {
	records := calibration.NewStore(cfg)
	return workflow.NewManager(cfg, store, logger, workflow.StageSet{
		Aligner:    stage.NewAlign(cfg, logger),
		Calibrator: stage.NewCalibrate(cfg, records, logger),
		Stitcher:   stage.NewStitch(cfg, store, records, logger),
	})
}

// resolveSession accepts either a numeric session id or a session key.
func resolveSession(ctx context.Context, store *session.Store, arg string) (*session.Session, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, errors.New("session id or key is required")
	}
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id > 0 {
		sess, err := store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, fmt.Errorf("session %d not found", id)
		}
		return sess, nil
	}
	sess, err := store.GetByKey(ctx, arg)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %q not found", arg)
	}
	return sess, nil
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
