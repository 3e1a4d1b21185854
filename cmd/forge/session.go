package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ideforge/internal/config"
	"ideforge/internal/ledger"
	"ideforge/internal/logging"
	"ideforge/internal/pipeline"
	"ideforge/internal/platform"
)

// session is the state shared by commands for one invocation.
type session struct {
	ws     string
	cfg    *config.Config
	ledger *ledger.Ledger
}

// openSession resolves the workspace, loads .env and forge.yaml and applies
// the config's logging options.
func openSession() (*session, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		ws = cwd
	}
	ws, err := filepath.Abs(ws)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	defaults := config.DefaultConfig()
	if err := config.LoadDotEnv(defaults.Path(ws, defaults.Setup.EnvFile)); err != nil {
		return nil, err
	}

	path := configPath
	if path == "" {
		path = filepath.Join(ws, config.DefaultPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if cfg.Logging.File != "" || len(cfg.Logging.Categories) > 0 {
		opts := cfg.Logging.Options(ws)
		if verbose {
			opts.Level = "debug"
		}
		if err := logging.Initialize(logger, opts); err != nil {
			return nil, err
		}
	}
	logging.BootDebug("workspace %s, config %s", ws, path)
	return &session{ws: ws, cfg: cfg}, nil
}

// openLedger attaches the run history database. Failure only disables recording.
func (s *session) openLedger() {
	if !s.cfg.Ledger.Enabled || s.cfg.Ledger.Path == "" {
		return
	}
	l, err := ledger.Open(s.cfg.Path(s.ws, s.cfg.Ledger.Path))
	if err != nil {
		logging.LedgerWarn("run history disabled: %v", err)
		return
	}
	s.ledger = l
}

// pipeline resolves the build configuration and assembles the pipeline.
func (s *session) pipeline(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	bc, err := config.Resolve(s.cfg, s.ws, platform.Platform(platformFlag))
	if err != nil {
		return nil, err
	}
	if s.ledger != nil {
		opts = append(opts, pipeline.WithRecorder(s.ledger))
	}
	return pipeline.New(s.cfg, bc, opts...)
}

func (s *session) Close() {
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			logging.LedgerWarn("failed to close run history: %v", err)
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
