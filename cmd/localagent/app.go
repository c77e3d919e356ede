package main

import (
	"fmt"
	"io"
	"log/slog"

	"localagent/pkg/builtin"
	"localagent/pkg/capability"
	"localagent/pkg/clock"
	"localagent/pkg/config"
	"localagent/pkg/dispatch"
	"localagent/pkg/logging"
	"localagent/pkg/mailbox"
	"localagent/pkg/scheduler"
	"localagent/pkg/security"
)

// app holds the wired agent for one CLI invocation.
type app struct {
	config     *config.Config
	logger     *slog.Logger
	closeLog   func() error
	registry   *capability.Registry
	dispatcher *dispatch.Dispatcher
	mailbox    *mailbox.Mailbox
}

// newApp loads configuration, applies flag overrides and builds every
// component. console receives human-oriented log output.
func newApp(g globals, console io.Writer) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.mailbox != "" {
		cfg.Mailbox = g.mailbox
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFile != "" {
		cfg.Log.File = g.logFile
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Journal: cfg.Log.Journal,
		Console: console,
	})
	if err != nil {
		return nil, err
	}

	builder := capability.NewBuilder()
	if err := builtin.Register(builder, builtin.Deps{
		Logger:             logger,
		Clock:              clock.Real(),
		ProtectedProcesses: cfg.Security.ProtectedProcesses,
		SQLitePath:         cfg.SQLite.Path,
	}); err != nil {
		closeLog()
		return nil, fmt.Errorf("register capabilities: %w", err)
	}
	builder.Disable(cfg.Capabilities.Disabled...)
	registry := builder.Build(cfg.Tiers)

	gate := security.NewGate(registry.Tiers(), security.ProtectedPaths(cfg.Security.ProtectedPaths))

	return &app{
		config:     cfg,
		logger:     logger,
		closeLog:   closeLog,
		registry:   registry,
		dispatcher: dispatch.New(registry, gate, logger),
		mailbox:    mailbox.New(cfg.Mailbox, logger),
	}, nil
}

func (a *app) scheduler(onOutcome func(dispatch.Outcome)) *scheduler.Scheduler {
	return scheduler.New(a.mailbox, a.dispatcher, scheduler.Options{
		Interval:  a.config.PollInterval,
		Clock:     clock.Real(),
		Logger:    a.logger,
		OnOutcome: onOutcome,
	})
}

func (a *app) Close() error {
	return a.closeLog()
}
