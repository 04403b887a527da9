package app

import (
	"io"
	"log/slog"

	"github.com/vk/gridrun/internal/executor"
	"github.com/vk/gridrun/internal/report"
	"github.com/vk/gridrun/internal/shell"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	shell    shell.Executor
	reporter executor.Reporter
}

// Option customizes an App, primarily so tests can inject fakes.
type Option func(*App)

// WithCommandExecutor replaces the process-spawning command executor.
func WithCommandExecutor(sh shell.Executor) Option {
	return func(a *App) { a.shell = sh }
}

// WithReporter replaces the progress reporter.
func WithReporter(rep executor.Reporter) Option {
	return func(a *App) { a.reporter = rep }
}

// New is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger.
func New(outW io.Writer, cfg *Config, opts ...Option) *App {
	logger := newLogger(cfg, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		shell:    shell.NewLocal(),
		reporter: report.NewConsole(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
