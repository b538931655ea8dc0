package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/romshark/debouncify/engine"
	"github.com/romshark/debouncify/internal/config"
	"github.com/romshark/debouncify/internal/log"

	"github.com/mattn/go-isatty"
)

func main() {
	conf, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, config.ErrVersionRequested) {
		config.PrintVersionInfo(os.Stdout)
		return
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := log.New(os.Stdout, conf.Log.Level.SlogLevel())
	logger.Debug("config loaded", "dir", conf.DirAbsolute(),
		"watchers", len(conf.Watchers))

	var controls io.Reader
	if isInteractive(os.Stdin) {
		controls = os.Stdin
		logger.Info("interactive controls enabled: " +
			"c+enter cancels all commands, r+enter triggers all watchers")
	}

	e, err := engine.New(engineConfig(conf), engine.Options{
		Logger:   logger,
		Stdout:   os.Stdout,
		Controls: controls,
	})
	if err != nil {
		log.Fatalf("initializing engine: %v", err)
	}
	if err := e.Run(ctx); err != nil {
		logger.Error("running engine", slog.Any("err", err))
		os.Exit(1)
	}
}

func isInteractive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// engineConfig maps the CLI configuration to the engine configuration.
func engineConfig(c *config.Config) engine.Config {
	watchers := make([]engine.WatcherConfig, len(c.Watchers))
	for i, w := range c.Watchers {
		watchers[i] = engine.WatcherConfig{
			Name:     string(w.Name),
			Cmd:      string(w.Cmd),
			Include:  w.Include,
			Exclude:  w.Exclude,
			Debounce: w.Debounce,
			Initial:  w.Initial,
		}
	}
	return engine.Config{
		Dir:        c.DirAbsolute(),
		Exclude:    c.Exclude,
		EventsHost: c.EventsHost,
		Watchers:   watchers,
	}
}
