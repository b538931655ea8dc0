package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/romshark/debouncify/debounce"
	"github.com/romshark/debouncify/internal/cmdrun"
	"github.com/romshark/debouncify/internal/ctxrun"
	"github.com/romshark/debouncify/internal/events"
	"github.com/romshark/debouncify/internal/filereg"
	"github.com/romshark/debouncify/internal/fswalk"
	"github.com/romshark/debouncify/internal/log"
	"github.com/romshark/debouncify/internal/statetrack"
	"github.com/romshark/debouncify/internal/syncstrset"
	"github.com/romshark/debouncify/internal/watcher"
	"github.com/romshark/debouncify/onchange"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// EnvChangedFiles is the environment variable that lists the paths
// (relative to Dir, separated by newlines) of the files that changed
// since the previous run of a watcher's command.
// It's empty for runs that weren't caused by file changes.
const EnvChangedFiles = "DEBOUNCIFY_CHANGED_FILES"

// Engine is the core debouncify engine.
// Use [New] to create an Engine and [Engine.Run] to start it.
type Engine struct {
	conf         Config
	dirAbsolute  string
	logger       *slog.Logger
	stdout       io.Writer
	controls     io.Reader
	stateTracker *statetrack.Tracker
	fileReg      *filereg.Registry
	watchers     []*cmdWatcher
}

// Options configures an [Engine].
type Options struct {
	// Logger sets the logger for the engine.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger

	// Stdout receives the output of failed commands.
	// If nil, [os.Stdout] is used.
	Stdout io.Writer

	// Controls enables interactive controls read line by line:
	// "c" cancels all pending and running commands,
	// "r" triggers all watchers.
	// If nil, interactive controls are disabled.
	Controls io.Reader
}

// cmdWatcher is a single watcher. Matching file changes increment
// changes and the adapter attached to it runs the command debounced.
type cmdWatcher struct {
	index   int
	conf    WatcherConfig
	logger  *slog.Logger
	changes *onchange.Value[uint64]
	handle  *debounce.Handle
	runner  *ctxrun.Runner
	changed *syncstrset.Set

	// latestRun is the sequence number of the latest started run.
	latestRun atomic.Uint64

	lock              sync.Mutex
	adapter           *onchange.Adapter[uint64]
	unsubscribeStatus func()
	closed            bool
}

// New creates a new [Engine] with the given configuration.
func New(conf Config, opts Options) (*Engine, error) {
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	dirAbsolute, err := filepath.Abs(conf.Dir)
	if err != nil {
		return nil, fmt.Errorf("determining absolute path of Dir: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	names := make([]string, len(conf.Watchers))
	watchers := make([]*cmdWatcher, len(conf.Watchers))
	for i, w := range conf.Watchers {
		names[i] = w.Name
		watchers[i] = &cmdWatcher{
			index:   i,
			conf:    w,
			logger:  logger.With(log.KeyWatcher, w.Name),
			changes: onchange.NewValue[uint64](0),
			handle:  new(debounce.Handle),
			runner:  ctxrun.New(),
			changed: syncstrset.New(),
		}
	}

	return &Engine{
		conf:         conf,
		dirAbsolute:  dirAbsolute,
		logger:       logger,
		stdout:       stdout,
		controls:     opts.Controls,
		stateTracker: statetrack.NewTracker(names...),
		fileReg:      filereg.NewRegistry(),
		watchers:     watchers,
	}, nil
}

// State returns the state tracker of all watchers.
func (e *Engine) State() *statetrack.Tracker { return e.stateTracker }

// Trigger triggers all watchers as if an included file changed.
func (e *Engine) Trigger() {
	for _, w := range e.watchers {
		w.bump()
	}
}

// Cancel cancels all pending and running commands.
func (e *Engine) Cancel() {
	for _, w := range e.watchers {
		w.handle.Cancel()
		w.runner.Cancel()
		if e.stateTracker.Get(w.index).Status == statetrack.StatusPending {
			e.stateTracker.SetStatus(w.index, statetrack.StatusCanceled)
		}
	}
}

// Run starts the debouncify engine. It blocks until ctx is canceled
// or a fatal error occurs. The engine will:
//  1. Register the checksums of all files in Dir.
//  2. Start watching Dir recursively.
//  3. Attach a debounced command runner to every watcher.
//  4. Start the events feed server if EventsHost is set.
func (e *Engine) Run(ctx context.Context) error {
	for _, w := range e.watchers {
		cmd := cmdFromString(w.conf.Cmd)
		if _, err := exec.LookPath(cmd); err != nil {
			// Might be a shell builtin, don't fail.
			w.logger.Warn("command not found in PATH", "cmd", cmd)
		}
	}

	fsWatcher, err := watcher.New(e.dirAbsolute, e.handleFileChange)
	if err != nil {
		return fmt.Errorf("initializing file watcher: %w", err)
	}
	defer fsWatcher.Close()

	for _, expr := range e.conf.Exclude {
		if err := fsWatcher.Ignore(expr); err != nil {
			return fmt.Errorf("adding ignore filter to watcher (%q): %w", expr, err)
		}
	}

	start := time.Now()
	err = fswalk.Files(e.dirAbsolute, fsWatcher.IsExcluded, func(path string) error {
		if _, err := e.fileReg.Update(path); err != nil {
			e.logger.Debug("registering file", "path", path, "err", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("registering files in %q: %w", e.dirAbsolute, err)
	}
	e.logger.Debug("registered files",
		"files", e.fileReg.Len(), "duration", time.Since(start))

	if err := fsWatcher.Add(e.dirAbsolute); err != nil {
		return fmt.Errorf("setting up file watcher for Dir(%q): %w", e.dirAbsolute, err)
	}

	errgrp, ctx := errgroup.WithContext(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	errgrp.Go(func() error {
		defer wg.Done()
		err := fsWatcher.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("running file watcher: %w", err)
			e.logger.Error(err.Error())
			return err
		}
		e.logger.Debug("file watcher stopped")
		return nil
	})

	if e.conf.EventsHost != "" {
		wg.Add(1)
		errgrp.Go(func() error {
			defer wg.Done()
			err := e.runEventsServer(ctx)
			if err != nil {
				err = fmt.Errorf("running events server: %w", err)
				e.logger.Error(err.Error())
			}
			e.logger.Debug("events server stopped")
			return err
		})
	}

	for _, w := range e.watchers {
		w.attach(ctx, e)
	}
	defer func() {
		for _, w := range e.watchers {
			w.close()
		}
	}()

	if e.controls != nil {
		// Not part of the group since reading can't be interrupted.
		go e.readControls(ctx)
	}

	e.logger.Info("debouncify started",
		"dir", e.dirAbsolute, "watchers", len(e.watchers))

	err = errgrp.Wait()
	e.logger.Debug("waiting for remaining sub-processes to shut down")
	wg.Wait()
	return err
}

func (e *Engine) runEventsServer(ctx context.Context) error {
	httpSrv := http.Server{
		Addr:    e.conf.EventsHost,
		Handler: events.New(e.logger, e.stateTracker),
	}

	errgrp, ctx := errgroup.WithContext(ctx)
	errgrp.Go(func() error {
		e.logger.Info("events feed listening",
			"url", "ws://"+e.conf.EventsHost+events.PathEvents)
		err := httpSrv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	errgrp.Go(func() error {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(ctx)
	})
	return errgrp.Wait()
}

func (e *Engine) readControls(ctx context.Context) {
	s := bufio.NewScanner(e.controls)
	for s.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(s.Text()) {
		case "":
		case "c":
			e.logger.Info("canceling all commands")
			e.Cancel()
		case "r":
			e.logger.Info("triggering all watchers")
			e.Trigger()
		default:
			e.logger.Warn("unknown control, use either of: [c, r]",
				"input", s.Text())
		}
	}
}

func (e *Engine) handleFileChange(ctx context.Context, ev fsnotify.Event) {
	rel, err := filepath.Rel(e.dirAbsolute, ev.Name)
	if err != nil {
		e.logger.Error("determining relative path",
			"path", ev.Name, "base", e.dirAbsolute, "err", err)
		return
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		e.fileReg.Deregister(ev.Name)
	default:
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			return // Directories don't trigger watchers.
		}
		changed, err := e.fileReg.Update(ev.Name)
		if err != nil {
			// The file is likely gone already.
			e.logger.Debug("updating file checksum", "path", rel, "err", err)
			e.fileReg.Deregister(ev.Name)
		} else if !changed {
			e.logger.Debug("file unchanged", "op", ev.Op.String(), "path", rel)
			return
		}
	}

	e.logger.Debug("file changed", "op", ev.Op.String(), "path", rel)
	for _, w := range e.watchers {
		if w.conf.Matches(rel) {
			w.logger.Debug("triggered", "path", rel)
			w.changed.Store(filepath.ToSlash(rel))
			w.bump()
		}
	}
}

// bump increments the change counter notifying the adapter.
func (w *cmdWatcher) bump() {
	w.changes.Update(func(c uint64) uint64 { return c + 1 })
}

func (w *cmdWatcher) attach(ctx context.Context, e *Engine) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.unsubscribeStatus = w.changes.Subscribe(func(_, _ uint64) {
		e.stateTracker.SetStatus(w.index, statetrack.StatusPending)
	})

	opts := []onchange.Option{onchange.WithHandle(w.handle)}
	if w.conf.Initial {
		opts = append(opts, onchange.Initial())
	}
	w.adapter = onchange.Attach[uint64](w.changes, w.conf.Debounce,
		func(_, _ uint64) {
			w.lock.Lock()
			defer w.lock.Unlock()
			if w.closed {
				return
			}
			run := w.latestRun.Add(1)
			w.runner.Go(ctx, func(ctx context.Context) {
				e.execute(ctx, w, run)
			})
		}, opts...)
	if w.conf.Initial {
		// The initial run can't start before the lock is released.
		e.stateTracker.SetStatus(w.index, statetrack.StatusPending)
	}
}

// close detaches the adapter and waits for the running command to return.
func (w *cmdWatcher) close() {
	w.lock.Lock()
	w.closed = true
	if w.unsubscribeStatus != nil {
		w.unsubscribeStatus()
	}
	if w.adapter != nil {
		w.adapter.Detach()
	}
	w.lock.Unlock()

	w.runner.Cancel()
	w.runner.Wait()
}

func (e *Engine) execute(ctx context.Context, w *cmdWatcher, run uint64) {
	e.stateTracker.SetScheduled(w.index, w.handle.Generation())
	e.stateTracker.SetStatus(w.index, statetrack.StatusRunning)
	w.logger.Info("running", "cmd", w.conf.Cmd)

	env := []string{EnvChangedFiles + "=" + strings.Join(w.changed.Drain(), "\n")}
	start := time.Now()
	res, err := cmdrun.Sh(ctx, e.dirAbsolute, env, w.conf.Cmd)
	took := time.Since(start)

	switch {
	case ctx.Err() != nil:
		w.logger.Info("canceled", "duration", took)
		if w.latestRun.Load() == run {
			// Not superseded by a newer run.
			e.stateTracker.Finish(w.index, statetrack.StatusCanceled, "", took)
		}
	case errors.Is(err, cmdrun.ErrExitCode):
		output := string(res.Output)
		w.logger.Error("command failed",
			"exit_code", res.ExitCode, "duration", took)
		_, _ = io.WriteString(e.stdout, output)
		e.stateTracker.Finish(w.index, statetrack.StatusFailed, output, took)
	case err != nil:
		w.logger.Error("running command", "err", err)
		e.stateTracker.Finish(w.index, statetrack.StatusFailed, err.Error(), took)
	default:
		w.logger.Info("done", "duration", took)
		e.stateTracker.Finish(w.index, statetrack.StatusOK, string(res.Output), took)
	}
}
