// Package log provides a colored console slog handler.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// KeyWatcher is the attribute key printed as a watcher name tag
// in front of the message.
const KeyWatcher = "watcher"

// Handler is an [slog.Handler] producing colored single-line output.
type Handler struct {
	lock *sync.Mutex
	out  io.Writer

	level      slog.Leveler
	attrs      []slog.Attr
	group      string
	linePrefix string
	timeFormat string
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler creates a new colored [slog.Handler] writing to out.
// Timestamps are printed only when level is debug or lower.
func NewHandler(out io.Writer, level slog.Leveler) *Handler {
	return &Handler{
		lock:       new(sync.Mutex),
		out:        out,
		level:      level,
		linePrefix: "⏱ ",
		timeFormat: "15:04:05.000",
	}
}

// New creates a new logger with a colored handler.
func New(out io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(NewHandler(out, level))
}

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	_, _ = fmt.Fprint(h.out, h.linePrefix)

	if h.level.Level() <= slog.LevelDebug {
		_, _ = fGrey.Fprint(h.out, r.Time.Format(h.timeFormat))
		_, _ = fmt.Fprint(h.out, " ")
	}

	switch {
	case r.Level >= slog.LevelError:
		_, _ = fRedBold.Fprint(h.out, "ERR: ")
	case r.Level >= slog.LevelWarn:
		_, _ = fYellowBold.Fprint(h.out, "WARN: ")
	case r.Level >= slog.LevelInfo:
	default:
		_, _ = fGrey.Fprint(h.out, "DEBUG: ")
	}

	// The watcher tag goes in front of the message.
	var rest []slog.Attr
	collect := func(a slog.Attr) bool {
		if a.Key == KeyWatcher && h.group == "" {
			_, _ = fCyanBold.Fprintf(h.out, "[%s] ", a.Value.String())
			return true
		}
		rest = append(rest, a)
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	_, _ = fmt.Fprint(h.out, r.Message)
	for _, a := range rest {
		h.writeAttr(a)
	}
	_, _ = fmt.Fprintln(h.out)
	return nil
}

func (h *Handler) writeAttr(a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	if d, ok := a.Value.Any().(time.Duration); ok {
		_, _ = fmt.Fprintf(h.out, " %s=", fBlue.Sprint(key))
		_, _ = fRedBold.Fprint(h.out, DurStr(d))
		return
	}
	if a.Key == "err" {
		_, _ = fmt.Fprintf(h.out, " %s=%s", fBlue.Sprint(key), fRed.Sprint(a.Value.String()))
		return
	}

	_, _ = fmt.Fprintf(h.out, " %s=%s", fBlue.Sprint(key), fGreen.Sprint(a.Value.String()))
}

func (h *Handler) clone() *Handler {
	c := *h
	c.attrs = h.attrs[:len(h.attrs):len(h.attrs)]
	return &c
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)
	return c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	c := h.clone()
	if c.group != "" {
		name = c.group + "." + name
	}
	c.group = name
	return c
}

// Fatalf prints an error line to stderr and exits with code 1.
func Fatalf(f string, v ...any) {
	New(os.Stderr, slog.LevelError).Error(fmt.Sprintf(f, v...))
	os.Exit(1)
}

// DurStr formats a duration in a human-friendly way.
func DurStr(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%.0fns", float64(d)/float64(time.Nanosecond))
	case d < time.Millisecond:
		return fmt.Sprintf("%.0fµs", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", float64(d)/float64(time.Second))
	}
	return d.String()
}

var (
	fRedBold    = color.New(color.FgHiRed, color.Bold)
	fRed        = color.New(color.FgRed)
	fYellowBold = color.New(color.FgHiYellow, color.Bold)
	fCyanBold   = color.New(color.FgCyan, color.Bold)
	fGreen      = color.New(color.FgGreen)
	fBlue       = color.New(color.FgBlue)
	fGrey       = color.New(color.FgHiBlack)
)
