package config

import (
	"bytes"
	"debug/buildinfo"
	"encoding"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/romshark/yamagiconf"
)

const (
	Version = "0.3.1"

	DefaultDebounce = 300 * time.Millisecond
)

type Config struct {
	// Dir is the root directory to watch recursively.
	Dir string `yaml:"dir" validate:"dirpath,required"`

	dirAbsolute string `yaml:"-"` // Initialized from Dir

	// Exclude defines glob expressions matching paths (relative to Dir)
	// excluded from watching entirely.
	Exclude GlobList `yaml:"exclude"`

	// Debounce is the default debounce duration for watchers
	// that don't define their own.
	Debounce time.Duration `yaml:"debounce"`

	// EventsHost is the optional host address of the websocket events feed.
	// Example: "127.0.0.1:9797". The feed is disabled when empty.
	EventsHost string `yaml:"events-host" validate:"omitempty,hostname_port"`

	// Log specifies logging related configurations.
	Log ConfigLog `yaml:"log"`

	// Watchers defines the commands to run when watched files change.
	Watchers []ConfigWatcher `yaml:"watchers" validate:"required"`
}

// DirAbsolute returns the absolute path of Dir.
func (c *Config) DirAbsolute() string { return c.dirAbsolute }

func (c Config) Validate() error {
	names := make(map[TrimmedString]struct{}, len(c.Watchers))
	for i, w := range c.Watchers {
		if _, ok := names[w.Name]; ok {
			return fmt.Errorf("watcher at index %d: duplicate name %q", i, w.Name)
		}
		names[w.Name] = struct{}{}
	}
	return nil
}

type ConfigLog struct {
	// Level accepts either of:
	//  - "": empty string is the same as "erronly"
	//  - "erronly": error logs only.
	//  - "verbose": verbose logging of relevant events.
	//  - "debug": verbose debug logging.
	Level LogLevel `yaml:"level"`
}

type ConfigWatcher struct {
	// Name is the display name for the watcher.
	Name TrimmedString `yaml:"name"`

	// Include specifies doublestar patterns (relative to dir)
	// for what files to watch.
	Include PatternList `yaml:"include"`

	// Exclude specifies doublestar patterns for what files to ignore
	// that would otherwise match `include`.
	Exclude PatternList `yaml:"exclude"`

	// Debounce defines how long to wait for more file changes
	// after the last one occurred before executing cmd.
	// The top-level debounce duration is applied if left empty.
	Debounce time.Duration `yaml:"debounce"`

	// Cmd specifies the shell command to run. Cmd is executed in dir.
	Cmd CmdStr `yaml:"cmd"`

	// Initial runs cmd once on startup, before any file changed.
	Initial bool `yaml:"initial"`
}

func (w ConfigWatcher) Validate() error {
	if w.Name == "" {
		return errors.New("watcher has no name")
	}
	if w.Cmd == "" {
		return fmt.Errorf("watcher %q has no cmd", w.Name)
	}
	if len(w.Include) < 1 {
		return fmt.Errorf("watcher %q includes nothing", w.Name)
	}
	if w.Debounce < 0 {
		return fmt.Errorf("watcher %q has negative debounce", w.Name)
	}
	return nil
}

// TrimmedString removes all leading and trailing white space,
// as defined by Unicode, when parsing from text as TextUnmarshaler.
type TrimmedString string

var _ encoding.TextUnmarshaler = new(TrimmedString)

func (t *TrimmedString) UnmarshalText(text []byte) error {
	*t = TrimmedString(bytes.TrimSpace(text))
	return nil
}

type LogLevel int8

const (
	LogLevelErrOnly LogLevel = iota
	LogLevelVerbose
	LogLevelDebug
)

func (l *LogLevel) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "erronly":
		*l = LogLevelErrOnly
	case "verbose":
		*l = LogLevelVerbose
	case "debug":
		*l = LogLevelDebug
	default:
		return fmt.Errorf(`invalid log option %q, `+
			`use either of: ["" (same as erronly), "erronly", "verbose", "debug"]`,
			string(text))
	}
	return nil
}

// SlogLevel returns the minimum slog level to be printed.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelVerbose:
		return slog.LevelInfo
	case LogLevelDebug:
		return slog.LevelDebug
	}
	return slog.LevelError
}

type CmdStr string

func (c *CmdStr) UnmarshalText(t []byte) error {
	*c = CmdStr(bytes.Trim(t, " \t\n\r"))
	return nil
}

// Cmd returns only the command without arguments.
func (c CmdStr) Cmd() string {
	if c == "" {
		return ""
	}
	return strings.Fields(string(c))[0]
}

// GlobList is a list of gobwas/glob expressions.
type GlobList []string

func (e GlobList) Validate() error {
	for i, expr := range e {
		if _, err := glob.Compile(expr); err != nil {
			return fmt.Errorf("at index %d: %w", i, err)
		}
	}
	return nil
}

// PatternList is a list of doublestar patterns.
type PatternList []string

func (l PatternList) Validate() error {
	for i, p := range l {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("at index %d: invalid pattern %q", i, p)
		}
	}
	return nil
}

func defaults() Config {
	var c Config
	c.Dir = "./"
	c.Debounce = DefaultDebounce
	c.Log.Level = LogLevelErrOnly
	return c
}

// Load parses the YAML config from src.
func Load[S string | []byte](src S) (*Config, error) {
	c := defaults()
	if err := yamagiconf.Load(src, &c); err != nil {
		return nil, err
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads and parses the YAML config file at path.
func LoadFile(path string) (*Config, error) {
	c := defaults()
	if err := yamagiconf.LoadFile(path, &c); err != nil {
		return nil, err
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) init() (err error) {
	// Set default watch debounce
	for i := range c.Watchers {
		if c.Watchers[i].Debounce == 0 {
			c.Watchers[i].Debounce = c.Debounce
		}
	}
	c.dirAbsolute, err = filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("getting absolute path for dir: %w", err)
	}
	return nil
}

// ErrVersionRequested is returned by Parse when the -version flag is set.
var ErrVersionRequested = errors.New("version requested")

// Parse parses CLI arguments and loads the config file.
// The config file is detected automatically if -config isn't specified.
func Parse(args []string, stderr io.Writer) (*Config, error) {
	f := flag.NewFlagSet("debouncify", flag.ContinueOnError)
	f.SetOutput(stderr)
	fVersion := f.Bool("version", false, "show version")
	fConfigPath := f.String("config", "", "config file path")
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	if *fVersion {
		return nil, ErrVersionRequested
	}

	path := *fConfigPath
	if path == "" {
		// Try to detect config automatically.
		for _, p := range []string{"debouncify.yml", "debouncify.yaml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			return nil, errors.New("couldn't find config file: debouncify.yml")
		}
	}
	c, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	return c, nil
}

// PrintVersionInfo prints the version and build information of the executable.
func PrintVersionInfo(w io.Writer) {
	fmt.Fprintf(w, "debouncify v%s\n", Version)
	p, err := os.Executable()
	if err != nil {
		return
	}
	if info, err := buildinfo.ReadFile(p); err == nil {
		fmt.Fprintf(w, "\n%v\n", info)
	}
}
