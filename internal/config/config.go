// Package config loads ringy's configuration from JSONC files and CLI flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	File        string `json:"file"`
	Capacity    int    `json:"capacity"`
	PayloadSize int    `json:"payload_size"`
	Writeback   string `json:"writeback"`
	LogFile     string `json:"log_file,omitempty"`
	LogLevel    string `json:"log_level"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	FileAbs      string `json:"-"` // Absolute path to the buffer file
	LogFileAbs   string `json:"-"` // Absolute path to the log file, empty if logging to stderr

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// CLI defaults. These are larger than the library defaults, which only
// exist for compatibility with files written by older tools.
const (
	DefaultFile        = ".ringy/buffer.ring"
	DefaultCapacity    = 64
	DefaultPayloadSize = 128
	DefaultWriteback   = "sync"
	DefaultLogLevel    = "warn"
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		File:        DefaultFile,
		Capacity:    DefaultCapacity,
		PayloadSize: DefaultPayloadSize,
		Writeback:   DefaultWriteback,
		LogLevel:    DefaultLogLevel,
	}
}

// FileName is the default project config file name.
const FileName = ".ringy.json"

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/ringy/config.json if set, otherwise ~/.config/ringy/config.json.
// Returns empty string if home directory cannot be determined.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "ringy", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "ringy", "config.json")
	}

	return ""
}

// Overrides are values taken from CLI flags. Zero values mean "not set",
// except File, which is applied whenever FileSet is true.
type Overrides struct {
	File        string
	FileSet     bool
	Capacity    int
	PayloadSize int
	LogLevel    string
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Overrides       Overrides         // flag values
	Env             map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/ringy/config.json or $XDG_CONFIG_HOME/ringy/config.json)
// 3. Project config file at default location (.ringy.json, if exists)
// 4. Explicit config file via ConfigPath (replaces 3)
// 5. CLI overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	if !filepath.IsAbs(workDir) {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
		}

		workDir = abs
	}

	cfg := Default()

	globalCfg, globalFile, err := loadGlobal(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalFile
	cfg = merge(cfg, globalCfg)

	projectCfg, projectFile, err := loadProject(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectFile
	cfg = merge(cfg, projectCfg)

	cfg, err = applyOverrides(cfg, input.Overrides)
	if err != nil {
		return Config{}, err
	}

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir
	cfg.FileAbs = absPath(workDir, cfg.File)

	if cfg.LogFile != "" {
		cfg.LogFileAbs = absPath(workDir, cfg.LogFile)
	}

	return cfg, nil
}

func absPath(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(workDir, path)
}

func loadGlobal(env map[string]string) (Config, string, error) {
	path := globalPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadProject loads the project config file (.ringy.json) or an explicit config file.
func loadProject(workDir, configPath string) (Config, string, error) {
	if configPath == "" {
		path := filepath.Join(workDir, FileName)

		cfg, loaded, err := loadFile(path, false)
		if err != nil || !loaded {
			return Config{}, "", err
		}

		return cfg, path, nil
	}

	path := absPath(workDir, configPath)

	// Check existence first to provide a clear "not found" error
	_, statErr := os.Stat(path)
	if statErr != nil {
		return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
	}

	cfg, _, err := loadFile(path, true)
	if err != nil {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadFile loads a config file. If mustExist is false, a missing file returns
// loaded=false and no error.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

// merge copies every non-zero field of overlay onto base.
func merge(base, overlay Config) Config {
	if overlay.File != "" {
		base.File = overlay.File
	}

	if overlay.Capacity != 0 {
		base.Capacity = overlay.Capacity
	}

	if overlay.PayloadSize != 0 {
		base.PayloadSize = overlay.PayloadSize
	}

	if overlay.Writeback != "" {
		base.Writeback = overlay.Writeback
	}

	if overlay.LogFile != "" {
		base.LogFile = overlay.LogFile
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	return base
}

func applyOverrides(cfg Config, o Overrides) (Config, error) {
	if o.FileSet {
		if o.File == "" {
			return Config{}, ErrFileEmpty
		}

		cfg.File = o.File
	}

	return merge(cfg, Config{
		Capacity:    o.Capacity,
		PayloadSize: o.PayloadSize,
		LogLevel:    o.LogLevel,
	}), nil
}

func validate(cfg Config) error {
	if cfg.File == "" {
		return ErrFileEmpty
	}

	if cfg.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidValue, cfg.Capacity)
	}

	if cfg.PayloadSize < 1 {
		return fmt.Errorf("%w: payload_size must be positive, got %d", ErrInvalidValue, cfg.PayloadSize)
	}

	_, err := ringbuf.ParseWritebackMode(cfg.Writeback)
	if err != nil {
		return fmt.Errorf("%w: writeback: %w", ErrInvalidValue, err)
	}

	_, err = logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidValue, err)
	}

	return nil
}

// Options converts the config into ringbuf options. The logger is left to
// the caller.
func (c Config) Options() ringbuf.Options {
	// Validated by Load.
	writeback, _ := ringbuf.ParseWritebackMode(c.Writeback)

	return ringbuf.Options{
		Path:        c.FileAbs,
		Capacity:    c.Capacity,
		PayloadSize: c.PayloadSize,
		Writeback:   writeback,
	}
}

// Level returns the parsed log level.
func (c Config) Level() logrus.Level {
	// Validated by Load.
	level, _ := logrus.ParseLevel(c.LogLevel)

	return level
}

// Format returns the config as formatted JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
