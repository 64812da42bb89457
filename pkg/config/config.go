// Package config holds runtime settings, read from a TOML file over
// defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/chazu/arbor/pkg/batch"
	"github.com/chazu/arbor/pkg/editor"
	"github.com/chazu/arbor/pkg/history"
	"github.com/chazu/arbor/pkg/kernel/sdfx"
	"github.com/chazu/arbor/pkg/modelreg"
)

// Duration is a time.Duration written as a string such as "500ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the full settings tree.
type Config struct {
	History HistoryConfig `toml:"history"`
	Assets  AssetsConfig  `toml:"assets"`
	Editor  EditorConfig  `toml:"editor"`
	Render  RenderConfig  `toml:"render"`
	Log     LogConfig     `toml:"log"`
}

type HistoryConfig struct {
	Limit    int      `toml:"limit"`
	Debounce Duration `toml:"debounce"`
}

type AssetsConfig struct {
	Root      string   `toml:"root"`
	ScanDelay Duration `toml:"scan_delay"`
	Watch     bool     `toml:"watch"`
}

type EditorConfig struct {
	DropBefore float64 `toml:"drop_before"`
	DropAfter  float64 `toml:"drop_after"`
}

type RenderConfig struct {
	MeshCells    int `toml:"mesh_cells"`
	MinInstances int `toml:"min_instances"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		History: HistoryConfig{Limit: history.DefaultLimit, Debounce: Duration{history.DefaultDebounce}},
		Assets:  AssetsConfig{Root: "assets", ScanDelay: Duration{modelreg.DefaultScanDelay}},
		Editor:  EditorConfig{DropBefore: editor.DefaultDropPolicy().Before, DropAfter: editor.DefaultDropPolicy().After},
		Render:  RenderConfig{MeshCells: sdfx.DefaultMeshCells, MinInstances: batch.DefaultMinInstances},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Parse reads TOML over the defaults. Keys absent from data keep their
// default; unknown keys are an error.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads the file at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	if c.History.Limit < 2 {
		errs = append(errs, fmt.Errorf("history.limit %d must be at least 2", c.History.Limit))
	}
	if c.History.Debounce.Duration < 0 {
		errs = append(errs, fmt.Errorf("history.debounce %s is negative", c.History.Debounce))
	}
	if c.Assets.ScanDelay.Duration < 0 {
		errs = append(errs, fmt.Errorf("assets.scan_delay %s is negative", c.Assets.ScanDelay))
	}
	if err := c.DropPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Render.MeshCells < 1 {
		errs = append(errs, fmt.Errorf("render.mesh_cells %d must be positive", c.Render.MeshCells))
	}
	if c.Render.MinInstances < 1 {
		errs = append(errs, fmt.Errorf("render.min_instances %d must be positive", c.Render.MinInstances))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", f))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DropPolicy returns the editor drop thresholds.
func (c Config) DropPolicy() editor.DropPolicy {
	return editor.DropPolicy{Before: c.Editor.DropBefore, After: c.Editor.DropAfter}
}

func (l LogConfig) level() (slog.Level, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return lv, nil
}

// NewLogger builds a logger writing to w at the configured level and
// format.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	lv, err := c.Log.level()
	if err != nil {
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
