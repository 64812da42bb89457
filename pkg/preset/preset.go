// Package preset is a catalog of named starting scenes. Presets are either
// scene-language source, evaluated by the engine, or encoded documents.
// The default catalog is embedded in the binary.
package preset

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/chazu/arbor/pkg/document"
	"github.com/chazu/arbor/pkg/engine"
	"github.com/chazu/arbor/pkg/graph"
)

//go:embed presets
var embedded embed.FS

// ErrNotFound is returned for an unknown preset name.
var ErrNotFound = errors.New("preset: not found")

// Kind is the encoding of a preset.
type Kind int

const (
	KindSource   Kind = iota // scene language
	KindDocument             // encoded graph
)

func (k Kind) String() string {
	if k == KindSource {
		return "source"
	}
	return "document"
}

// Preset is one named scene.
type Preset struct {
	Name   string
	Kind   Kind
	Format document.Format // documents only
	Data   []byte
}

// Catalog holds presets by name. It is safe for concurrent use.
type Catalog struct {
	eng *engine.Engine

	mu      sync.RWMutex
	presets map[string]Preset
}

// New returns an empty catalog evaluating sources with eng. A nil engine
// gets a default one.
func New(eng *engine.Engine) *Catalog {
	if eng == nil {
		eng = engine.NewEngine()
	}
	return &Catalog{eng: eng, presets: make(map[string]Preset)}
}

// Default returns a catalog holding the embedded presets.
func Default(eng *engine.Engine) (*Catalog, error) {
	c := New(eng)
	sub, err := fs.Sub(embedded, "presets")
	if err != nil {
		return nil, err
	}
	if err := c.AddFS(sub); err != nil {
		return nil, err
	}
	return c, nil
}

// AddFS registers every .lisp file and every document in the top level of
// fsys, named after the file without its extension.
func (c *Catalog) AddFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p, ok, err := fromFile(fsys, e.Name())
		if err != nil {
			return err
		}
		if ok {
			c.Register(p.Name, p)
		}
	}
	return nil
}

func fromFile(fsys fs.FS, name string) (Preset, bool, error) {
	ext := path.Ext(name)
	p := Preset{Name: strings.TrimSuffix(name, ext)}
	if ext == ".lisp" {
		p.Kind = KindSource
	} else {
		f, err := document.FormatFromPath(name)
		if err != nil {
			return Preset{}, false, nil
		}
		p.Kind, p.Format = KindDocument, f
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Preset{}, false, err
	}
	p.Data = data
	return p, true, nil
}

// Register adds or replaces a preset.
func (c *Catalog) Register(name string, p Preset) {
	p.Name = name
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presets[name] = p
}

// Names returns the preset names in order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.presets))
	for n := range c.presets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Get returns the preset called name.
func (c *Catalog) Get(name string) (Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.presets[name]
	return p, ok
}

// Load builds a fresh graph from the preset called name.
func (c *Catalog) Load(name string) (*graph.Graph, error) {
	p, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	switch p.Kind {
	case KindSource:
		g, evalErrs, err := c.eng.Evaluate(string(p.Data))
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		if len(evalErrs) > 0 {
			return nil, fmt.Errorf("preset %s: %w", name, errors.Join(evalErrorsAsErrors(evalErrs)...))
		}
		return g, nil
	default:
		g, err := document.Decode(p.Data, p.Format)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		return g, nil
	}
}

func evalErrorsAsErrors(errs []engine.EvalError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}
