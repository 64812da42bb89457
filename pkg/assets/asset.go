// Package assets is the loader boundary for external model files. The
// rest of the system only depends on the Loader contract; FileLoader is the
// reference implementation, reading glTF and GLB from an fs.FS.
package assets

import (
	"context"
	"errors"

	"github.com/chazu/arbor/pkg/kernel"
)

var (
	// ErrUnsupportedFormat is wrapped when a file is recognised but cannot
	// be decoded, or not recognised at all.
	ErrUnsupportedFormat = errors.New("assets: unsupported format")

	// ErrMalformed is wrapped when a file claims a supported format but its
	// contents are invalid.
	ErrMalformed = errors.New("assets: malformed file")
)

// Material is the surface description of one asset material slot.
type Material struct {
	Name        string
	Color       [4]float32 // linear RGBA
	Metalness   float32
	Roughness   float32
	Transparent bool
}

// DefaultMaterial is used by meshes that name no material.
var DefaultMaterial = Material{Name: "default", Color: [4]float32{0.8, 0.8, 0.8, 1}, Roughness: 1}

// Asset is a loaded model: a list of meshes in model space and the
// materials they index. Mesh.Material is an index into Materials, or -1
// for DefaultMaterial. An Asset is immutable once returned by a Loader.
type Asset struct {
	Filename  string
	Format    Format
	Meshes    []*kernel.Mesh
	Materials []Material
}

// MaterialFor returns the material of mesh i.
func (a *Asset) MaterialFor(i int) Material {
	idx := a.Meshes[i].Material
	if idx < 0 || idx >= len(a.Materials) {
		return DefaultMaterial
	}
	return a.Materials[idx]
}

// Layout returns the vertex layout shared by every mesh, and false when
// the meshes disagree or there are none.
func (a *Asset) Layout() (kernel.Attribute, bool) {
	if len(a.Meshes) == 0 {
		return 0, false
	}
	l := a.Meshes[0].Layout()
	for _, m := range a.Meshes[1:] {
		if m.Layout() != l {
			return 0, false
		}
	}
	return l, true
}

// TriangleCount sums the triangles of every mesh.
func (a *Asset) TriangleCount() int {
	n := 0
	for _, m := range a.Meshes {
		n += m.TriangleCount()
	}
	return n
}

// Loader loads one model file. Implementations must be safe for
// concurrent use; the model registry calls Load from background
// goroutines, at most once at a time per filename.
type Loader interface {
	Load(ctx context.Context, filename string) (*Asset, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, filename string) (*Asset, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, filename string) (*Asset, error) {
	return f(ctx, filename)
}
