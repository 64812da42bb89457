package assets

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
)

// FileLoader loads models from a filesystem. Filenames are slash-separated
// paths relative to the filesystem root.
type FileLoader struct {
	fsys fs.FS
	log  *slog.Logger
}

// NewFileLoader returns a loader reading from fsys. A nil logger selects
// slog.Default().
func NewFileLoader(fsys fs.FS, log *slog.Logger) *FileLoader {
	if log == nil {
		log = slog.Default()
	}
	return &FileLoader{fsys: fsys, log: log}
}

// Load reads and decodes filename.
func (l *FileLoader) Load(ctx context.Context, filename string) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(l.fsys, filename)
	if err != nil {
		return nil, fmt.Errorf("assets: read %s: %w", filename, err)
	}

	format := DetectFormat(filename, data)
	a := &Asset{Filename: filename, Format: format}
	switch format {
	case FormatGLB:
		jsonChunk, bin, err := splitGLB(data)
		if err != nil {
			return nil, fmt.Errorf("assets: %s: %w", filename, err)
		}
		a.Meshes, a.Materials, err = decodeGLTF(jsonChunk, bin, l.resolver(filename))
		if err != nil {
			return nil, fmt.Errorf("assets: %s: %w", filename, err)
		}
	case FormatGLTF:
		a.Meshes, a.Materials, err = decodeGLTF(data, nil, l.resolver(filename))
		if err != nil {
			return nil, fmt.Errorf("assets: %s: %w", filename, err)
		}
	case FormatFBX:
		return nil, fmt.Errorf("assets: %s: fbx: %w", filename, ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("assets: %s: %w", filename, ErrUnsupportedFormat)
	}

	l.log.Debug("asset loaded", "file", filename, "format", format.String(), "count", len(a.Meshes))
	return a, nil
}

// resolver loads buffers relative to the model file.
func (l *FileLoader) resolver(filename string) resolveFunc {
	dir := path.Dir(filename)
	return func(uri string) ([]byte, error) {
		data, err := fs.ReadFile(l.fsys, path.Join(dir, uri))
		if err != nil {
			return nil, fmt.Errorf("assets: buffer %s: %w", uri, err)
		}
		return data, nil
	}
}
