// Package document saves and loads scene graphs as JSON, YAML or
// MessagePack. All three formats share one schema: a nested node tree with
// explicit ids and tagged components. Decoding builds a fresh graph and
// never touches an existing one.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ugorji/go/codec"
	"gopkg.in/yaml.v3"

	"github.com/chazu/arbor/pkg/graph"
)

// ErrMalformed is wrapped by every decode failure caused by the input.
var ErrMalformed = errors.New("document: malformed")

// Format is a serialization format.
type Format int

const (
	JSON Format = iota
	YAML
	Msgpack
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case YAML:
		return "yaml"
	case Msgpack:
		return "msgpack"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses a format name as printed by String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "msgpack", "mpk":
		return Msgpack, nil
	}
	return 0, fmt.Errorf("unknown document format %q", s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return 0, fmt.Errorf("no extension on %q", path)
	}
	return ParseFormat(ext)
}

var msgpackHandle codec.MsgpackHandle

// Encode serializes g.
func Encode(g *graph.Graph, f Format) ([]byte, error) {
	if g == nil || g.Root() == nil {
		return nil, errors.New("document: nil graph")
	}
	doc := fromGraph(g)
	switch f {
	case JSON:
		return json.MarshalIndent(doc, "", "  ")
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Msgpack:
		var out []byte
		if err := codec.NewEncoderBytes(&out, &msgpackHandle).Encode(doc); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("document: unknown format %v", f)
}

// Decode parses data into a new graph.
func Decode(data []byte, f Format) (*graph.Graph, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	var doc document
	var err error
	switch f {
	case JSON:
		err = json.Unmarshal(data, &doc)
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	case Msgpack:
		err = codec.NewDecoderBytes(data, &msgpackHandle).Decode(&doc)
	default:
		return nil, fmt.Errorf("document: unknown format %v", f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, f, err)
	}
	if doc.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d is newer than %d", ErrMalformed, doc.Version, SchemaVersion)
	}
	return doc.toGraph()
}

// Load reads a graph from path, choosing the format by extension.
func Load(path string) (*graph.Graph, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := Decode(data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// LoadFS is Load for a file in fsys.
func LoadFS(fsys fs.FS, name string) (*graph.Graph, error) {
	f, err := FormatFromPath(name)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	g, err := Decode(data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return g, nil
}

// Save writes g to path, choosing the format by extension.
func Save(path string, g *graph.Graph) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(g, f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
