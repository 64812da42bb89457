package assets

import (
	"bytes"
	"path"
	"strings"

	"github.com/h2non/filetype"
)

// Format identifies a model file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatGLB
	FormatGLTF
	FormatFBX
)

func (f Format) String() string {
	switch f {
	case FormatGLB:
		return "glb"
	case FormatGLTF:
		return "gltf"
	case FormatFBX:
		return "fbx"
	default:
		return "unknown"
	}
}

var (
	glbType = filetype.NewType("glb", "model/gltf-binary")
	fbxType = filetype.NewType("fbx", "application/vnd.autodesk.fbx")

	fbxMagic = []byte("Kaydara FBX Binary")
)

func init() {
	filetype.AddMatcher(glbType, func(buf []byte) bool {
		return len(buf) >= 12 && bytes.Equal(buf[:4], []byte("glTF"))
	})
	filetype.AddMatcher(fbxType, func(buf []byte) bool {
		return bytes.HasPrefix(buf, fbxMagic)
	})
}

// FormatFromExt maps a filename extension to a format.
func FormatFromExt(filename string) Format {
	switch strings.ToLower(path.Ext(filename)) {
	case ".glb":
		return FormatGLB
	case ".gltf":
		return FormatGLTF
	case ".fbx":
		return FormatFBX
	}
	return FormatUnknown
}

// Sniff identifies a format from file contents. JSON documents with an
// "asset" member are taken to be glTF.
func Sniff(data []byte) Format {
	kind, err := filetype.Match(data)
	if err == nil && kind != filetype.Unknown {
		switch kind.Extension {
		case glbType.Extension:
			return FormatGLB
		case fbxType.Extension:
			return FormatFBX
		}
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' && bytes.Contains(trimmed, []byte(`"asset"`)) {
		return FormatGLTF
	}
	return FormatUnknown
}

// DetectFormat dispatches by extension and falls back to sniffing the
// contents when the extension is missing or unknown.
func DetectFormat(filename string, data []byte) Format {
	if f := FormatFromExt(filename); f != FormatUnknown {
		return f
	}
	return Sniff(data)
}
