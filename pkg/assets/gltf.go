package assets

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/chazu/arbor/pkg/kernel"
)

// glTF constants.
const (
	glbMagic     = 0x46546C67 // "glTF"
	glbChunkJSON = 0x4E4F534A // "JSON"
	glbChunkBIN  = 0x004E4942 // "BIN\x00"

	compByte   = 5120
	compUByte  = 5121
	compShort  = 5122
	compUShort = 5123
	compUInt   = 5125
	compFloat  = 5126

	modeTriangles = 4
)

type gltfDoc struct {
	Asset struct {
		Version string `json:"version"`
	} `json:"asset"`
	Meshes []struct {
		Name       string `json:"name"`
		Primitives []struct {
			Attributes map[string]int `json:"attributes"`
			Indices    *int           `json:"indices"`
			Material   *int           `json:"material"`
			Mode       *int           `json:"mode"`
		} `json:"primitives"`
	} `json:"meshes"`
	Materials []struct {
		Name string `json:"name"`
		PBR  *struct {
			BaseColorFactor []float32 `json:"baseColorFactor"`
			MetallicFactor  *float32  `json:"metallicFactor"`
			RoughnessFactor *float32  `json:"roughnessFactor"`
		} `json:"pbrMetallicRoughness"`
		AlphaMode string `json:"alphaMode"`
	} `json:"materials"`
	Accessors []struct {
		BufferView    *int   `json:"bufferView"`
		ByteOffset    int    `json:"byteOffset"`
		ComponentType int    `json:"componentType"`
		Count         int    `json:"count"`
		Type          string `json:"type"`
	} `json:"accessors"`
	BufferViews []struct {
		Buffer     int `json:"buffer"`
		ByteOffset int `json:"byteOffset"`
		ByteLength int `json:"byteLength"`
		ByteStride int `json:"byteStride"`
	} `json:"bufferViews"`
	Buffers []struct {
		ByteLength int    `json:"byteLength"`
		URI        string `json:"uri"`
	} `json:"buffers"`
}

// resolveFunc loads an external buffer referenced by a relative uri.
type resolveFunc func(uri string) ([]byte, error)

// splitGLB returns the JSON and BIN chunks of a binary glTF container.
func splitGLB(data []byte) (jsonChunk, bin []byte, err error) {
	if len(data) < 20 || binary.LittleEndian.Uint32(data) != glbMagic {
		return nil, nil, fmt.Errorf("%w: missing glb header", ErrMalformed)
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != 2 {
		return nil, nil, fmt.Errorf("%w: glb version %d", ErrUnsupportedFormat, v)
	}
	total := int(binary.LittleEndian.Uint32(data[8:]))
	if total > len(data) {
		return nil, nil, fmt.Errorf("%w: glb length %d exceeds file size %d", ErrMalformed, total, len(data))
	}
	for off := 12; off+8 <= total; {
		n := int(binary.LittleEndian.Uint32(data[off:]))
		typ := binary.LittleEndian.Uint32(data[off+4:])
		start := off + 8
		if n < 0 || start+n > total {
			return nil, nil, fmt.Errorf("%w: glb chunk overruns file", ErrMalformed)
		}
		switch typ {
		case glbChunkJSON:
			jsonChunk = data[start : start+n]
		case glbChunkBIN:
			bin = data[start : start+n]
		}
		off = start + n
	}
	if jsonChunk == nil {
		return nil, nil, fmt.Errorf("%w: glb has no JSON chunk", ErrMalformed)
	}
	return jsonChunk, bin, nil
}

// decodeGLTF decodes a glTF JSON document. bin is the embedded GLB buffer,
// if any; resolve loads external buffers.
func decodeGLTF(raw, bin []byte, resolve resolveFunc) ([]*kernel.Mesh, []Material, error) {
	var doc gltfDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2") {
		return nil, nil, fmt.Errorf("%w: glTF version %q", ErrUnsupportedFormat, doc.Asset.Version)
	}

	buffers := make([][]byte, len(doc.Buffers))
	for i, b := range doc.Buffers {
		var err error
		switch {
		case b.URI == "" && i == 0 && bin != nil:
			buffers[i] = bin
		case strings.HasPrefix(b.URI, "data:"):
			buffers[i], err = decodeDataURI(b.URI)
		case b.URI != "" && resolve != nil:
			buffers[i], err = resolve(b.URI)
		default:
			err = fmt.Errorf("%w: buffer %d has no data", ErrMalformed, i)
		}
		if err != nil {
			return nil, nil, err
		}
		if len(buffers[i]) < b.ByteLength {
			return nil, nil, fmt.Errorf("%w: buffer %d is %d bytes, want %d", ErrMalformed, i, len(buffers[i]), b.ByteLength)
		}
	}

	d := &gltfDecoder{doc: &doc, buffers: buffers}
	var meshes []*kernel.Mesh
	for _, m := range doc.Meshes {
		for pi, p := range m.Primitives {
			if p.Mode != nil && *p.Mode != modeTriangles {
				continue
			}
			mesh, err := d.primitive(p.Attributes, p.Indices)
			if err != nil {
				return nil, nil, fmt.Errorf("mesh %q primitive %d: %w", m.Name, pi, err)
			}
			mesh.PartName = m.Name
			mesh.Material = -1
			if p.Material != nil {
				if *p.Material < 0 || *p.Material >= len(doc.Materials) {
					return nil, nil, fmt.Errorf("%w: material %d out of range", ErrMalformed, *p.Material)
				}
				mesh.Material = *p.Material
			}
			meshes = append(meshes, mesh)
		}
	}

	materials := make([]Material, len(doc.Materials))
	for i, m := range doc.Materials {
		mat := Material{Name: m.Name, Color: [4]float32{1, 1, 1, 1}, Metalness: 1, Roughness: 1}
		if m.PBR != nil {
			if len(m.PBR.BaseColorFactor) == 4 {
				copy(mat.Color[:], m.PBR.BaseColorFactor)
			}
			if m.PBR.MetallicFactor != nil {
				mat.Metalness = *m.PBR.MetallicFactor
			}
			if m.PBR.RoughnessFactor != nil {
				mat.Roughness = *m.PBR.RoughnessFactor
			}
		}
		mat.Transparent = m.AlphaMode == "BLEND"
		materials[i] = mat
	}
	return meshes, materials, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	i := strings.Index(uri, ";base64,")
	if i < 0 {
		return nil, fmt.Errorf("%w: only base64 data URIs are supported", ErrMalformed)
	}
	out, err := base64.StdEncoding.DecodeString(uri[i+len(";base64,"):])
	if err != nil {
		return nil, fmt.Errorf("%w: data uri: %v", ErrMalformed, err)
	}
	return out, nil
}

type gltfDecoder struct {
	doc     *gltfDoc
	buffers [][]byte
}

func (d *gltfDecoder) primitive(attrs map[string]int, indices *int) (*kernel.Mesh, error) {
	pos, ok := attrs["POSITION"]
	if !ok {
		return nil, fmt.Errorf("%w: primitive has no POSITION", ErrMalformed)
	}
	m := &kernel.Mesh{}
	var err error
	if m.Vertices, err = d.floats(pos, "VEC3"); err != nil {
		return nil, err
	}
	if n, ok := attrs["NORMAL"]; ok {
		if m.Normals, err = d.floats(n, "VEC3"); err != nil {
			return nil, err
		}
	}
	if uv, ok := attrs["TEXCOORD_0"]; ok {
		if m.Texcoords, err = d.floats(uv, "VEC2"); err != nil {
			return nil, err
		}
	}
	if (m.Normals != nil && len(m.Normals) != len(m.Vertices)) || (m.Texcoords != nil && len(m.Texcoords)/2 != m.VertexCount()) {
		return nil, fmt.Errorf("%w: attribute counts differ from POSITION", ErrMalformed)
	}
	if indices != nil {
		if m.Indices, err = d.indices(*indices); err != nil {
			return nil, err
		}
	} else {
		m.Indices = make([]uint32, m.VertexCount())
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}
	for _, idx := range m.Indices {
		if int(idx) >= m.VertexCount() {
			return nil, fmt.Errorf("%w: index %d out of range", ErrMalformed, idx)
		}
	}
	return m, nil
}

// maxByteStride is the largest vertex stride glTF allows.
const maxByteStride = 252

var typeComponents = map[string]int{"SCALAR": 1, "VEC2": 2, "VEC3": 3, "VEC4": 4}

var componentSize = map[int]int{
	compByte: 1, compUByte: 1, compShort: 2, compUShort: 2, compUInt: 4, compFloat: 4,
}

// view returns the bytes backing accessor i, the element stride and the
// per-element size.
func (d *gltfDecoder) view(i int) (data []byte, stride, elem int, err error) {
	if i < 0 || i >= len(d.doc.Accessors) {
		return nil, 0, 0, fmt.Errorf("%w: accessor %d out of range", ErrMalformed, i)
	}
	a := d.doc.Accessors[i]
	comps, size := typeComponents[a.Type], componentSize[a.ComponentType]
	if comps == 0 || size == 0 {
		return nil, 0, 0, fmt.Errorf("%w: accessor %d has type %s/%d", ErrMalformed, i, a.Type, a.ComponentType)
	}
	elem = comps * size
	if a.BufferView == nil || *a.BufferView < 0 || *a.BufferView >= len(d.doc.BufferViews) {
		return nil, 0, 0, fmt.Errorf("%w: accessor %d has no buffer view", ErrMalformed, i)
	}
	bv := d.doc.BufferViews[*a.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(d.buffers) {
		return nil, 0, 0, fmt.Errorf("%w: buffer %d out of range", ErrMalformed, bv.Buffer)
	}
	stride = bv.ByteStride
	switch {
	case stride == 0:
		stride = elem
	case stride < elem || stride%4 != 0 || stride > maxByteStride:
		return nil, 0, 0, fmt.Errorf("%w: buffer view %d has byte stride %d", ErrMalformed, *a.BufferView, stride)
	}
	if a.Count < 0 || a.ByteOffset < 0 || bv.ByteOffset < 0 || bv.ByteLength < 0 {
		return nil, 0, 0, fmt.Errorf("%w: accessor %d has a negative count or offset", ErrMalformed, i)
	}
	buf := d.buffers[bv.Buffer]
	start := bv.ByteOffset + a.ByteOffset
	if start > len(buf) || (a.Count > 0 && a.Count-1 > (len(buf)-start)/stride) {
		return nil, 0, 0, fmt.Errorf("%w: accessor %d overruns its buffer", ErrMalformed, i)
	}
	end := start
	if a.Count > 0 {
		end = start + (a.Count-1)*stride + elem
	}
	if end > len(buf) || end > bv.ByteOffset+bv.ByteLength {
		return nil, 0, 0, fmt.Errorf("%w: accessor %d overruns its buffer", ErrMalformed, i)
	}
	return buf[start:end], stride, elem, nil
}

func (d *gltfDecoder) floats(i int, wantType string) ([]float32, error) {
	data, stride, _, err := d.view(i)
	if err != nil {
		return nil, err
	}
	a := d.doc.Accessors[i]
	if a.Type != wantType || a.ComponentType != compFloat {
		return nil, fmt.Errorf("%w: accessor %d is %s/%d, want float %s", ErrUnsupportedFormat, i, a.Type, a.ComponentType, wantType)
	}
	comps := typeComponents[a.Type]
	out := make([]float32, 0, a.Count*comps)
	for e := 0; e < a.Count; e++ {
		base := e * stride
		for c := 0; c < comps; c++ {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(data[base+c*4:])))
		}
	}
	return out, nil
}

func (d *gltfDecoder) indices(i int) ([]uint32, error) {
	data, stride, _, err := d.view(i)
	if err != nil {
		return nil, err
	}
	a := d.doc.Accessors[i]
	if a.Type != "SCALAR" {
		return nil, fmt.Errorf("%w: index accessor %d is %s", ErrMalformed, i, a.Type)
	}
	out := make([]uint32, a.Count)
	for e := range out {
		base := e * stride
		switch a.ComponentType {
		case compUByte:
			out[e] = uint32(data[base])
		case compUShort:
			out[e] = uint32(binary.LittleEndian.Uint16(data[base:]))
		case compUInt:
			out[e] = binary.LittleEndian.Uint32(data[base:])
		default:
			return nil, fmt.Errorf("%w: index component type %d", ErrMalformed, a.ComponentType)
		}
	}
	return out, nil
}
