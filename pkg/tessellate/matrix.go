package tessellate

import (
	"github.com/chazu/arbor/pkg/graph"
	"github.com/chazu/arbor/pkg/kernel"
	"github.com/chewxy/math32"
)

// Mat4 is a column-major 4x4 affine transform.
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// TRS composes translation, XYZ Euler rotation and uniform scale, applied
// to a point in the order scale, rotate, translate.
func TRS(t graph.Transform) Mat4 {
	rx, ry, rz := float32(t.Rotation.X), float32(t.Rotation.Y), float32(t.Rotation.Z)
	a, b := math32.Cos(rx), math32.Sin(rx)
	c, d := math32.Cos(ry), math32.Sin(ry)
	e, f := math32.Cos(rz), math32.Sin(rz)
	s := float32(t.Scale)

	// Rotation = Rx * Ry * Rz.
	ae, af, be, bf := a*e, a*f, b*e, b*f
	var m Mat4
	m[0] = c * e * s
	m[4] = -c * f * s
	m[8] = d * s

	m[1] = (af + be*d) * s
	m[5] = (ae - bf*d) * s
	m[9] = -b * c * s

	m[2] = (bf - ae*d) * s
	m[6] = (be + af*d) * s
	m[10] = a * c * s

	m[12] = float32(t.Position.X)
	m[13] = float32(t.Position.Y)
	m[14] = float32(t.Position.Z)
	m[15] = 1
	return m
}

// Mul returns m * o, which applies o first.
func (m Mat4) Mul(o Mat4) Mat4 {
	var r Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * o[col*4+k]
			}
			r[col*4+row] = sum
		}
	}
	return r
}

// MulPoint transforms a position.
func (m Mat4) MulPoint(x, y, z float32) (float32, float32, float32) {
	return m[0]*x + m[4]*y + m[8]*z + m[12],
		m[1]*x + m[5]*y + m[9]*z + m[13],
		m[2]*x + m[6]*y + m[10]*z + m[14]
}

// MulDir transforms a direction and renormalises it. Scale is uniform, so
// the linear part maps normals correctly.
func (m Mat4) MulDir(x, y, z float32) (float32, float32, float32) {
	nx := m[0]*x + m[4]*y + m[8]*z
	ny := m[1]*x + m[5]*y + m[9]*z
	nz := m[2]*x + m[6]*y + m[10]*z
	l := math32.Sqrt(nx*nx + ny*ny + nz*nz)
	if l == 0 {
		return nx, ny, nz
	}
	return nx / l, ny / l, nz / l
}

// Translation returns the translation column.
func (m Mat4) Translation() [3]float32 { return [3]float32{m[12], m[13], m[14]} }

// IsIdentity reports whether m is exactly the identity.
func (m Mat4) IsIdentity() bool { return m == Identity() }

// ApplyMesh returns a world-space copy of mesh.
func (m Mat4) ApplyMesh(mesh *kernel.Mesh) *kernel.Mesh {
	out := mesh.Clone()
	for i := 0; i+2 < len(out.Vertices); i += 3 {
		out.Vertices[i], out.Vertices[i+1], out.Vertices[i+2] = m.MulPoint(out.Vertices[i], out.Vertices[i+1], out.Vertices[i+2])
	}
	for i := 0; i+2 < len(out.Normals); i += 3 {
		out.Normals[i], out.Normals[i+1], out.Normals[i+2] = m.MulDir(out.Normals[i], out.Normals[i+1], out.Normals[i+2])
	}
	return out
}
