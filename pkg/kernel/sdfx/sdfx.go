// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/obstacled/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// ErrInvalidMesh is returned when a polyhedron cannot be compiled.
var ErrInvalidMesh = errors.New("invalid mesh")

// boxFaces lists the 12 outward-facing triangles of a box whose corners are
// indexed by bits: bit 0 selects max X, bit 1 max Y, bit 2 max Z.
var boxFaces = [12]kernel.Face{
	{0, 2, 3}, {0, 3, 1}, // -Z
	{4, 5, 7}, {4, 7, 6}, // +Z
	{0, 1, 5}, {0, 5, 4}, // -Y
	{2, 6, 7}, {2, 7, 3}, // +Y
	{0, 4, 6}, {0, 6, 2}, // -X
	{1, 3, 7}, {1, 7, 5}, // +X
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

// Matrix converts a placement to an sdfx 4x4 matrix. Rotation is applied
// about X, then Y, then Z, followed by the translation.
func Matrix(t kernel.Transform) sdf.M44 {
	rot := sdf.RotateZ(t.Yaw).Mul(sdf.RotateY(t.Pitch)).Mul(sdf.RotateX(t.Roll))
	return sdf.Translate3d(v3.Vec{X: t.X, Y: t.Y, Z: t.Z}).Mul(rot)
}

// Box creates a box polyhedron with the given dimensions. The mesh corners
// come from the bounding box of sdf.Box3D, so the box is centred at the
// origin.
func (k *SdfxKernel) Box(name string, x, y, z float64) (*kernel.Polyhedron, error) {
	for _, d := range [...]float64{x, y, z} {
		if !(d > 0) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("box %q: dimensions must be positive and finite, got (%g, %g, %g)", name, x, y, z)
		}
	}
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	bb := s.BoundingBox()

	p := kernel.NewPolyhedron(name)
	for i := 0; i < 8; i++ {
		c := bb.Min
		if i&1 != 0 {
			c.X = bb.Max.X
		}
		if i&2 != 0 {
			c.Y = bb.Max.Y
		}
		if i&4 != 0 {
			c.Z = bb.Max.Z
		}
		p.AddPoint(c.X, c.Y, c.Z)
	}
	for _, f := range boxFaces {
		p.AddTriangle(f[0], f[1], f[2])
	}
	return p, nil
}

// BuildCollisionEntity validates the mesh and publishes a collision entity
// with local and world bounds. Triangle ranks are checked here, not when
// triangles are appended.
func (k *SdfxKernel) BuildCollisionEntity(p *kernel.Polyhedron) error {
	points := p.Points()
	faces := p.Triangles()

	tris, err := triangles(p.Name(), points, faces)
	if err != nil {
		return err
	}
	for i, tri := range tris {
		if doubledArea(tri) < kernel.DegenerateArea {
			return fmt.Errorf("%w: polyhedron %q: triangle %d is degenerate", ErrInvalidMesh, p.Name(), i)
		}
	}

	local := bounds(points)
	t := p.Transform()
	e := &kernel.CollisionEntity{
		Triangles: len(faces),
		LocalMin:  [3]float64{local.Min.X, local.Min.Y, local.Min.Z},
		LocalMax:  [3]float64{local.Max.X, local.Max.Y, local.Max.Z},
	}
	setWorld(e, local, t)
	p.Place(t, e)
	return nil
}

// ApplyTransform places p in world space. Compiled polyhedra get their world
// bounds refreshed together with the placement.
func (k *SdfxKernel) ApplyTransform(p kernel.Placeable, t kernel.Transform) error {
	if !t.IsFinite() {
		return fmt.Errorf("transform for %q has non-finite components: %+v", p.Name(), t)
	}
	poly, ok := p.(*kernel.Polyhedron)
	if !ok {
		p.SetTransform(t)
		return nil
	}
	var next *kernel.CollisionEntity
	if e := poly.CollisionEntity(); e != nil {
		moved := *e
		local := sdf.Box3{
			Min: v3.Vec{X: e.LocalMin[0], Y: e.LocalMin[1], Z: e.LocalMin[2]},
			Max: v3.Vec{X: e.LocalMax[0], Y: e.LocalMax[1], Z: e.LocalMax[2]},
		}
		setWorld(&moved, local, t)
		next = &moved
	}
	poly.Place(t, next)
	return nil
}

// ToMesh converts a polyhedron to a world-space triangle mesh with one face
// normal per vertex.
func (k *SdfxKernel) ToMesh(p *kernel.Polyhedron) (*kernel.Mesh, error) {
	tris, err := triangles(p.Name(), p.Points(), p.Triangles())
	if err != nil {
		return nil, err
	}
	m := Matrix(p.Transform())

	numVerts := len(tris) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, local := range tris {
		var tri sdf.Triangle3
		for j := 0; j < 3; j++ {
			tri[j] = m.MulPosition(local[j])
		}
		var nx, ny, nz float32
		if doubledArea(tri) >= kernel.DegenerateArea {
			n := tri.Normal()
			nx, ny, nz = float32(n.X), float32(n.Y), float32(n.Z)
		}
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices:    vertices,
		Normals:     normals,
		Indices:     indices,
		Name:        p.Name(),
		Transparent: p.Transparent(),
	}, nil
}

// triangles resolves face ranks into local-space triangles.
func triangles(name string, points []kernel.Point3, faces []kernel.Face) ([]sdf.Triangle3, error) {
	out := make([]sdf.Triangle3, 0, len(faces))
	for i, f := range faces {
		var tri sdf.Triangle3
		for j, rank := range f {
			if rank < 0 || rank >= len(points) {
				return nil, fmt.Errorf("%w: polyhedron %q: triangle %d references point %d, only %d points defined",
					ErrInvalidMesh, name, i, rank, len(points))
			}
			pt := points[rank]
			tri[j] = v3.Vec{X: pt[0], Y: pt[1], Z: pt[2]}
		}
		out = append(out, tri)
	}
	return out, nil
}

// bounds returns the axis-aligned box around points, or an empty box at the
// origin when there are none.
func bounds(points []kernel.Point3) sdf.Box3 {
	if len(points) == 0 {
		return sdf.Box3{}
	}
	lo := v3.Vec{X: points[0][0], Y: points[0][1], Z: points[0][2]}
	hi := lo
	for _, pt := range points[1:] {
		lo.X, hi.X = math.Min(lo.X, pt[0]), math.Max(hi.X, pt[0])
		lo.Y, hi.Y = math.Min(lo.Y, pt[1]), math.Max(hi.Y, pt[1])
		lo.Z, hi.Z = math.Min(lo.Z, pt[2]), math.Max(hi.Z, pt[2])
	}
	return sdf.Box3{Min: lo, Max: hi}
}

func setWorld(e *kernel.CollisionEntity, local sdf.Box3, t kernel.Transform) {
	world := Matrix(t).MulBox(local)
	e.WorldMin = [3]float64{world.Min.X, world.Min.Y, world.Min.Z}
	e.WorldMax = [3]float64{world.Max.X, world.Max.Y, world.Max.Z}
}

func doubledArea(tri sdf.Triangle3) float64 {
	return tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0])).Length()
}
