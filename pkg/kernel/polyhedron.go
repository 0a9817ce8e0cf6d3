package kernel

import (
	"math"
	"sync"
)

// Point3 is a vertex coordinate.
type Point3 [3]float64

// Face is a triangle given as three point ranks.
type Face [3]int

// DegenerateArea is the smallest doubled triangle area a collision entity
// accepts.
const DegenerateArea = 1e-12

// DoubledArea returns twice the area of the triangle abc.
func DoubledArea(a, b, c Point3) float64 {
	u := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	x := u[1]*v[2] - u[2]*v[1]
	y := u[2]*v[0] - u[0]*v[2]
	z := u[0]*v[1] - u[1]*v[0]
	return math.Sqrt(x*x + y*y + z*z)
}

// CollisionEntity is the compiled, collision-testable form of a polyhedron.
// Values are immutable; the kernel publishes a new one on every rebuild or
// placement change.
type CollisionEntity struct {
	Triangles int        `json:"triangles"`
	LocalMin  [3]float64 `json:"local_min"`
	LocalMax  [3]float64 `json:"local_max"`
	WorldMin  [3]float64 `json:"world_min"`
	WorldMax  [3]float64 `json:"world_max"`
}

// BoundingBox returns the world-space axis-aligned bounding box.
func (e *CollisionEntity) BoundingBox() (min, max [3]float64) {
	return e.WorldMin, e.WorldMax
}

// Polyhedron is a named, mutable triangle mesh with a world placement and
// display flags. Points and triangles are append-only; ranks are never
// reused or renumbered.
//
// A Polyhedron is safe for concurrent use: the planner may read its
// placement while the registry moves it.
type Polyhedron struct {
	name string

	mu          sync.RWMutex
	points      []Point3
	triangles   []Face
	transform   Transform
	visible     bool
	transparent bool
	entity      *CollisionEntity
}

// Compile-time check that polyhedra can be repositioned.
var _ Placeable = (*Polyhedron)(nil)

// NewPolyhedron returns an empty, visible, opaque polyhedron placed at the
// identity.
func NewPolyhedron(name string) *Polyhedron {
	return &Polyhedron{
		name:      name,
		transform: Identity(),
		visible:   true,
	}
}

// Name returns the immutable polyhedron name.
func (p *Polyhedron) Name() string {
	return p.name
}

// AddPoint appends a vertex and returns its rank. A compiled collision
// entity is dropped because it no longer matches the mesh.
func (p *Polyhedron) AddPoint(x, y, z float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points = append(p.points, Point3{x, y, z})
	p.entity = nil
	return len(p.points) - 1
}

// AddTriangle appends a face and returns its rank. The point ranks are not
// checked here; the kernel validates them when it compiles the mesh.
func (p *Polyhedron) AddTriangle(i1, i2, i3 int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.triangles = append(p.triangles, Face{i1, i2, i3})
	p.entity = nil
	return len(p.triangles) - 1
}

// Points returns a copy of the vertex list.
func (p *Polyhedron) Points() []Point3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Point3, len(p.points))
	copy(out, p.points)
	return out
}

// Triangles returns a copy of the face list.
func (p *Polyhedron) Triangles() []Face {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Face, len(p.triangles))
	copy(out, p.triangles)
	return out
}

// PointCount returns the number of points.
func (p *Polyhedron) PointCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.points)
}

// TriangleCount returns the number of triangles.
func (p *Polyhedron) TriangleCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.triangles)
}

// Transform returns the current world placement.
func (p *Polyhedron) Transform() Transform {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.transform
}

// SetTransform replaces the world placement without touching the compiled
// entity. Kernels use Place to update both together.
func (p *Polyhedron) SetTransform(t Transform) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transform = t
}

// Place sets the placement and the matching collision entity atomically.
// A nil entity leaves the current one in place.
func (p *Polyhedron) Place(t Transform, e *CollisionEntity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transform = t
	if e != nil {
		p.entity = e
	}
}

// Visible reports the display flag.
func (p *Polyhedron) Visible() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visible
}

// SetVisible sets the display flag.
func (p *Polyhedron) SetVisible(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = v
}

// Transparent reports the transparency flag.
func (p *Polyhedron) Transparent() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.transparent
}

// SetTransparent sets the transparency flag.
func (p *Polyhedron) SetTransparent(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transparent = v
}

// CollisionEntity returns the compiled entity, or nil if the mesh has not
// been compiled since its last change.
func (p *Polyhedron) CollisionEntity() *CollisionEntity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entity
}

// CollisionEntityBuilt reports whether a compiled entity is present.
func (p *Polyhedron) CollisionEntityBuilt() bool {
	return p.CollisionEntity() != nil
}
