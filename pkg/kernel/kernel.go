// Package kernel defines the abstract geometry kernel the obstacle registry
// delegates to. Implementations (sdfx) build box meshes, compile polyhedra
// into collision entities and apply world placements behind this interface,
// so the registry never does mesh math itself.
package kernel

// Placeable is an obstacle that can be repositioned in world space.
// The registry matches planner entries on this capability rather than on a
// concrete type.
type Placeable interface {
	Name() string
	Transform() Transform
	SetTransform(t Transform)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Box returns a pre-populated box polyhedron (8 points, 12 triangles)
	// centred at the origin.
	Box(name string, x, y, z float64) (*Polyhedron, error)

	// BuildCollisionEntity compiles the polyhedron mesh into its collidable
	// form. Rebuilding an already compiled polyhedron is allowed.
	BuildCollisionEntity(p *Polyhedron) error

	// ApplyTransform sets the world placement of p.
	ApplyTransform(p Placeable, t Transform) error

	// ToMesh returns the world-space triangle mesh of p.
	ToMesh(p *Polyhedron) (*Mesh, error)
}
