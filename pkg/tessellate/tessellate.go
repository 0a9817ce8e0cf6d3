// Package tessellate turns an active obstacle set into world-space triangle
// meshes using a geometry kernel. One mesh is produced per visible
// polyhedron.
package tessellate

import (
	"fmt"

	"github.com/chazu/obstacled/pkg/kernel"
	"github.com/chazu/obstacled/pkg/planner"
)

// Options controls which obstacles are tessellated.
type Options struct {
	// IncludeHidden also meshes polyhedra whose visible flag is off.
	IncludeHidden bool
}

// Tessellate walks the obstacle set in order and produces one mesh per
// polyhedron. Obstacles of other kinds have no mesh and are skipped. A
// polyhedron that appears several times yields one mesh per appearance.
// The tessellator is read-only and never changes the obstacles.
func Tessellate(obs []planner.Obstacle, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	var meshes []*kernel.Mesh
	for i, o := range obs {
		m, err := walkObstacle(k, o, opts)
		if err != nil {
			return nil, fmt.Errorf("tessellate: obstacle %d (%s): %w", i, o.Name(), err)
		}
		if m != nil {
			meshes = append(meshes, m)
		}
	}
	return meshes, nil
}

// walkObstacle returns nil when o has nothing to draw.
func walkObstacle(k kernel.Kernel, o planner.Obstacle, opts Options) (*kernel.Mesh, error) {
	switch v := o.(type) {
	case *kernel.Polyhedron:
		return handlePolyhedron(k, v, opts)
	default:
		return nil, nil
	}
}

func handlePolyhedron(k kernel.Kernel, p *kernel.Polyhedron, opts Options) (*kernel.Mesh, error) {
	if !p.Visible() && !opts.IncludeHidden {
		return nil, nil
	}
	mesh, err := k.ToMesh(p)
	if err != nil {
		return nil, fmt.Errorf("ToMesh failed: %w", err)
	}
	if mesh.Name == "" {
		mesh.Name = p.Name()
	}
	return mesh, nil
}
