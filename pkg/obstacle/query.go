package obstacle

import (
	"sort"

	"github.com/chazu/obstacled/pkg/kernel"
)

// PolyhedronInfo is a read-only summary of one polyhedron.
type PolyhedronInfo struct {
	Name                 string           `json:"name" yaml:"name"`
	Points               int              `json:"points" yaml:"points"`
	Triangles            int              `json:"triangles" yaml:"triangles"`
	Visible              bool             `json:"visible" yaml:"visible"`
	Transparent          bool             `json:"transparent" yaml:"transparent"`
	Transform            kernel.Transform `json:"transform" yaml:"transform"`
	CollisionEntityBuilt bool             `json:"collision_entity_built" yaml:"collision_entity_built"`
	WorldMin             *[3]float64      `json:"world_min,omitempty" yaml:"world_min,omitempty"`
	WorldMax             *[3]float64      `json:"world_max,omitempty" yaml:"world_max,omitempty"`
}

// ListInfo is a read-only summary of one collision list.
type ListInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members" yaml:"members"`
}

func describe(p *kernel.Polyhedron) PolyhedronInfo {
	info := PolyhedronInfo{
		Name:        p.Name(),
		Points:      p.PointCount(),
		Triangles:   p.TriangleCount(),
		Visible:     p.Visible(),
		Transparent: p.Transparent(),
		Transform:   p.Transform(),
	}
	if e := p.CollisionEntity(); e != nil {
		min, max := e.BoundingBox()
		info.CollisionEntityBuilt = true
		info.WorldMin, info.WorldMax = &min, &max
	}
	return info
}

// Polyhedra describes every polyhedron, sorted by name.
func (r *Registry) Polyhedra() []PolyhedronInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PolyhedronInfo, 0, len(r.polyhedra))
	for _, p := range r.polyhedra {
		out = append(out, describe(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Describe returns the summary of a single polyhedron.
func (r *Registry) Describe(name string) (PolyhedronInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(OpDescribe, name)
	if err != nil {
		return PolyhedronInfo{}, err
	}
	return describe(p), nil
}

// CollisionLists describes every collision list, sorted by name, members in
// insertion order.
func (r *Registry) CollisionLists() []ListInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ListInfo, 0, len(r.lists))
	for _, l := range r.lists {
		members := make([]string, len(l.members))
		for i, p := range l.members {
			members[i] = p.Name()
		}
		out = append(out, ListInfo{Name: l.name, Members: members})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ActiveObstacles returns the names in the planner's active set, in order.
func (r *Registry) ActiveObstacles() []string {
	obs := r.planner.Obstacles()
	out := make([]string, len(obs))
	for i, o := range obs {
		out[i] = o.Name()
	}
	return out
}
