package obstacle

import (
	"fmt"
	"sort"

	"github.com/chazu/obstacled/pkg/kernel"
	"github.com/chazu/obstacled/pkg/planner"
)

// Severity indicates whether a finding would make a compile fail or is
// merely informational.
type Severity int

const (
	SeverityError   Severity = iota // the polyhedron cannot be compiled
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Finding is one problem reported by Check.
type Finding struct {
	Namespace string   `json:"namespace" yaml:"namespace"`
	Name      string   `json:"name" yaml:"name"`
	Message   string   `json:"message" yaml:"message"`
	Severity  Severity `json:"severity" yaml:"severity"`
}

func (f Finding) Error() string {
	return fmt.Sprintf("[%s] %s %q: %s", f.Severity, f.Namespace, f.Name, f.Message)
}

// Report bundles errors and warnings from every check.
type Report struct {
	Errors   []Finding `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []Finding `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// OK reports whether the check found no errors.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

func (r *Report) add(f Finding) {
	if f.Severity == SeverityError {
		r.Errors = append(r.Errors, f)
	} else {
		r.Warnings = append(r.Warnings, f)
	}
}

// Check inspects every polyhedron, list and the active set. It is read-only
// and never compiles or mutates anything. Polyhedra are visited in name
// order so that reports are stable.
//
// Errors are mesh problems that make the next compile fail. Warnings are
// open meshes, polyhedra that are neither listed nor active, empty lists,
// repeated active entries and active obstacles whose world bounds overlap.
func (r *Registry) Check() Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rep Report
	names := make([]string, 0, len(r.polyhedra))
	for name := range r.polyhedra {
		names = append(names, name)
	}
	sort.Strings(names)

	used := make(map[*kernel.Polyhedron]bool)
	for _, l := range r.lists {
		for _, p := range l.members {
			used[p] = true
		}
	}
	active := r.planner.Obstacles()
	for _, o := range active {
		if p, ok := o.(*kernel.Polyhedron); ok {
			used[p] = true
		}
	}

	for _, name := range names {
		p := r.polyhedra[name]
		for _, f := range checkMesh(p) {
			rep.add(f)
		}
		if !used[p] {
			rep.add(Finding{
				Namespace: NamespacePolyhedron,
				Name:      name,
				Message:   "not in any collision list or the active set",
				Severity:  SeverityWarning,
			})
		}
	}

	lists := make([]string, 0, len(r.lists))
	for name := range r.lists {
		lists = append(lists, name)
	}
	sort.Strings(lists)
	for _, name := range lists {
		if len(r.lists[name].members) == 0 {
			rep.add(Finding{
				Namespace: NamespaceCollisionList,
				Name:      name,
				Message:   "empty",
				Severity:  SeverityWarning,
			})
		}
	}

	for _, f := range checkActive(active) {
		rep.add(f)
	}
	return rep
}

// edgeKey is an undirected mesh edge: (a,b) and (b,a) are the same edge.
type edgeKey struct {
	lo, hi int
}

func makeEdgeKey(a, b int) edgeKey {
	if a <= b {
		return edgeKey{lo: a, hi: b}
	}
	return edgeKey{lo: b, hi: a}
}

// checkMesh reports rank and shape problems of one polyhedron.
func checkMesh(p *kernel.Polyhedron) []Finding {
	var out []Finding
	finding := func(sev Severity, format string, args ...any) {
		out = append(out, Finding{
			Namespace: NamespacePolyhedron,
			Name:      p.Name(),
			Message:   fmt.Sprintf(format, args...),
			Severity:  sev,
		})
	}

	pts := p.Points()
	points := len(pts)
	tris := p.Triangles()
	if len(tris) == 0 {
		if points > 0 {
			finding(SeverityWarning, "%d points but no triangles", points)
		}
		return out
	}

	edges := make(map[edgeKey]int)
	ranksOK := true
	for i, t := range tris {
		inRange := true
		for _, idx := range t {
			if idx < 0 || idx >= points {
				finding(SeverityError, "triangle %d: point rank %d out of range [0,%d)", i, idx, points)
				inRange = false
			}
		}
		if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
			finding(SeverityError, "triangle %d: repeated point rank %v", i, t)
			ranksOK = false
			continue
		}
		if !inRange {
			ranksOK = false
		} else if kernel.DoubledArea(pts[t[0]], pts[t[1]], pts[t[2]]) < kernel.DegenerateArea {
			finding(SeverityError, "triangle %d: zero area", i)
			ranksOK = false
		}
		edges[makeEdgeKey(t[0], t[1])]++
		edges[makeEdgeKey(t[1], t[2])]++
		edges[makeEdgeKey(t[2], t[0])]++
	}
	if !ranksOK {
		return out
	}

	open := 0
	for _, n := range edges {
		if n != 2 {
			open++
		}
	}
	if open > 0 {
		finding(SeverityWarning, "mesh is not closed: %d edges are not shared by exactly two triangles", open)
	}
	return out
}

// checkActive reports repeated entries and overlapping world bounds in the
// active set. Only compiled polyhedra have bounds.
func checkActive(active []planner.Obstacle) []Finding {
	var out []Finding
	type placed struct {
		name     string
		min, max [3]float64
	}
	var boxes []placed
	seen := make(map[*kernel.Polyhedron]int)

	for i, o := range active {
		p, ok := o.(*kernel.Polyhedron)
		if !ok {
			continue
		}
		if first, dup := seen[p]; dup {
			out = append(out, Finding{
				Namespace: NamespaceActiveSet,
				Name:      p.Name(),
				Message:   fmt.Sprintf("entry %d repeats entry %d", i, first),
				Severity:  SeverityWarning,
			})
			continue
		}
		seen[p] = i
		if e := p.CollisionEntity(); e != nil {
			min, max := e.BoundingBox()
			boxes = append(boxes, placed{name: p.Name(), min: min, max: max})
		}
	}

	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			a, b := boxes[i], boxes[j]
			if overlaps(a.min, a.max, b.min, b.max) {
				out = append(out, Finding{
					Namespace: NamespaceActiveSet,
					Name:      a.name,
					Message:   fmt.Sprintf("bounds overlap %q", b.name),
					Severity:  SeverityWarning,
				})
			}
		}
	}
	return out
}

// overlaps reports whether two axis-aligned boxes share interior volume.
// Boxes that only touch do not overlap.
func overlaps(aMin, aMax, bMin, bMax [3]float64) bool {
	for k := 0; k < 3; k++ {
		if aMax[k] <= bMin[k] || bMax[k] <= aMin[k] {
			return false
		}
	}
	return true
}
