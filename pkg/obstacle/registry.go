// Package obstacle implements the named obstacle registry: polyhedra built
// point by point, collision lists that group them, and the hand-off of a
// list to the planner as its active obstacle set.
//
// Names are never reused and nothing is ever deleted. Every operation checks
// its preconditions and compiles geometry before it mutates a map or the
// planner, so a failed call leaves the registry as it was.
package obstacle

import (
	"log/slog"
	"math"
	"sync"

	"github.com/chazu/obstacled/pkg/kernel"
	"github.com/chazu/obstacled/pkg/planner"
)

// Operation names used in errors and log lines.
const (
	OpCreatePolyhedron    = "createPolyhedron"
	OpCreateBox           = "createBox"
	OpAddPoint            = "addPoint"
	OpAddTriangle         = "addTriangle"
	OpSetVisible          = "setVisible"
	OpSetTransparent      = "setTransparent"
	OpCreateCollisionList = "createCollisionList"
	OpAddPolyToCollList   = "addPolyToCollList"
	OpAddObstacle         = "addObstacle"
	OpAddObstacleConfig   = "addObstacleConfig"
	OpMoveObstacleConfig  = "moveObstacleConfig"
	OpSetObstacles        = "setObstacles"
	OpDescribe            = "describe"
)

// Planner is the part of the planner the registry drives.
type Planner interface {
	Obstacles() []planner.Obstacle
	SetObstacles(obs []planner.Obstacle)
	AddObstacle(o planner.Obstacle)
}

var _ Planner = (*planner.Planner)(nil)

// collisionList is an append-only, ordered group of polyhedron references.
// Duplicates are allowed.
type collisionList struct {
	name    string
	members []*kernel.Polyhedron
}

// Registry owns every polyhedron it creates. Collision lists and the planner
// hold non-owning pointers to the same values.
//
// All operations are serialized by a single mutex; none of them call back
// into the registry, so the lock is never taken twice.
type Registry struct {
	mu      sync.Mutex
	kernel  kernel.Kernel
	planner Planner
	logger  *slog.Logger

	polyhedra map[string]*kernel.Polyhedron
	lists     map[string]*collisionList
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for diagnostics. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns an empty registry that builds geometry with k and hands
// obstacle sets to p.
func New(k kernel.Kernel, p Planner, opts ...Option) *Registry {
	r := &Registry{
		kernel:    k,
		planner:   p,
		logger:    slog.Default(),
		polyhedra: make(map[string]*kernel.Polyhedron),
		lists:     make(map[string]*collisionList),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "registry")
	return r
}

// CreatePolyhedron inserts an empty, visible, opaque polyhedron at the
// identity placement.
func (r *Registry) CreatePolyhedron(name string) error {
	if name == "" {
		return invalid(OpCreatePolyhedron, name, "empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.polyhedra[name]; ok {
		r.logger.Warn("polyhedron already exists", "op", OpCreatePolyhedron, "name", name)
		return duplicate(OpCreatePolyhedron, NamespacePolyhedron, name)
	}
	r.polyhedra[name] = kernel.NewPolyhedron(name)
	r.logger.Debug("polyhedron created", "name", name)
	return nil
}

// CreateBox inserts a box mesh of the given size built by the kernel.
func (r *Registry) CreateBox(name string, x, y, z float64) error {
	if name == "" {
		return invalid(OpCreateBox, name, "empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.polyhedra[name]; ok {
		r.logger.Warn("polyhedron already exists", "op", OpCreateBox, "name", name)
		return duplicate(OpCreateBox, NamespacePolyhedron, name)
	}
	p, err := r.kernel.Box(name, x, y, z)
	if err != nil {
		r.logger.Warn("box construction failed", "name", name, "error", err)
		return geometryFailed(OpCreateBox, name, err)
	}
	r.polyhedra[name] = p
	r.logger.Debug("box created", "name", name, "size", []float64{x, y, z})
	return nil
}

// AddPoint appends a vertex and returns its rank.
func (r *Registry) AddPoint(name string, x, y, z float64) (int, error) {
	if !finite(x, y, z) {
		return 0, invalid(OpAddPoint, name, "coordinates must be finite")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(OpAddPoint, name)
	if err != nil {
		return 0, err
	}
	return p.AddPoint(x, y, z), nil
}

// AddTriangle appends a face and returns its rank. The point ranks may refer
// to points that do not exist yet; they are checked when the mesh is
// compiled.
func (r *Registry) AddTriangle(name string, i1, i2, i3 int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(OpAddTriangle, name)
	if err != nil {
		return 0, err
	}
	return p.AddTriangle(i1, i2, i3), nil
}

// SetVisible sets the display flag.
func (r *Registry) SetVisible(name string, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(OpSetVisible, name)
	if err != nil {
		return err
	}
	p.SetVisible(visible)
	return nil
}

// SetTransparent sets the transparency flag.
func (r *Registry) SetTransparent(name string, transparent bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(OpSetTransparent, name)
	if err != nil {
		return err
	}
	p.SetTransparent(transparent)
	return nil
}

// CreateCollisionList inserts an empty collision list. List names live in
// their own namespace and may match polyhedron names.
func (r *Registry) CreateCollisionList(name string) error {
	if name == "" {
		return invalid(OpCreateCollisionList, name, "empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lists[name]; ok {
		r.logger.Warn("collision list already exists", "name", name)
		return duplicate(OpCreateCollisionList, NamespaceCollisionList, name)
	}
	r.lists[name] = &collisionList{name: name}
	r.logger.Debug("collision list created", "name", name)
	return nil
}

// AddPolyToCollList compiles the polyhedron and appends it to the list.
func (r *Registry) AddPolyToCollList(listName, polyName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lists[listName]
	if !ok {
		r.logger.Warn("collision list not found", "op", OpAddPolyToCollList, "list", listName)
		return notFound(OpAddPolyToCollList, NamespaceCollisionList, listName)
	}
	p, err := r.lookup(OpAddPolyToCollList, polyName)
	if err != nil {
		return err
	}
	if err := r.compile(OpAddPolyToCollList, p); err != nil {
		return err
	}
	l.members = append(l.members, p)
	r.logger.Debug("polyhedron added to collision list", "list", listName, "name", polyName, "size", len(l.members))
	return nil
}

// AddObstacle compiles the polyhedron and appends it to the planner's
// active set.
func (r *Registry) AddObstacle(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(OpAddObstacle, name)
	if err != nil {
		return err
	}
	if err := r.compile(OpAddObstacle, p); err != nil {
		return err
	}
	r.planner.AddObstacle(p)
	r.logger.Debug("obstacle added", "name", name)
	return nil
}

// AddObstacleConfig places the polyhedron at t, then adds it to the
// planner's active set.
func (r *Registry) AddObstacleConfig(name string, t kernel.Transform) error {
	if err := checkTransform(OpAddObstacleConfig, name, t); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(OpAddObstacleConfig, name)
	if err != nil {
		return err
	}
	if err := r.compile(OpAddObstacleConfig, p); err != nil {
		return err
	}
	if err := r.kernel.ApplyTransform(p, t); err != nil {
		r.logger.Warn("transform failed", "op", OpAddObstacleConfig, "name", name, "error", err)
		return geometryFailed(OpAddObstacleConfig, name, err)
	}
	r.planner.AddObstacle(p)
	r.logger.Debug("obstacle added", "name", name, "position", t.Position())
	return nil
}

// MoveObstacleConfig repositions the first entry named name in the planner's
// current active set. The registry's own map is not consulted, so a
// polyhedron that exists but is not active is reported as not found.
// Entries that cannot be repositioned are skipped.
func (r *Registry) MoveObstacleConfig(name string, t kernel.Transform) error {
	if err := checkTransform(OpMoveObstacleConfig, name, t); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, o := range r.planner.Obstacles() {
		pl, ok := o.(kernel.Placeable)
		if !ok {
			r.logger.Debug("skipping obstacle without placement", "index", i, "name", o.Name())
			continue
		}
		if pl.Name() != name {
			continue
		}
		if err := r.kernel.ApplyTransform(pl, t); err != nil {
			r.logger.Warn("transform failed", "op", OpMoveObstacleConfig, "name", name, "error", err)
			return geometryFailed(OpMoveObstacleConfig, name, err)
		}
		r.logger.Debug("obstacle moved", "name", name, "position", t.Position())
		return nil
	}
	r.logger.Warn("obstacle not in active set", "name", name)
	return notFound(OpMoveObstacleConfig, NamespaceActiveSet, name)
}

// SetObstacles replaces the planner's active set with the list's members,
// in order.
func (r *Registry) SetObstacles(listName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lists[listName]
	if !ok {
		r.logger.Warn("collision list not found", "op", OpSetObstacles, "list", listName)
		return notFound(OpSetObstacles, NamespaceCollisionList, listName)
	}
	obs := make([]planner.Obstacle, len(l.members))
	for i, p := range l.members {
		obs[i] = p
	}
	r.planner.SetObstacles(obs)
	r.logger.Info("active obstacle set replaced", "list", listName, "size", len(obs))
	return nil
}

// lookup must be called with r.mu held.
func (r *Registry) lookup(op, name string) (*kernel.Polyhedron, error) {
	p, ok := r.polyhedra[name]
	if !ok {
		r.logger.Warn("polyhedron not found", "op", op, "name", name)
		return nil, notFound(op, NamespacePolyhedron, name)
	}
	return p, nil
}

// compile rebuilds the collision entity. Rebuilding an already compiled
// polyhedron is harmless.
func (r *Registry) compile(op string, p *kernel.Polyhedron) error {
	if err := r.kernel.BuildCollisionEntity(p); err != nil {
		r.logger.Warn("collision entity build failed", "op", op, "name", p.Name(), "error", err)
		return geometryFailed(op, p.Name(), err)
	}
	return nil
}

func checkTransform(op, name string, t kernel.Transform) error {
	if !t.IsFinite() {
		return invalid(op, name, "transform has non-finite components")
	}
	return nil
}

// finite reports whether every value is a finite number.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
