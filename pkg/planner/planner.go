// Package planner holds the active obstacle set consumed by path planning.
//
// Readers take lock-free snapshots; writers serialize on a mutex and publish
// a fresh slice, so a reader sees either the old set or the new one in full.
package planner

import (
	"sync"
	"sync/atomic"
)

// Obstacle is anything the planner must avoid. Concrete entries may offer
// further capabilities (kernel.Placeable for repositionable meshes).
type Obstacle interface {
	Name() string
}

// Planner owns the active obstacle set.
type Planner struct {
	mu         sync.Mutex
	set        atomic.Pointer[[]Obstacle]
	generation atomic.Uint64
}

// New returns a planner with an empty active set.
func New() *Planner {
	p := &Planner{}
	empty := []Obstacle{}
	p.set.Store(&empty)
	return p
}

// Obstacles returns the current active set. The returned slice is shared
// and must not be modified.
func (p *Planner) Obstacles() []Obstacle {
	return *p.set.Load()
}

// SetObstacles replaces the active set with a copy of obs.
func (p *Planner) SetObstacles(obs []Obstacle) {
	next := make([]Obstacle, len(obs))
	copy(next, obs)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.set.Store(&next)
	p.generation.Add(1)
}

// AddObstacle appends o to the active set.
func (p *Planner) AddObstacle(o Obstacle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := *p.set.Load()
	next := make([]Obstacle, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, o)
	p.set.Store(&next)
	p.generation.Add(1)
}

// Len returns the size of the active set.
func (p *Planner) Len() int {
	return len(p.Obstacles())
}

// Generation increases by one on every change to the active set.
func (p *Planner) Generation() uint64 {
	return p.generation.Load()
}
