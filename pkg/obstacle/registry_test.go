package obstacle

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/obstacled/pkg/kernel"
	"github.com/chazu/obstacled/pkg/kernel/sdfx"
	"github.com/chazu/obstacled/pkg/logging"
	"github.com/chazu/obstacled/pkg/planner"
)

func newTestRegistry(t *testing.T) (*Registry, *planner.Planner) {
	t.Helper()
	p := planner.New()
	return New(sdfx.New(), p, WithLogger(logging.Discard())), p
}

func activeNames(p Planner) []string {
	var out []string
	for _, o := range p.Obstacles() {
		out = append(out, o.Name())
	}
	return out
}

// addCube fills an empty polyhedron with a unit cube: 8 points, 12 faces.
func addCube(t *testing.T, r *Registry, name string) {
	t.Helper()
	for i := 0; i < 8; i++ {
		rank, err := r.AddPoint(name, float64(i&1), float64(i>>1&1), float64(i>>2&1))
		require.NoError(t, err)
		require.Equal(t, i, rank)
	}
	faces := [][3]int{
		{0, 2, 3}, {0, 3, 1}, {4, 5, 7}, {4, 7, 6},
		{0, 1, 5}, {0, 5, 4}, {2, 6, 7}, {2, 7, 3},
		{0, 4, 6}, {0, 6, 2}, {1, 3, 7}, {1, 7, 5},
	}
	for i, f := range faces {
		rank, err := r.AddTriangle(name, f[0], f[1], f[2])
		require.NoError(t, err)
		require.Equal(t, i, rank)
	}
}

func TestCreatePolyhedronDuplicate(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("n1"))
	_, err := r.AddPoint("n1", 1, 2, 3)
	require.NoError(t, err)

	err = r.CreatePolyhedron("n1")
	require.ErrorIs(t, err, ErrDuplicateName)

	info, err := r.Describe("n1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Points, "duplicate create must not reset the original")

	require.NoError(t, r.CreatePolyhedron("n2"))
}

func TestCreateBoxDuplicateAcrossKinds(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("wall"))
	require.ErrorIs(t, r.CreateBox("wall", 1, 1, 1), ErrDuplicateName)
}

func TestCreateBox(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreateBox("wall", 2.0, 0.1, 3.0))
	info, err := r.Describe("wall")
	require.NoError(t, err)
	assert.Equal(t, 8, info.Points)
	assert.Equal(t, 12, info.Triangles)
	assert.True(t, info.Visible)
	assert.False(t, info.Transparent)
	assert.False(t, info.CollisionEntityBuilt)
}

func TestCreateBoxGeometryFailure(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.CreateBox("flat", 1, 0, 1)
	require.ErrorIs(t, err, ErrGeometryConstructionFailed)
	_, err = r.Describe("flat")
	require.ErrorIs(t, err, ErrNotFound, "failed box must not be registered")
	require.NoError(t, r.CreateBox("flat", 1, 1, 1), "name stays available after a failed create")
}

func TestEmptyNameRejected(t *testing.T) {
	r, _ := newTestRegistry(t)
	assert.ErrorIs(t, r.CreatePolyhedron(""), ErrInvalidArgument)
	assert.ErrorIs(t, r.CreateBox("", 1, 1, 1), ErrInvalidArgument)
	assert.ErrorIs(t, r.CreateCollisionList(""), ErrInvalidArgument)
}

func TestPointRanksMonotonic(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("p"))
	coords := [][3]float64{{0, 0, 0}, {0, 0, 0}, {-5, 3, 1e9}, {1, 1, 1}}
	for want, c := range coords {
		got, err := r.AddPoint("p", c[0], c[1], c[2])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAddPointRejectsNonFinite(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("p"))
	_, err := r.AddPoint("p", math.NaN(), 0, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	rank, err := r.AddPoint("p", 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, rank, "rejected point must not consume a rank")
}

func TestTriangleRanksIndependent(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("p"))

	tri, err := r.AddTriangle("p", 0, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, tri)

	pt, err := r.AddPoint("p", 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, pt)

	tri, err = r.AddTriangle("p", 5, 6, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, tri)

	pt, err = r.AddPoint("p", 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, pt)
}

func TestNotFoundOnMissingPolyhedron(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreateCollisionList("L"))

	calls := map[string]func() error{
		"AddPoint":          func() error { _, err := r.AddPoint("ghost", 0, 0, 0); return err },
		"AddTriangle":       func() error { _, err := r.AddTriangle("ghost", 0, 1, 2); return err },
		"SetVisible":        func() error { return r.SetVisible("ghost", false) },
		"SetTransparent":    func() error { return r.SetTransparent("ghost", true) },
		"AddPolyToCollList": func() error { return r.AddPolyToCollList("L", "ghost") },
		"AddObstacle":       func() error { return r.AddObstacle("ghost") },
		"AddObstacleConfig": func() error { return r.AddObstacleConfig("ghost", kernel.Identity()) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.ErrorIs(t, err, ErrNotFound)
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, NamespacePolyhedron, e.Namespace)
			assert.Equal(t, "ghost", e.Name)
		})
	}
}

func TestAddPolyToCollListReportsMissingList(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("p"))
	err := r.AddPolyToCollList("nolist", "p")
	require.ErrorIs(t, err, ErrNotFound)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, NamespaceCollisionList, e.Namespace)
	assert.Equal(t, "nolist", e.Name)
}

func TestCollisionListNamespaceSeparate(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("shared"))
	require.NoError(t, r.CreateCollisionList("shared"))
	require.ErrorIs(t, r.CreateCollisionList("shared"), ErrDuplicateName)
}

func TestSetFlags(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("p"))
	require.NoError(t, r.SetVisible("p", false))
	require.NoError(t, r.SetTransparent("p", true))
	info, err := r.Describe("p")
	require.NoError(t, err)
	assert.False(t, info.Visible)
	assert.True(t, info.Transparent)
	assert.False(t, info.CollisionEntityBuilt, "flags never compile geometry")
}

func TestCollisionListKeepsOrderAndDuplicates(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreateBox("a", 1, 1, 1))
	require.NoError(t, r.CreateBox("b", 1, 1, 1))
	require.NoError(t, r.CreateCollisionList("L"))
	for _, n := range []string{"b", "a", "b"} {
		require.NoError(t, r.AddPolyToCollList("L", n))
	}
	want := []ListInfo{{Name: "L", Members: []string{"b", "a", "b"}}}
	if diff := cmp.Diff(want, r.CollisionLists()); diff != "" {
		t.Errorf("CollisionLists() mismatch (-want +got):\n%s", diff)
	}
	info, err := r.Describe("a")
	require.NoError(t, err)
	assert.True(t, info.CollisionEntityBuilt)
}

func TestAddPolyToCollListCompileFailureLeavesListUnchanged(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("bad"))
	_, err := r.AddPoint("bad", 0, 0, 0)
	require.NoError(t, err)
	_, err = r.AddTriangle("bad", 0, 1, 2)
	require.NoError(t, err)
	require.NoError(t, r.CreateCollisionList("L"))

	err = r.AddPolyToCollList("L", "bad")
	require.ErrorIs(t, err, ErrGeometryConstructionFailed)
	require.ErrorIs(t, err, sdfx.ErrInvalidMesh)
	assert.Empty(t, r.CollisionLists()[0].Members)
}

func TestActivationReplacesWholesale(t *testing.T) {
	r, p := newTestRegistry(t)
	for _, n := range []string{"a1", "a2", "b1", "b2"} {
		require.NoError(t, r.CreateBox(n, 1, 1, 1))
	}
	require.NoError(t, r.CreateCollisionList("A"))
	require.NoError(t, r.CreateCollisionList("B"))
	require.NoError(t, r.AddPolyToCollList("A", "a1"))
	require.NoError(t, r.AddPolyToCollList("A", "a2"))
	require.NoError(t, r.AddPolyToCollList("B", "b2"))
	require.NoError(t, r.AddPolyToCollList("B", "b1"))

	require.NoError(t, r.SetObstacles("A"))
	assert.Equal(t, []string{"a1", "a2"}, activeNames(p))
	require.NoError(t, r.SetObstacles("B"))
	assert.Equal(t, []string{"b2", "b1"}, activeNames(p))
	assert.Equal(t, []string{"b2", "b1"}, r.ActiveObstacles())
}

func TestSetObstaclesMissingList(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreateBox("a", 1, 1, 1))
	require.NoError(t, r.AddObstacle("a"))

	err := r.SetObstacles("nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"a"}, activeNames(p), "failed activation keeps the old set")
}

func TestListGrowthAfterActivationDoesNotLeak(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreateBox("a", 1, 1, 1))
	require.NoError(t, r.CreateCollisionList("L"))
	require.NoError(t, r.AddPolyToCollList("L", "a"))
	require.NoError(t, r.SetObstacles("L"))
	require.NoError(t, r.AddPolyToCollList("L", "a"))
	assert.Equal(t, []string{"a"}, activeNames(p))
}

func TestAddObstacleAppends(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreateBox("wall", 1, 1, 1))
	require.NoError(t, r.AddObstacle("wall"))
	require.NoError(t, r.AddObstacle("wall"))
	assert.Equal(t, []string{"wall", "wall"}, activeNames(p))
}

func TestAddObstacleAfterActivationExtends(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreateBox("a", 1, 1, 1))
	require.NoError(t, r.CreateBox("extra", 1, 1, 1))
	require.NoError(t, r.CreateCollisionList("L"))
	require.NoError(t, r.AddPolyToCollList("L", "a"))
	require.NoError(t, r.SetObstacles("L"))
	require.NoError(t, r.AddObstacle("extra"))
	assert.Equal(t, []string{"a", "extra"}, activeNames(p))

	require.NoError(t, r.SetObstacles("L"))
	assert.Equal(t, []string{"a"}, activeNames(p), "direct additions last until the next activation")
}

func TestAddObstacleCompileFailureLeavesPlanner(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("bad"))
	_, err := r.AddTriangle("bad", 0, 1, 2)
	require.NoError(t, err)

	require.ErrorIs(t, r.AddObstacle("bad"), ErrGeometryConstructionFailed)
	require.ErrorIs(t, r.AddObstacleConfig("bad", kernel.Translation(1, 0, 0)), ErrGeometryConstructionFailed)
	assert.Empty(t, activeNames(p))

	info, err := r.Describe("bad")
	require.NoError(t, err)
	assert.True(t, info.Transform.IsIdentity(), "failed config must not move the polyhedron")
}

func TestEmptyPolyhedronCompiles(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("empty"))
	require.NoError(t, r.AddObstacle("empty"))
	assert.Equal(t, []string{"empty"}, activeNames(p))
}

func TestWallScenario(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreateBox("wall", 2.0, 0.1, 3.0))
	require.NoError(t, r.AddObstacleConfig("wall", kernel.Translation(5, 0, 0)))

	obs := p.Obstacles()
	require.Len(t, obs, 1)
	wall := obs[0].(*kernel.Polyhedron)
	assert.Equal(t, [3]float64{5, 0, 0}, wall.Transform().Position())

	require.NoError(t, r.MoveObstacleConfig("wall", kernel.Translation(6, 0, 0)))
	obs = p.Obstacles()
	require.Len(t, obs, 1, "move must not add a new entry")
	assert.Equal(t, [3]float64{6, 0, 0}, obs[0].(*kernel.Polyhedron).Transform().Position())

	info, err := r.Describe("wall")
	require.NoError(t, err)
	require.NotNil(t, info.WorldMin)
	assert.InDelta(t, 5.0, info.WorldMin[0], 1e-9)
	assert.InDelta(t, 7.0, info.WorldMax[0], 1e-9)
}

func TestCubeScenario(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("cube1"))
	addCube(t, r, "cube1")
	require.NoError(t, r.SetVisible("cube1", false))
	require.NoError(t, r.CreateCollisionList("sceneA"))
	require.NoError(t, r.AddPolyToCollList("sceneA", "cube1"))
	require.NoError(t, r.SetObstacles("sceneA"))

	obs := p.Obstacles()
	require.Len(t, obs, 1)
	cube := obs[0].(*kernel.Polyhedron)
	assert.Equal(t, "cube1", cube.Name())
	assert.False(t, cube.Visible())
	assert.True(t, cube.CollisionEntityBuilt())
}

func TestMoveObstacleConfigRequiresActiveEntry(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreateBox("wall", 1, 1, 1))

	err := r.MoveObstacleConfig("wall", kernel.Translation(1, 0, 0))
	require.ErrorIs(t, err, ErrNotFound)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, NamespaceActiveSet, e.Namespace)
}

func TestMoveObstacleConfigRejectsNonFinite(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreateBox("wall", 1, 1, 1))
	require.NoError(t, r.AddObstacle("wall"))
	err := r.MoveObstacleConfig("wall", kernel.Transform{Yaw: math.Inf(1)})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

// marker is an obstacle the registry cannot reposition.
type marker string

func (m marker) Name() string { return string(m) }

func TestMoveObstacleConfigSkipsOtherKinds(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreateBox("wall", 1, 1, 1))
	require.NoError(t, r.AddObstacle("wall"))
	p.AddObstacle(marker("wall"))
	p.SetObstacles(append([]planner.Obstacle{marker("wall")}, p.Obstacles()...))

	require.NoError(t, r.MoveObstacleConfig("wall", kernel.Translation(0, 3, 0)))
	for _, o := range p.Obstacles() {
		if poly, ok := o.(*kernel.Polyhedron); ok {
			assert.Equal(t, [3]float64{0, 3, 0}, poly.Transform().Position())
		}
	}

	p.SetObstacles([]planner.Obstacle{marker("ghost")})
	require.ErrorIs(t, r.MoveObstacleConfig("ghost", kernel.Identity()), ErrNotFound)
}

func TestMoveObstacleConfigFirstMatchWins(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreateBox("a", 1, 1, 1))
	require.NoError(t, r.CreateBox("b", 1, 1, 1))
	require.NoError(t, r.AddObstacle("b"))
	require.NoError(t, r.AddObstacle("a"))
	require.NoError(t, r.MoveObstacleConfig("a", kernel.Translation(2, 0, 0)))

	obs := p.Obstacles()
	assert.True(t, obs[0].(*kernel.Polyhedron).Transform().IsIdentity())
	assert.Equal(t, 2.0, obs[1].(*kernel.Polyhedron).Transform().X)
}

func TestPolyhedraSorted(t *testing.T) {
	r, _ := newTestRegistry(t)
	for _, n := range []string{"c", "a", "b"} {
		require.NoError(t, r.CreatePolyhedron(n))
	}
	var names []string
	for _, info := range r.Polyhedra() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestErrorMessageNamesOperation(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.SetVisible("ghost", true)
	assert.Equal(t, `setVisible: polyhedron "ghost": not found`, err.Error())
}

func TestConcurrentCreatesUniqueNames(t *testing.T) {
	r, _ := newTestRegistry(t)
	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.CreatePolyhedron("contested") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestConcurrentPointRanksUnique(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("p"))
	const n = 200
	ranks := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rank, err := r.AddPoint("p", 0, 0, 0)
			if err == nil {
				ranks <- rank
			}
		}()
	}
	wg.Wait()
	close(ranks)
	seen := make(map[int]bool)
	for rank := range ranks {
		assert.False(t, seen[rank], "rank %d assigned twice", rank)
		seen[rank] = true
	}
	assert.Len(t, seen, n)
}
