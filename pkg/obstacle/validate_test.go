package obstacle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/obstacled/pkg/kernel"
)

func TestCheckEmptyRegistry(t *testing.T) {
	r, _ := newTestRegistry(t)
	rep := r.Check()
	assert.True(t, rep.OK())
	assert.Empty(t, rep.Warnings)
}

func TestCheckCleanScene(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("cube"))
	addCube(t, r, "cube")
	require.NoError(t, r.CreateBox("wall", 2, 0.1, 3))
	require.NoError(t, r.CreateCollisionList("L"))
	require.NoError(t, r.AddPolyToCollList("L", "cube"))
	require.NoError(t, r.AddObstacleConfig("wall", kernel.Translation(5, 0, 0)))

	rep := r.Check()
	assert.True(t, rep.OK(), "errors: %v", rep.Errors)
	assert.Empty(t, rep.Warnings)
}

func TestCheckRankErrors(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("bad"))
	for i := 0; i < 3; i++ {
		_, err := r.AddPoint("bad", float64(i), float64(i*i), 0)
		require.NoError(t, err)
	}
	_, err := r.AddTriangle("bad", 0, 1, 5)
	require.NoError(t, err)
	_, err = r.AddTriangle("bad", 0, 0, 1)
	require.NoError(t, err)

	rep := r.Check()
	require.Len(t, rep.Errors, 2)
	assert.Contains(t, rep.Errors[0].Message, "out of range")
	assert.Contains(t, rep.Errors[1].Message, "repeated point rank")
	assert.Equal(t, "bad", rep.Errors[0].Name)

	// Check agrees with the compiler.
	require.ErrorIs(t, r.AddObstacle("bad"), ErrGeometryConstructionFailed)
}

func TestCheckZeroAreaTriangle(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("rod"))
	for _, pt := range [][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}} {
		_, err := r.AddPoint("rod", pt[0], pt[1], pt[2])
		require.NoError(t, err)
	}
	_, err := r.AddTriangle("rod", 0, 1, 2)
	require.NoError(t, err)

	rep := r.Check()
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "triangle 0: zero area", rep.Errors[0].Message)
	for _, w := range rep.Warnings {
		assert.NotContains(t, w.Message, "not closed")
	}

	require.ErrorIs(t, r.AddObstacle("rod"), ErrGeometryConstructionFailed)
}

func TestCheckWarnings(t *testing.T) {
	r, p := newTestRegistry(t)

	// Points only.
	require.NoError(t, r.CreatePolyhedron("cloud"))
	_, err := r.AddPoint("cloud", 0, 0, 0)
	require.NoError(t, err)

	// A single triangle is an open mesh.
	require.NoError(t, r.CreatePolyhedron("sheet"))
	for _, pt := range [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}} {
		_, err := r.AddPoint("sheet", pt[0], pt[1], pt[2])
		require.NoError(t, err)
	}
	_, err = r.AddTriangle("sheet", 0, 1, 2)
	require.NoError(t, err)

	require.NoError(t, r.CreateCollisionList("empty"))

	// Two overlapping boxes, one of them twice.
	require.NoError(t, r.CreateBox("a", 2, 2, 2))
	require.NoError(t, r.CreateBox("b", 2, 2, 2))
	require.NoError(t, r.AddObstacle("a"))
	require.NoError(t, r.AddObstacleConfig("b", kernel.Translation(1, 0, 0)))
	require.NoError(t, r.AddObstacle("a"))
	require.Len(t, p.Obstacles(), 3)

	rep := r.Check()
	assert.True(t, rep.OK(), "errors: %v", rep.Errors)

	var msgs []string
	for _, w := range rep.Warnings {
		msgs = append(msgs, w.Namespace+"/"+w.Name+": "+w.Message)
	}
	assert.Contains(t, msgs, `polyhedron/cloud: 1 points but no triangles`)
	assert.Contains(t, msgs, `polyhedron/cloud: not in any collision list or the active set`)
	assert.Contains(t, msgs, `polyhedron/sheet: mesh is not closed: 3 edges are not shared by exactly two triangles`)
	assert.Contains(t, msgs, `collision list/empty: empty`)
	assert.Contains(t, msgs, `active set/a: entry 2 repeats entry 0`)
	assert.Contains(t, msgs, `active set/a: bounds overlap "b"`)
}

func TestCheckTouchingBoxesDoNotOverlap(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.CreateBox("a", 2, 2, 2))
	require.NoError(t, r.CreateBox("b", 2, 2, 2))
	require.NoError(t, r.AddObstacle("a"))
	require.NoError(t, r.AddObstacleConfig("b", kernel.Translation(2, 0, 0)))

	rep := r.Check()
	assert.Empty(t, rep.Warnings)
}

func TestCheckIsReadOnly(t *testing.T) {
	r, p := newTestRegistry(t)
	require.NoError(t, r.CreatePolyhedron("cube"))
	addCube(t, r, "cube")
	gen := p.Generation()

	r.Check()

	info, err := r.Describe("cube")
	require.NoError(t, err)
	assert.False(t, info.CollisionEntityBuilt, "check must not compile")
	assert.Equal(t, gen, p.Generation())
}

func TestSeverityText(t *testing.T) {
	b, err := json.Marshal(Finding{Namespace: NamespacePolyhedron, Name: "x", Message: "m", Severity: SeverityWarning})
	require.NoError(t, err)
	assert.JSONEq(t, `{"namespace":"polyhedron","name":"x","message":"m","severity":"warning"}`, string(b))

	var f Finding
	require.NoError(t, json.Unmarshal(b, &f))
	assert.Equal(t, SeverityWarning, f.Severity)

	var s Severity
	assert.Error(t, s.UnmarshalText([]byte("fatal")))
	assert.Equal(t, "Severity(7)", Severity(7).String())
}
