package transport

import (
	"google.golang.org/grpc/codes"

	"github.com/chazu/obstacled/pkg/engine"
	"github.com/chazu/obstacled/pkg/kernel"
	"github.com/chazu/obstacled/pkg/obstacle"
)

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

// NameRequest addresses one polyhedron or collision list.
type NameRequest struct {
	Name string `json:"name"`
}

// BoxRequest creates a box polyhedron.
type BoxRequest struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

// PointRequest appends a vertex.
type PointRequest struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

// TriangleRequest appends a face by point rank.
type TriangleRequest struct {
	Name string `json:"name"`
	I1   int    `json:"i1"`
	I2   int    `json:"i2"`
	I3   int    `json:"i3"`
}

// RankResponse returns the rank of an appended point or triangle.
type RankResponse struct {
	Rank int `json:"rank"`
}

// FlagRequest sets a boolean attribute.
type FlagRequest struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// MemberRequest appends a polyhedron to a collision list.
type MemberRequest struct {
	List       string `json:"list"`
	Polyhedron string `json:"polyhedron"`
}

// PlaceRequest positions a polyhedron in world space.
type PlaceRequest struct {
	Name   string           `json:"name"`
	Config kernel.Transform `json:"config"`
}

// PolyhedraResponse lists every polyhedron.
type PolyhedraResponse struct {
	Polyhedra []obstacle.PolyhedronInfo `json:"polyhedra"`
}

// DescribeResponse describes one polyhedron.
type DescribeResponse struct {
	Polyhedron obstacle.PolyhedronInfo `json:"polyhedron"`
}

// ListsResponse lists every collision list.
type ListsResponse struct {
	Lists []obstacle.ListInfo `json:"lists"`
}

// ActiveResponse names the active obstacle set in order.
type ActiveResponse struct {
	Generation uint64   `json:"generation"`
	Obstacles  []string `json:"obstacles"`
}

// MeshesRequest selects which active obstacles are tessellated.
type MeshesRequest struct {
	IncludeHidden bool `json:"include_hidden"`
}

// MeshesResponse carries world-space meshes of the active set.
type MeshesResponse struct {
	Meshes []*kernel.Mesh `json:"meshes"`
}

// ScriptRequest runs a scene script on the server.
type ScriptRequest struct {
	Source string `json:"source"`
}

// ScriptError is an engine.EvalError on the wire. Code is the status code
// of the rejected registry call that stopped the script, or OK.
type ScriptError struct {
	Line    int        `json:"line,omitempty"`
	Col     int        `json:"col,omitempty"`
	Message string     `json:"message"`
	Code    codes.Code `json:"code,omitempty"`
}

// ScriptResponse is the transcript of a script run.
type ScriptResponse struct {
	Generation uint64        `json:"generation"`
	Calls      []engine.Call `json:"calls"`
	Errors     []ScriptError `json:"errors,omitempty"`
}

// CheckResponse is the result of a read-only scene check.
type CheckResponse struct {
	Report obstacle.Report `json:"report"`
}
