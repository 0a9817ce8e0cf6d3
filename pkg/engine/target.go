package engine

import (
	"context"

	"github.com/chazu/obstacled/pkg/kernel"
	"github.com/chazu/obstacled/pkg/obstacle"
)

// Target receives the registry calls made by a scene script. It is
// implemented in-process by Local and over the network by the transport
// client.
type Target interface {
	CreatePolyhedron(ctx context.Context, name string) error
	CreateBox(ctx context.Context, name string, x, y, z float64) error
	AddPoint(ctx context.Context, name string, x, y, z float64) (int, error)
	AddTriangle(ctx context.Context, name string, i1, i2, i3 int) (int, error)
	SetVisible(ctx context.Context, name string, visible bool) error
	SetTransparent(ctx context.Context, name string, transparent bool) error
	CreateCollisionList(ctx context.Context, name string) error
	AddPolyToCollList(ctx context.Context, list, poly string) error
	AddObstacle(ctx context.Context, name string) error
	AddObstacleConfig(ctx context.Context, name string, t kernel.Transform) error
	MoveObstacleConfig(ctx context.Context, name string, t kernel.Transform) error
	SetObstacles(ctx context.Context, list string) error
}

// Local adapts a Registry to Target. Registry calls never block, so the
// context is only checked before each call.
type Local struct {
	Registry *obstacle.Registry
}

var _ Target = Local{}

func (l Local) CreatePolyhedron(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.CreatePolyhedron(name)
}

func (l Local) CreateBox(ctx context.Context, name string, x, y, z float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.CreateBox(name, x, y, z)
}

func (l Local) AddPoint(ctx context.Context, name string, x, y, z float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.Registry.AddPoint(name, x, y, z)
}

func (l Local) AddTriangle(ctx context.Context, name string, i1, i2, i3 int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.Registry.AddTriangle(name, i1, i2, i3)
}

func (l Local) SetVisible(ctx context.Context, name string, visible bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.SetVisible(name, visible)
}

func (l Local) SetTransparent(ctx context.Context, name string, transparent bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.SetTransparent(name, transparent)
}

func (l Local) CreateCollisionList(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.CreateCollisionList(name)
}

func (l Local) AddPolyToCollList(ctx context.Context, list, poly string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.AddPolyToCollList(list, poly)
}

func (l Local) AddObstacle(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.AddObstacle(name)
}

func (l Local) AddObstacleConfig(ctx context.Context, name string, t kernel.Transform) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.AddObstacleConfig(name, t)
}

func (l Local) MoveObstacleConfig(ctx context.Context, name string, t kernel.Transform) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.MoveObstacleConfig(name, t)
}

func (l Local) SetObstacles(ctx context.Context, list string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Registry.SetObstacles(list)
}
