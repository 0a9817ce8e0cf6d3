package transport

import (
	"context"
	"fmt"

	"github.com/chazu/obstacled/pkg/engine"
	"github.com/chazu/obstacled/pkg/kernel"
	"github.com/chazu/obstacled/pkg/logging"
	"github.com/chazu/obstacled/pkg/obstacle"
	"github.com/chazu/obstacled/pkg/planner"
	"github.com/chazu/obstacled/pkg/tessellate"
)

// Service implements ObstacleServer on top of an in-process registry.
type Service struct {
	registry *obstacle.Registry
	planner  *planner.Planner
	kernel   kernel.Kernel
	engine   *engine.Engine

	includeHidden bool
}

var _ ObstacleServer = (*Service)(nil)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHiddenMeshes makes ActiveMeshes return invisible polyhedra whether or
// not the request asks for them.
func WithHiddenMeshes(on bool) ServiceOption {
	return func(s *Service) {
		s.includeHidden = on
	}
}

// NewService serves r. Meshes are built with k from p's active set, and
// RunScript evaluates with e. Handlers log through the request logger that
// the interceptors put in the context.
func NewService(r *obstacle.Registry, p *planner.Planner, k kernel.Kernel, e *engine.Engine, opts ...ServiceOption) *Service {
	s := &Service{
		registry: r,
		planner:  p,
		kernel:   k,
		engine:   e,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreatePolyhedron(_ context.Context, in *NameRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.CreatePolyhedron(in.Name))
}

func (s *Service) CreateBox(_ context.Context, in *BoxRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.CreateBox(in.Name, in.X, in.Y, in.Z))
}

func (s *Service) AddPoint(_ context.Context, in *PointRequest) (*RankResponse, error) {
	rank, err := s.registry.AddPoint(in.Name, in.X, in.Y, in.Z)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RankResponse{Rank: rank}, nil
}

func (s *Service) AddTriangle(_ context.Context, in *TriangleRequest) (*RankResponse, error) {
	rank, err := s.registry.AddTriangle(in.Name, in.I1, in.I2, in.I3)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RankResponse{Rank: rank}, nil
}

func (s *Service) SetVisible(_ context.Context, in *FlagRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.SetVisible(in.Name, in.Value))
}

func (s *Service) SetTransparent(_ context.Context, in *FlagRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.SetTransparent(in.Name, in.Value))
}

func (s *Service) CreateCollisionList(_ context.Context, in *NameRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.CreateCollisionList(in.Name))
}

func (s *Service) AddPolyToCollList(_ context.Context, in *MemberRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.AddPolyToCollList(in.List, in.Polyhedron))
}

func (s *Service) AddObstacle(_ context.Context, in *NameRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.AddObstacle(in.Name))
}

func (s *Service) AddObstacleConfig(_ context.Context, in *PlaceRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.AddObstacleConfig(in.Name, in.Config))
}

func (s *Service) MoveObstacleConfig(_ context.Context, in *PlaceRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.MoveObstacleConfig(in.Name, in.Config))
}

func (s *Service) SetObstacles(_ context.Context, in *NameRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.registry.SetObstacles(in.Name))
}

func (s *Service) ListPolyhedra(context.Context, *Empty) (*PolyhedraResponse, error) {
	return &PolyhedraResponse{Polyhedra: s.registry.Polyhedra()}, nil
}

func (s *Service) DescribePolyhedron(_ context.Context, in *NameRequest) (*DescribeResponse, error) {
	info, err := s.registry.Describe(in.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DescribeResponse{Polyhedron: info}, nil
}

func (s *Service) ListCollisionLists(context.Context, *Empty) (*ListsResponse, error) {
	return &ListsResponse{Lists: s.registry.CollisionLists()}, nil
}

func (s *Service) ActiveObstacles(context.Context, *Empty) (*ActiveResponse, error) {
	return &ActiveResponse{
		Generation: s.planner.Generation(),
		Obstacles:  s.registry.ActiveObstacles(),
	}, nil
}

func (s *Service) ActiveMeshes(ctx context.Context, in *MeshesRequest) (*MeshesResponse, error) {
	meshes, err := tessellate.Tessellate(s.planner.Obstacles(), s.kernel, tessellate.Options{
		IncludeHidden: in.IncludeHidden || s.includeHidden,
	})
	if err != nil {
		// An active polyhedron edited after activation may no longer mesh.
		// One bad entry fails the whole response.
		logging.FromContext(ctx).Warn("tessellation failed", "error", err)
		return nil, toStatus(fmt.Errorf("%w: %w", obstacle.ErrGeometryConstructionFailed, err))
	}
	return &MeshesResponse{Meshes: meshes}, nil
}

func (s *Service) RunScript(ctx context.Context, in *ScriptRequest) (*ScriptResponse, error) {
	log := logging.FromContext(ctx)

	res, evalErrs, err := s.engine.Evaluate(ctx, in.Source)
	if err != nil {
		log.Warn("script aborted", "error", err)
		return nil, toStatus(err)
	}
	out := &ScriptResponse{Generation: res.Generation, Calls: res.Calls}
	for _, e := range evalErrs {
		se := ScriptError{Line: e.Line, Col: e.Col, Message: e.Message}
		if e.Err != nil {
			se.Code = codeOf(e.Err)
		}
		out.Errors = append(out.Errors, se)
	}
	log.Info("script evaluated", "generation", res.Generation, "calls", len(res.Calls), "errors", len(out.Errors))
	return out, nil
}

func (s *Service) CheckScene(ctx context.Context, _ *Empty) (*CheckResponse, error) {
	rep := s.registry.Check()
	logging.FromContext(ctx).Debug("scene checked", "errors", len(rep.Errors), "warnings", len(rep.Warnings))
	return &CheckResponse{Report: rep}, nil
}
