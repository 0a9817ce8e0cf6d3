package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/chazu/obstacled/pkg/engine"
	"github.com/chazu/obstacled/pkg/kernel"
	"github.com/chazu/obstacled/pkg/obstacle"
)

// ClientConfig holds gRPC client configuration
type ClientConfig struct {
	Target            string
	Timeout           time.Duration
	MaxRecvMsgSize    int
	MaxSendMsgSize    int
	KeepaliveInterval time.Duration
	KeepaliveTimeout  time.Duration
}

// DefaultClientConfig returns a default client configuration
func DefaultClientConfig(target string) ClientConfig {
	return ClientConfig{
		Target:            target,
		Timeout:           30 * time.Second,
		MaxRecvMsgSize:    16 * 1024 * 1024, // 16MB
		MaxSendMsgSize:    16 * 1024 * 1024, // 16MB
		KeepaliveInterval: 30 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
	}
}

// Client calls ObstacleService. It implements engine.Target, so scene
// scripts can also be evaluated locally against a remote registry.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

var _ engine.Target = (*Client)(nil)

// Dial creates a client connection. The connection is established lazily
// on the first call.
func Dial(cfg ClientConfig, logger *slog.Logger, opts ...grpc.DialOption) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(cfg.MaxSendMsgSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveInterval,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(
			ClientRequestIDInterceptor(),
			ClientLoggingInterceptor(logger.With("component", "grpc-client")),
		),
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(cfg.Target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Target, err)
	}
	return &Client{conn: conn, timeout: cfg.Timeout}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// invoke runs one ObstacleService call with the JSON codec and the per-call
// timeout, translating status errors back to registry failure kinds.
func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	err := c.conn.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(CodecName))
	return fromStatus(err)
}

func (c *Client) CreatePolyhedron(ctx context.Context, name string) error {
	return c.invoke(ctx, MethodCreatePolyhedron, &NameRequest{Name: name}, &Empty{})
}

func (c *Client) CreateBox(ctx context.Context, name string, x, y, z float64) error {
	return c.invoke(ctx, MethodCreateBox, &BoxRequest{Name: name, X: x, Y: y, Z: z}, &Empty{})
}

func (c *Client) AddPoint(ctx context.Context, name string, x, y, z float64) (int, error) {
	var out RankResponse
	if err := c.invoke(ctx, MethodAddPoint, &PointRequest{Name: name, X: x, Y: y, Z: z}, &out); err != nil {
		return 0, err
	}
	return out.Rank, nil
}

func (c *Client) AddTriangle(ctx context.Context, name string, i1, i2, i3 int) (int, error) {
	var out RankResponse
	if err := c.invoke(ctx, MethodAddTriangle, &TriangleRequest{Name: name, I1: i1, I2: i2, I3: i3}, &out); err != nil {
		return 0, err
	}
	return out.Rank, nil
}

func (c *Client) SetVisible(ctx context.Context, name string, visible bool) error {
	return c.invoke(ctx, MethodSetVisible, &FlagRequest{Name: name, Value: visible}, &Empty{})
}

func (c *Client) SetTransparent(ctx context.Context, name string, transparent bool) error {
	return c.invoke(ctx, MethodSetTransparent, &FlagRequest{Name: name, Value: transparent}, &Empty{})
}

func (c *Client) CreateCollisionList(ctx context.Context, name string) error {
	return c.invoke(ctx, MethodCreateCollisionList, &NameRequest{Name: name}, &Empty{})
}

func (c *Client) AddPolyToCollList(ctx context.Context, list, poly string) error {
	return c.invoke(ctx, MethodAddPolyToCollList, &MemberRequest{List: list, Polyhedron: poly}, &Empty{})
}

func (c *Client) AddObstacle(ctx context.Context, name string) error {
	return c.invoke(ctx, MethodAddObstacle, &NameRequest{Name: name}, &Empty{})
}

func (c *Client) AddObstacleConfig(ctx context.Context, name string, t kernel.Transform) error {
	return c.invoke(ctx, MethodAddObstacleConfig, &PlaceRequest{Name: name, Config: t}, &Empty{})
}

func (c *Client) MoveObstacleConfig(ctx context.Context, name string, t kernel.Transform) error {
	return c.invoke(ctx, MethodMoveObstacleConfig, &PlaceRequest{Name: name, Config: t}, &Empty{})
}

func (c *Client) SetObstacles(ctx context.Context, list string) error {
	return c.invoke(ctx, MethodSetObstacles, &NameRequest{Name: list}, &Empty{})
}

// ListPolyhedra describes every polyhedron, sorted by name.
func (c *Client) ListPolyhedra(ctx context.Context) ([]obstacle.PolyhedronInfo, error) {
	var out PolyhedraResponse
	if err := c.invoke(ctx, MethodListPolyhedra, &Empty{}, &out); err != nil {
		return nil, err
	}
	return out.Polyhedra, nil
}

// DescribePolyhedron describes one polyhedron.
func (c *Client) DescribePolyhedron(ctx context.Context, name string) (obstacle.PolyhedronInfo, error) {
	var out DescribeResponse
	if err := c.invoke(ctx, MethodDescribePolyhedron, &NameRequest{Name: name}, &out); err != nil {
		return obstacle.PolyhedronInfo{}, err
	}
	return out.Polyhedron, nil
}

// ListCollisionLists describes every collision list, sorted by name.
func (c *Client) ListCollisionLists(ctx context.Context) ([]obstacle.ListInfo, error) {
	var out ListsResponse
	if err := c.invoke(ctx, MethodListCollisionLists, &Empty{}, &out); err != nil {
		return nil, err
	}
	return out.Lists, nil
}

// ActiveObstacles returns the names in the active set and its generation.
func (c *Client) ActiveObstacles(ctx context.Context) (*ActiveResponse, error) {
	var out ActiveResponse
	if err := c.invoke(ctx, MethodActiveObstacles, &Empty{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveMeshes returns world-space meshes of the active set.
func (c *Client) ActiveMeshes(ctx context.Context, includeHidden bool) ([]*kernel.Mesh, error) {
	var out MeshesResponse
	if err := c.invoke(ctx, MethodActiveMeshes, &MeshesRequest{IncludeHidden: includeHidden}, &out); err != nil {
		return nil, err
	}
	return out.Meshes, nil
}

// RunScript evaluates source on the server. Script errors come back as
// engine.EvalError values whose Err wraps the registry failure kind.
func (c *Client) RunScript(ctx context.Context, source string) (*engine.Result, []engine.EvalError, error) {
	var out ScriptResponse
	if err := c.invoke(ctx, MethodRunScript, &ScriptRequest{Source: source}, &out); err != nil {
		return nil, nil, err
	}
	res := &engine.Result{Generation: out.Generation, Calls: out.Calls}
	var evalErrs []engine.EvalError
	for _, se := range out.Errors {
		ee := engine.EvalError{Line: se.Line, Col: se.Col, Message: se.Message}
		if se.Code != codes.OK {
			ee.Err = scriptErrorKind(se)
		}
		evalErrs = append(evalErrs, ee)
	}
	return res, evalErrs, nil
}

// scriptErrorKind rebuilds the registry error of a script failure.
func scriptErrorKind(se ScriptError) error {
	if kind := kindOf(se.Code); kind != nil {
		return &RemoteError{Code: se.Code, Message: se.Message, kind: kind}
	}
	return nil
}

// CheckScene runs the server's read-only scene check.
func (c *Client) CheckScene(ctx context.Context) (obstacle.Report, error) {
	var out CheckResponse
	if err := c.invoke(ctx, MethodCheckScene, &Empty{}, &out); err != nil {
		return obstacle.Report{}, err
	}
	return out.Report, nil
}

// Health returns the serving status reported by the standard health
// service. An empty service name asks about the server as a whole.
func (c *Client) Health(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
