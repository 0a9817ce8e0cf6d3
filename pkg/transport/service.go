package transport

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "obstacle.v1.ObstacleService"

// Method names, relative to ServiceName.
const (
	MethodCreatePolyhedron    = "CreatePolyhedron"
	MethodCreateBox           = "CreateBox"
	MethodAddPoint            = "AddPoint"
	MethodAddTriangle         = "AddTriangle"
	MethodSetVisible          = "SetVisible"
	MethodSetTransparent      = "SetTransparent"
	MethodCreateCollisionList = "CreateCollisionList"
	MethodAddPolyToCollList   = "AddPolyToCollList"
	MethodAddObstacle         = "AddObstacle"
	MethodAddObstacleConfig   = "AddObstacleConfig"
	MethodMoveObstacleConfig  = "MoveObstacleConfig"
	MethodSetObstacles        = "SetObstacles"
	MethodListPolyhedra       = "ListPolyhedra"
	MethodDescribePolyhedron  = "DescribePolyhedron"
	MethodListCollisionLists  = "ListCollisionLists"
	MethodActiveObstacles     = "ActiveObstacles"
	MethodActiveMeshes        = "ActiveMeshes"
	MethodRunScript           = "RunScript"
	MethodCheckScene          = "CheckScene"
)

// fullMethod returns "/obstacle.v1.ObstacleService/<name>".
func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ObstacleServer is the server API for ObstacleService.
type ObstacleServer interface {
	CreatePolyhedron(context.Context, *NameRequest) (*Empty, error)
	CreateBox(context.Context, *BoxRequest) (*Empty, error)
	AddPoint(context.Context, *PointRequest) (*RankResponse, error)
	AddTriangle(context.Context, *TriangleRequest) (*RankResponse, error)
	SetVisible(context.Context, *FlagRequest) (*Empty, error)
	SetTransparent(context.Context, *FlagRequest) (*Empty, error)
	CreateCollisionList(context.Context, *NameRequest) (*Empty, error)
	AddPolyToCollList(context.Context, *MemberRequest) (*Empty, error)
	AddObstacle(context.Context, *NameRequest) (*Empty, error)
	AddObstacleConfig(context.Context, *PlaceRequest) (*Empty, error)
	MoveObstacleConfig(context.Context, *PlaceRequest) (*Empty, error)
	SetObstacles(context.Context, *NameRequest) (*Empty, error)
	ListPolyhedra(context.Context, *Empty) (*PolyhedraResponse, error)
	DescribePolyhedron(context.Context, *NameRequest) (*DescribeResponse, error)
	ListCollisionLists(context.Context, *Empty) (*ListsResponse, error)
	ActiveObstacles(context.Context, *Empty) (*ActiveResponse, error)
	ActiveMeshes(context.Context, *MeshesRequest) (*MeshesResponse, error)
	RunScript(context.Context, *ScriptRequest) (*ScriptResponse, error)
	CheckScene(context.Context, *Empty) (*CheckResponse, error)
}

// unary builds the method handler for one call: decode into a fresh Req,
// then run call through the interceptor chain.
func unary[Req any, Resp any](name string, call func(ObstacleServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ObstacleServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ObstacleServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes ObstacleService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ObstacleServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreatePolyhedron, ObstacleServer.CreatePolyhedron),
		unary(MethodCreateBox, ObstacleServer.CreateBox),
		unary(MethodAddPoint, ObstacleServer.AddPoint),
		unary(MethodAddTriangle, ObstacleServer.AddTriangle),
		unary(MethodSetVisible, ObstacleServer.SetVisible),
		unary(MethodSetTransparent, ObstacleServer.SetTransparent),
		unary(MethodCreateCollisionList, ObstacleServer.CreateCollisionList),
		unary(MethodAddPolyToCollList, ObstacleServer.AddPolyToCollList),
		unary(MethodAddObstacle, ObstacleServer.AddObstacle),
		unary(MethodAddObstacleConfig, ObstacleServer.AddObstacleConfig),
		unary(MethodMoveObstacleConfig, ObstacleServer.MoveObstacleConfig),
		unary(MethodSetObstacles, ObstacleServer.SetObstacles),
		unary(MethodListPolyhedra, ObstacleServer.ListPolyhedra),
		unary(MethodDescribePolyhedron, ObstacleServer.DescribePolyhedron),
		unary(MethodListCollisionLists, ObstacleServer.ListCollisionLists),
		unary(MethodActiveObstacles, ObstacleServer.ActiveObstacles),
		unary(MethodActiveMeshes, ObstacleServer.ActiveMeshes),
		unary(MethodRunScript, ObstacleServer.RunScript),
		unary(MethodCheckScene, ObstacleServer.CheckScene),
	},
}

// RegisterObstacleServer registers srv on s.
func RegisterObstacleServer(s grpc.ServiceRegistrar, srv ObstacleServer) {
	s.RegisterService(&ServiceDesc, srv)
}
