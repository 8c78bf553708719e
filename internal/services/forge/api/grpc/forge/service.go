// Package forge exposes the forge engine over gRPC.
//
// Requests and responses are google.protobuf.Struct documents keyed by
// snake_case field names. Seeds and other 64-bit identifiers travel as
// decimal strings so JSON clients do not lose precision.
package forge

import (
	"context"
	"errors"

	"github.com/louisbranch/espritforge/internal/services/forge/cache"
	"github.com/louisbranch/espritforge/internal/services/forge/engine"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	grpcmeta "github.com/louisbranch/espritforge/internal/services/forge/api/grpc/metadata"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "esprit.forge.v1.ForgeService"

// Method names.
const (
	MethodCreatePlayer        = "CreatePlayer"
	MethodGetPlayer           = "GetPlayer"
	MethodGrantCurrency       = "GrantCurrency"
	MethodGrantFragments      = "GrantFragments"
	MethodCaptureEsprit       = "CaptureEsprit"
	MethodListStacks          = "ListStacks"
	MethodListBases           = "ListBases"
	MethodPreviewFusion       = "PreviewFusion"
	MethodFuse                = "Fuse"
	MethodAwaken              = "Awaken"
	MethodAwakenBatch         = "AwakenBatch"
	MethodListTransactions    = "ListTransactions"
	MethodListFragmentEntries = "ListFragmentEntries"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Deps are the collaborators the service reads from and writes through.
type Deps struct {
	Engine    *engine.Engine
	Store     storage.Store
	Snapshots *cache.Snapshots
}

// Service implements the forge gRPC API.
type Service struct {
	engine    *engine.Engine
	store     storage.Store
	snapshots *cache.Snapshots
}

// NewService validates deps and returns a service.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Engine == nil:
		return nil, errors.New("engine is required")
	case deps.Store == nil:
		return nil, errors.New("store is required")
	case deps.Snapshots == nil:
		return nil, errors.New("snapshots cache is required")
	}
	return &Service{engine: deps.Engine, store: deps.Store, snapshots: deps.Snapshots}, nil
}

// Register attaches svc to registrar.
func Register(registrar grpc.ServiceRegistrar, svc *Service) {
	registrar.RegisterService(&serviceDesc, svc)
}

type forgeServer interface {
	CreatePlayer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPlayer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GrantCurrency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GrantFragments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CaptureEsprit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStacks(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBases(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PreviewFusion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Fuse(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Awaken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AwakenBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListFragmentEntries(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ forgeServer = (*Service)(nil)

type unaryMethod func(forgeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*forgeServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodCreatePlayer, forgeServer.CreatePlayer),
		method(MethodGetPlayer, forgeServer.GetPlayer),
		method(MethodGrantCurrency, forgeServer.GrantCurrency),
		method(MethodGrantFragments, forgeServer.GrantFragments),
		method(MethodCaptureEsprit, forgeServer.CaptureEsprit),
		method(MethodListStacks, forgeServer.ListStacks),
		method(MethodListBases, forgeServer.ListBases),
		method(MethodPreviewFusion, forgeServer.PreviewFusion),
		method(MethodFuse, forgeServer.Fuse),
		method(MethodAwaken, forgeServer.Awaken),
		method(MethodAwakenBatch, forgeServer.AwakenBatch),
		method(MethodListTransactions, forgeServer.ListTransactions),
		method(MethodListFragmentEntries, forgeServer.ListFragmentEntries),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "esprit/forge/v1/forge.proto",
}

// FullMethod returns the "/service/method" path for name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func method(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(forgeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(forgeServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// handleError renders err as a gRPC status in the caller's locale.
func handleError(ctx context.Context, err error) error {
	return apperrors.HandleError(err, grpcmeta.LocaleFromContext(ctx))
}

func respond(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
