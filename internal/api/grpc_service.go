package api

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-vizchat/internal/models"
	"github.com/miradorstack/mirador-vizchat/internal/services"
)

const (
	// QueryServiceName is the fully qualified gRPC service name.
	QueryServiceName = "vizchat.v1.QueryService"
	queryMethod      = "/" + QueryServiceName + "/Query"
)

// QueryServer is the gRPC surface of the query service.
type QueryServer interface {
	Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// GRPCQueryService adapts Service to QueryServer.
type GRPCQueryService struct {
	svc    Service
	logger *slog.Logger
}

// NewGRPCQueryService wires the gRPC adapter.
func NewGRPCQueryService(svc Service, logger *slog.Logger) *GRPCQueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCQueryService{svc: svc, logger: logger}
}

// Query runs one prompt. On failure the status message is the envelope's
// failure message.
func (g *GRPCQueryService) Query(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := FromProtoQueryRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := g.svc.Query(ctx, req)
	if err != nil {
		msg := err.Error()
		if resp != nil {
			msg = resp.FailureMessage()
		}
		if errors.Is(err, services.ErrInvalidPrompt) {
			return nil, status.Error(codes.InvalidArgument, msg)
		}
		return nil, status.Error(codes.Internal, msg)
	}

	out, err := ToProtoQueryResponse(resp)
	if err != nil {
		g.logger.Error("encode grpc response failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// RegisterQueryServer attaches srv to the gRPC registrar.
func RegisterQueryServer(reg grpc.ServiceRegistrar, srv QueryServer) {
	reg.RegisterService(&queryServiceDesc, srv)
}

// InvokeQuery calls QueryService/Query over conn.
func InvokeQuery(ctx context.Context, conn grpc.ClientConnInterface, req models.QueryRequest, opts ...grpc.CallOption) (*models.QueryResponse, error) {
	in, err := ToProtoQueryRequest(req)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := conn.Invoke(ctx, queryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return FromProtoQueryResponse(out)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueryServer).Query(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var queryServiceDesc = grpc.ServiceDesc{
	ServiceName: QueryServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: queryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vizchat/v1/query.proto",
}
