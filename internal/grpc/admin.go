package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"certificatePortal/internal/auth"
	"certificatePortal/internal/common"
	"certificatePortal/internal/ingest"
	"certificatePortal/models"
)

const (
	AdminServiceName  = "certificates.v1.AdminService"
	recordCountMethod = "/" + AdminServiceName + "/RecordCount"
	reloadMethod      = "/" + AdminServiceName + "/Reload"
)

// RecordCounter reports the size of the current record set.
type RecordCounter interface {
	Count(ctx context.Context) (int, error)
}

// Reloader re-ingests the staged upload.
type Reloader interface {
	Reload(ctx context.Context) (ingest.Result, error)
}

// AdminServiceServer is the handler set registered under AdminServiceName.
type AdminServiceServer interface {
	RecordCount(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	Reload(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
}

// AdminServer exposes record administration to callers holding an admin token.
type AdminServer struct {
	gw       *auth.Gateway
	records  RecordCounter
	reloader Reloader
}

// RecordCount returns the number of records currently served.
func (a *AdminServer) RecordCount(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	if _, err := auth.RequireRoleCtx(ctx, a.gw, models.RoleAdmin); err != nil {
		return nil, err
	}
	n, err := a.records.Count(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "count records: %v", err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

// Reload re-reads the staged upload and returns the new record count.
func (a *AdminServer) Reload(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	if _, err := auth.RequireRoleCtx(ctx, a.gw, models.RoleAdmin); err != nil {
		return nil, err
	}
	res, err := a.reloader.Reload(ctx)
	if err != nil {
		code := codes.Internal
		if errors.Is(err, common.ErrIngestion) {
			code = codes.FailedPrecondition
		}
		return nil, status.Error(code, common.Message(err))
	}
	return wrapperspb.Int64(int64(res.RecordCount)), nil
}

func registerAdmin(s *grpc.Server, a AdminServiceServer) {
	s.RegisterService(&adminServiceDesc, a)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RecordCount", Handler: adminUnary(recordCountMethod, AdminServiceServer.RecordCount)},
		{MethodName: "Reload", Handler: adminUnary(reloadMethod, AdminServiceServer.Reload)},
	},
	Streams: []grpc.StreamDesc{},
}

type adminMethod func(AdminServiceServer, context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)

func adminUnary(fullMethod string, m adminMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m(srv.(AdminServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(srv.(AdminServiceServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}
