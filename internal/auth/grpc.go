package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"certificatePortal/models"
)

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that extracts and validates
// a Bearer JWT from incoming metadata and injects the claims into the context.
// Methods listed in allowUnauthenticated bypass authentication (e.g., health checks).
func NewUnaryAuthInterceptor(gw *Gateway, allowUnauthenticated ...string) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, m := range allowUnauthenticated {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		c, err := ParseFromMD(ctx, gw)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		return handler(WithClaims(ctx, c), req)
	}
}

// ParseFromMD verifies the token carried in the "authorization" metadata key.
func ParseFromMD(ctx context.Context, gw *Gateway) (*Claims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, missingToken()
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return nil, missingToken()
	}
	tok, err := BearerToken(vals[0])
	if err != nil {
		return nil, err
	}
	return gw.Verify(tok)
}

// RequireRoleCtx ensures the claims in ctx carry role.
func RequireRoleCtx(ctx context.Context, gw *Gateway, role models.Role) (*Claims, error) {
	c, ok := FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing claims")
	}
	if err := gw.RequireRole(c, role); err != nil {
		return nil, status.Error(codes.PermissionDenied, err.Error())
	}
	return c, nil
}
