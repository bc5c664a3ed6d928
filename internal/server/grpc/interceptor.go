package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/beesrs/identity/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const accountIDKey ctxKey = "accountID"

// protectedMethods require a valid access token.
var protectedMethods = map[string]bool{
	MethodLogout:         true,
	MethodChangePassword: true,
}

// AccountIDFromContext returns the account id placed by the access token
// interceptor.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token := accessToken(ctx)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	ctx = context.WithValue(ctx, accountIDKey, claims.AccountID)
	return handler(ctx, req)
}

// accessToken reads the token from the access_token header, falling back to
// an "authorization: Bearer" header.
func accessToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 && v[0] != "" {
		return v[0]
	}
	if v := md.Get("authorization"); len(v) > 0 {
		if t, ok := strings.CutPrefix(v[0], "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return ""
}

func (s *GRPCServer) metricsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	s.metrics.RPC(info.FullMethod, code.String(), time.Since(start).Seconds())
	if code == codes.Internal {
		s.logger.Error(ctx, "rpc failed", "method", info.FullMethod)
	} else {
		s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "code", code.String())
	}
	return resp, err
}
