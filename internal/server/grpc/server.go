// Package grpc exposes the identity use cases over gRPC with a JSON codec.
package grpc

import (
	"context"
	"net"

	"github.com/beesrs/identity/internal/logging"
	"github.com/beesrs/identity/internal/server/auth"
	"github.com/beesrs/identity/internal/server/metrics"
	"github.com/beesrs/identity/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// AuthService is the use-case surface the transport needs.
// *services.AuthService satisfies it.
type AuthService interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.AuthResult, error)
	GoogleLogin(ctx context.Context, req services.GoogleLoginRequest) (*services.AuthResult, error)
	Register(ctx context.Context, req services.RegisterRequest) (*services.MessageResult, error)
	RefreshToken(ctx context.Context, req services.RefreshTokenRequest) (*services.AuthResult, error)
	Logout(ctx context.Context, accountID string) (*services.MessageResult, error)
	ChangePassword(ctx context.Context, req services.ChangePasswordRequest) (*services.MessageResult, error)
	ForgotPassword(ctx context.Context, req services.ForgotPasswordRequest) (*services.MessageResult, error)
	ResetPassword(ctx context.Context, req services.ResetPasswordRequest) (*services.MessageResult, error)
	VerifyEmail(ctx context.Context, req services.VerifyEmailRequest) (*services.MessageResult, error)
}

type GRPCServer struct {
	address string
	auth    AuthService
	tokens  *auth.Manager
	metrics *metrics.Recorder
	logger  logging.Logger
}

func NewGRPCServer(address string, l logging.Logger, svc AuthService, tokens *auth.Manager, rec *metrics.Recorder) *GRPCServer {
	return &GRPCServer{
		address: address,
		auth:    svc,
		tokens:  tokens,
		metrics: rec,
		logger:  l.With("module", "grpc_server"),
	}
}

// newServer builds the grpc.Server with interceptors, the auth service and
// the standard health service.
func (s *GRPCServer) newServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.metricsInterceptor, s.accessTokenInterceptor))

	RegisterAuthServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv, hs
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv, hs := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
