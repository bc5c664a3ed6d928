package grpc

import (
	"context"
	"net"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Login(ctx context.Context, req *services.LoginRequest) (*services.AuthResult, error) {
	req.OriginIP = clientIP(ctx)

	res, err := s.auth.Login(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *GRPCServer) GoogleLogin(ctx context.Context, req *services.GoogleLoginRequest) (*services.AuthResult, error) {
	req.OriginIP = clientIP(ctx)

	res, err := s.auth.GoogleLogin(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *services.RegisterRequest) (*services.MessageResult, error) {
	res, err := s.auth.Register(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *services.RefreshTokenRequest) (*services.AuthResult, error) {
	req.OriginIP = clientIP(ctx)

	res, err := s.auth.RefreshToken(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *LogoutRequest) (*services.MessageResult, error) {
	accountID, ok := AccountIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.ErrorUnauthorized.Error())
	}

	res, err := s.auth.Logout(ctx, accountID)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *services.ChangePasswordRequest) (*services.MessageResult, error) {
	accountID, ok := AccountIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.ErrorUnauthorized.Error())
	}
	req.AccountID = accountID

	res, err := s.auth.ChangePassword(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *GRPCServer) ForgotPassword(ctx context.Context, req *services.ForgotPasswordRequest) (*services.MessageResult, error) {
	req.OriginIP = clientIP(ctx)

	res, err := s.auth.ForgotPassword(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *GRPCServer) ResetPassword(ctx context.Context, req *services.ResetPasswordRequest) (*services.MessageResult, error) {
	res, err := s.auth.ResetPassword(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *GRPCServer) VerifyEmail(ctx context.Context, req *services.VerifyEmailRequest) (*services.MessageResult, error) {
	res, err := s.auth.VerifyEmail(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

// clientIP returns the peer IP, or "" when the transport has none.
func clientIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		host = p.Addr.String()
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}
