package grpc

import (
	"context"

	"github.com/beesrs/identity/internal/server/services"
	"google.golang.org/grpc"
)

const ServiceName = "identity.v1.AuthService"

// Full method names.
const (
	MethodLogin          = "/" + ServiceName + "/Login"
	MethodGoogleLogin    = "/" + ServiceName + "/GoogleLogin"
	MethodRegister       = "/" + ServiceName + "/Register"
	MethodRefreshToken   = "/" + ServiceName + "/RefreshToken"
	MethodLogout         = "/" + ServiceName + "/Logout"
	MethodChangePassword = "/" + ServiceName + "/ChangePassword"
	MethodForgotPassword = "/" + ServiceName + "/ForgotPassword"
	MethodResetPassword  = "/" + ServiceName + "/ResetPassword"
	MethodVerifyEmail    = "/" + ServiceName + "/VerifyEmail"
)

// LogoutRequest is empty; the account comes from the access token.
type LogoutRequest struct{}

// AuthServer is the handler set registered under ServiceName.
type AuthServer interface {
	Login(context.Context, *services.LoginRequest) (*services.AuthResult, error)
	GoogleLogin(context.Context, *services.GoogleLoginRequest) (*services.AuthResult, error)
	Register(context.Context, *services.RegisterRequest) (*services.MessageResult, error)
	RefreshToken(context.Context, *services.RefreshTokenRequest) (*services.AuthResult, error)
	Logout(context.Context, *LogoutRequest) (*services.MessageResult, error)
	ChangePassword(context.Context, *services.ChangePasswordRequest) (*services.MessageResult, error)
	ForgotPassword(context.Context, *services.ForgotPasswordRequest) (*services.MessageResult, error)
	ResetPassword(context.Context, *services.ResetPasswordRequest) (*services.MessageResult, error)
	VerifyEmail(context.Context, *services.VerifyEmailRequest) (*services.MessageResult, error)
}

// unary builds a MethodDesc that decodes Req and dispatches to call.
func unary[Req any, Resp any](name string, call func(AuthServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", AuthServer.Login),
		unary("GoogleLogin", AuthServer.GoogleLogin),
		unary("Register", AuthServer.Register),
		unary("RefreshToken", AuthServer.RefreshToken),
		unary("Logout", AuthServer.Logout),
		unary("ChangePassword", AuthServer.ChangePassword),
		unary("ForgotPassword", AuthServer.ForgotPassword),
		unary("ResetPassword", AuthServer.ResetPassword),
		unary("VerifyEmail", AuthServer.VerifyEmail),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "identity/v1/auth.json",
}

// RegisterAuthServer registers srv on s.
func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&serviceDesc, srv)
}
