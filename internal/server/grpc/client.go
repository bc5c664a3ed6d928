package grpc

import (
	"context"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls AuthService over an established connection using the JSON
// codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithAccessToken attaches an access token to outgoing calls made with ctx.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.cc.Invoke(ctx, method, req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, req *services.LoginRequest) (*services.AuthResult, error) {
	return invoke[services.AuthResult](ctx, c, MethodLogin, req)
}

func (c *Client) GoogleLogin(ctx context.Context, req *services.GoogleLoginRequest) (*services.AuthResult, error) {
	return invoke[services.AuthResult](ctx, c, MethodGoogleLogin, req)
}

func (c *Client) Register(ctx context.Context, req *services.RegisterRequest) (*services.MessageResult, error) {
	return invoke[services.MessageResult](ctx, c, MethodRegister, req)
}

func (c *Client) RefreshToken(ctx context.Context, req *services.RefreshTokenRequest) (*services.AuthResult, error) {
	return invoke[services.AuthResult](ctx, c, MethodRefreshToken, req)
}

func (c *Client) Logout(ctx context.Context) (*services.MessageResult, error) {
	return invoke[services.MessageResult](ctx, c, MethodLogout, &LogoutRequest{})
}

func (c *Client) ChangePassword(ctx context.Context, req *services.ChangePasswordRequest) (*services.MessageResult, error) {
	return invoke[services.MessageResult](ctx, c, MethodChangePassword, req)
}

func (c *Client) ForgotPassword(ctx context.Context, req *services.ForgotPasswordRequest) (*services.MessageResult, error) {
	return invoke[services.MessageResult](ctx, c, MethodForgotPassword, req)
}

func (c *Client) ResetPassword(ctx context.Context, req *services.ResetPasswordRequest) (*services.MessageResult, error) {
	return invoke[services.MessageResult](ctx, c, MethodResetPassword, req)
}

func (c *Client) VerifyEmail(ctx context.Context, req *services.VerifyEmailRequest) (*services.MessageResult, error) {
	return invoke[services.MessageResult](ctx, c, MethodVerifyEmail, req)
}
