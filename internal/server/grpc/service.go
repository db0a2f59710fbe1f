package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const (
	ServiceName = "sparkly.auth.v1.Auth"

	RegisterMethod = "/" + ServiceName + "/Register"
	LoginMethod    = "/" + ServiceName + "/Login"
	RefreshMethod  = "/" + ServiceName + "/Refresh"
	LogoutMethod   = "/" + ServiceName + "/Logout"
	WhoAmIMethod   = "/" + ServiceName + "/WhoAmI"
	GetUserMethod  = "/" + ServiceName + "/GetUser"
)

type RegisterRequest struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type GetUserRequest struct {
	ID string `json:"id"`
}

type Empty struct{}

type SessionResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	UserName string `json:"username"`
	Role     string `json:"role"`
}

// AuthServer is the server API of the auth service.
type AuthServer interface {
	Register(context.Context, *RegisterRequest) (*UserResponse, error)
	Login(context.Context, *LoginRequest) (*SessionResponse, error)
	Refresh(context.Context, *RefreshRequest) (*SessionResponse, error)
	Logout(context.Context, *LogoutRequest) (*Empty, error)
	WhoAmI(context.Context, *Empty) (*UserResponse, error)
	GetUser(context.Context, *GetUserRequest) (*UserResponse, error)
}

func unary[Req, Resp any](method string, call func(AuthServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthServiceDesc describes the auth service for grpc.Server.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary(RegisterMethod, AuthServer.Register)},
		{MethodName: "Login", Handler: unary(LoginMethod, AuthServer.Login)},
		{MethodName: "Refresh", Handler: unary(RefreshMethod, AuthServer.Refresh)},
		{MethodName: "Logout", Handler: unary(LogoutMethod, AuthServer.Logout)},
		{MethodName: "WhoAmI", Handler: unary(WhoAmIMethod, AuthServer.WhoAmI)},
		{MethodName: "GetUser", Handler: unary(GetUserMethod, AuthServer.GetUser)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sparkly/auth/v1/auth.json",
}

// AuthClient calls the auth service over conn using the JSON codec.
type AuthClient struct {
	conn grpc.ClientConnInterface
}

func NewAuthClient(conn grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{conn: conn}
}

func invoke[Resp any](ctx context.Context, c *AuthClient, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c, RegisterMethod, in, opts...)
}

func (c *AuthClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, LoginMethod, in, opts...)
}

func (c *AuthClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, RefreshMethod, in, opts...)
}

func (c *AuthClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, LogoutMethod, in, opts...)
}

func (c *AuthClient) WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c, WhoAmIMethod, &Empty{}, opts...)
}

func (c *AuthClient) GetUser(ctx context.Context, in *GetUserRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c, GetUserMethod, in, opts...)
}
