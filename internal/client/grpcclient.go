package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func fullMethod(name string) string {
	return "/" + common.ServiceName + "/" + name
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = access, refresh
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, refresh := s.tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}
	if refresh == "" || method == fullMethod("Refresh") {
		return err
	}

	if err := s.refresh(ctx, refresh); err != nil {
		return err
	}

	// tokens refreshed, retry with the new access token
	access, _ = s.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

// NewGRPCClient connects to endpointURL. Extra options are appended to the
// defaults (insecure transport and the token interceptor).
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dial...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// Call invokes method with in encoded as a Struct and decodes the response
// payload into out. A nil out discards the payload.
func (s *GRPCClient) Call(ctx context.Context, method string, in, out any) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}

	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return s.mapError(err)
	}
	if out == nil {
		return nil
	}

	b, err := protojson.Marshal(resp.GetFields()["data"])
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func toStruct(in any) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	if in == nil {
		return out, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GRPCClient) refresh(ctx context.Context, refreshToken string) error {
	var pair services.TokenPair
	if err := s.Call(ctx, "Refresh", map[string]string{"refresh_token": refreshToken}, &pair); err != nil {
		return err
	}
	s.setTokens(pair.AccessToken, pair.RefreshToken)
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.NotFound:
		return ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp string
	if err := s.Call(ctx, "Ping", nil, &resp); err != nil {
		return err
	}
	if resp != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, in services.RegisterCommand) (services.UserView, error) {
	var u services.UserView
	err := s.Call(ctx, "Register", in, &u)
	return u, err
}

// Login authenticates and keeps the returned tokens for later calls.
func (s *GRPCClient) Login(ctx context.Context, email, password string) (services.UserView, error) {
	var pair services.TokenPair
	if err := s.Call(ctx, "Login", map[string]string{"email": email, "password": password}, &pair); err != nil {
		return services.UserView{}, err
	}
	s.setTokens(pair.AccessToken, pair.RefreshToken)
	return pair.User, nil
}

func (s *GRPCClient) CreateProject(ctx context.Context, name string) (services.ProjectView, error) {
	var p services.ProjectView
	err := s.Call(ctx, "CreateProject", services.ProjectCreate{Name: name}, &p)
	return p, err
}

func (s *GRPCClient) ListProjects(ctx context.Context) ([]services.ProjectView, error) {
	var ps []services.ProjectView
	err := s.Call(ctx, "ListProjects", nil, &ps)
	return ps, err
}

func (s *GRPCClient) CreateCategory(ctx context.Context, projectID, name string) (services.CategoryView, error) {
	var c services.CategoryView
	err := s.Call(ctx, "CreateCategory", services.CategoryCreate{ProjectID: projectID, Name: name}, &c)
	return c, err
}

func (s *GRPCClient) CreateTask(ctx context.Context, in services.TaskCreate) (services.TaskView, error) {
	var t services.TaskView
	err := s.Call(ctx, "CreateTask", in, &t)
	return t, err
}

func (s *GRPCClient) MoveTask(ctx context.Context, in services.TaskMove) (services.TaskView, error) {
	var t services.TaskView
	err := s.Call(ctx, "MoveTask", in, &t)
	return t, err
}

func (s *GRPCClient) ReorderTasks(ctx context.Context, categoryID string, orderedIDs []string) ([]services.TaskView, error) {
	var ts []services.TaskView
	err := s.Call(ctx, "ReorderTasks", map[string]any{"id": categoryID, "ordered_ids": orderedIDs}, &ts)
	return ts, err
}
