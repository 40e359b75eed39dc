package grpc

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/result"
	"github.com/dmitrijs2005/taskio/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func FullMethod(name string) string {
	return "/" + common.ServiceName + "/" + name
}

// taskioServer is the handler type of the service description.
type taskioServer interface {
	isTaskioServer()
}

type route struct {
	name   string
	public bool
	call   func(s *GRPCServer, ctx context.Context, actor models.Actor, in *structpb.Struct) (*structpb.Struct, error)
}

// unary decodes the request into C, runs call and encodes its result.
func unary[C, R any](name string, call func(s *GRPCServer, ctx context.Context, actor models.Actor, in C) result.Result[R]) route {
	return route{
		name: name,
		call: func(s *GRPCServer, ctx context.Context, actor models.Actor, in *structpb.Struct) (*structpb.Struct, error) {
			var c C
			if err := decode(in, &c); err != nil {
				return nil, status.Error(codes.InvalidArgument, "malformed request")
			}
			return reply(call(s, ctx, actor, c))
		},
	}
}

func public(r route) route {
	r.public = true
	return r
}

func (r route) handler() func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(*GRPCServer)
		h := func(ctx context.Context, req any) (any, error) {
			actor, _ := ActorFromContext(ctx)
			return r.call(s, ctx, actor, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return h(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(r.name)}, h)
	}
}

// Request shapes that do not map onto a single service command.
type (
	empty     struct{}
	idRequest struct {
		ID string `json:"id"`
	}
	emailRequest struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	reorderRequest struct {
		ID         string   `json:"id"`
		OrderedIDs []string `json:"ordered_ids"`
	}
	setAdminRequest struct {
		ProjectID string `json:"project_id"`
		UserID    string `json:"user_id"`
		IsAdmin   bool   `json:"is_admin"`
	}
	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	refreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}
)

var routes = []route{
	public(unary("Ping", func(_ *GRPCServer, _ context.Context, _ models.Actor, _ empty) result.Result[string] {
		return result.Ok("OK")
	})),

	// auth
	public(unary("Register", func(s *GRPCServer, ctx context.Context, _ models.Actor, in services.RegisterCommand) result.Result[services.UserView] {
		return s.svc.Auth.Register(ctx, in)
	})),
	public(unary("Login", func(s *GRPCServer, ctx context.Context, _ models.Actor, in loginRequest) result.Result[services.TokenPair] {
		return s.svc.Auth.Login(ctx, in.Email, in.Password)
	})),
	public(unary("Refresh", func(s *GRPCServer, ctx context.Context, _ models.Actor, in refreshRequest) result.Result[services.TokenPair] {
		return s.svc.Auth.Refresh(ctx, in.RefreshToken)
	})),

	// users
	unary("Me", func(s *GRPCServer, ctx context.Context, a models.Actor, _ empty) result.Result[services.UserView] {
		return s.svc.Users.Me(ctx, a)
	}),
	unary("UpdateMe", func(s *GRPCServer, ctx context.Context, a models.Actor, in services.UserUpdate) result.Result[services.UserView] {
		return s.svc.Users.UpdateSelf(ctx, a, in)
	}),

	// projects
	unary("CreateProject", func(s *GRPCServer, ctx context.Context, a models.Actor, in services.ProjectCreate) result.Result[services.ProjectView] {
		return s.svc.Projects.Create(ctx, a, in)
	}),
	unary("ListProjects", func(s *GRPCServer, ctx context.Context, a models.Actor, _ empty) result.Result[[]services.ProjectView] {
		return s.svc.Projects.ListForUser(ctx, a)
	}),
	unary("GetProject", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[services.ProjectView] {
		return s.svc.Projects.Get(ctx, a, in.ID)
	}),
	unary("UpdateProject", func(s *GRPCServer, ctx context.Context, a models.Actor, in services.ProjectUpdate) result.Result[services.ProjectView] {
		return s.svc.Projects.Update(ctx, a, in)
	}),
	unary("DeleteProject", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[bool] {
		return s.svc.Projects.Delete(ctx, a, in.ID)
	}),
	unary("AddMember", func(s *GRPCServer, ctx context.Context, a models.Actor, in emailRequest) result.Result[services.ProjectView] {
		return s.svc.Projects.AddMember(ctx, a, in.ID, in.Email)
	}),
	unary("RemoveMember", func(s *GRPCServer, ctx context.Context, a models.Actor, in emailRequest) result.Result[services.ProjectView] {
		return s.svc.Projects.RemoveMember(ctx, a, in.ID, in.Email)
	}),
	unary("SetAdmin", func(s *GRPCServer, ctx context.Context, a models.Actor, in setAdminRequest) result.Result[services.ProjectView] {
		return s.svc.Projects.SetAdmin(ctx, a, in.ProjectID, in.UserID, in.IsAdmin)
	}),
	unary("ListMembers", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[[]services.MemberView] {
		return s.svc.Projects.Members(ctx, a, in.ID)
	}),

	// categories
	unary("CreateCategory", func(s *GRPCServer, ctx context.Context, a models.Actor, in services.CategoryCreate) result.Result[services.CategoryView] {
		return s.svc.Categories.Insert(ctx, a, in)
	}),
	unary("GetCategory", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[services.CategoryView] {
		return s.svc.Categories.Get(ctx, a, in.ID)
	}),
	unary("ListCategories", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[[]services.CategoryView] {
		return s.svc.Categories.ListByProject(ctx, a, in.ID)
	}),
	unary("UpdateCategory", func(s *GRPCServer, ctx context.Context, a models.Actor, in services.CategoryUpdate) result.Result[services.CategoryView] {
		return s.svc.Categories.Update(ctx, a, in)
	}),
	unary("DeleteCategory", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[bool] {
		return s.svc.Categories.Delete(ctx, a, in.ID)
	}),
	unary("ReorderCategories", func(s *GRPCServer, ctx context.Context, a models.Actor, in reorderRequest) result.Result[[]services.CategoryView] {
		return s.svc.Categories.Reorder(ctx, a, in.ID, in.OrderedIDs)
	}),

	// tasks
	unary("CreateTask", func(s *GRPCServer, ctx context.Context, a models.Actor, in services.TaskCreate) result.Result[services.TaskView] {
		return s.svc.Tasks.Insert(ctx, a, in)
	}),
	unary("GetTask", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[services.TaskView] {
		return s.svc.Tasks.Get(ctx, a, in.ID)
	}),
	unary("ListProjectTasks", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[[]services.TaskView] {
		return s.svc.Tasks.ListByProject(ctx, a, in.ID)
	}),
	unary("ListCategoryTasks", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[[]services.TaskView] {
		return s.svc.Tasks.ListByCategory(ctx, a, in.ID)
	}),
	unary("UpdateTask", func(s *GRPCServer, ctx context.Context, a models.Actor, in services.TaskUpdate) result.Result[services.TaskView] {
		return s.svc.Tasks.Update(ctx, a, in)
	}),
	unary("DeleteTask", func(s *GRPCServer, ctx context.Context, a models.Actor, in idRequest) result.Result[bool] {
		return s.svc.Tasks.Delete(ctx, a, in.ID)
	}),
	unary("AssignTask", func(s *GRPCServer, ctx context.Context, a models.Actor, in emailRequest) result.Result[services.TaskView] {
		return s.svc.Tasks.Assign(ctx, a, in.ID, in.Email)
	}),
	unary("UnassignTask", func(s *GRPCServer, ctx context.Context, a models.Actor, in emailRequest) result.Result[services.TaskView] {
		return s.svc.Tasks.Unassign(ctx, a, in.ID, in.Email)
	}),
	unary("ReorderTasks", func(s *GRPCServer, ctx context.Context, a models.Actor, in reorderRequest) result.Result[[]services.TaskView] {
		return s.svc.Tasks.Reorder(ctx, a, in.ID, in.OrderedIDs)
	}),
	unary("MoveTask", func(s *GRPCServer, ctx context.Context, a models.Actor, in services.TaskMove) result.Result[services.TaskView] {
		return s.svc.Tasks.Move(ctx, a, in)
	}),
}

var publicMethods = func() map[string]bool {
	m := make(map[string]bool)
	for _, r := range routes {
		if r.public {
			m[FullMethod(r.name)] = true
		}
	}
	return m
}()

func serviceDesc() grpc.ServiceDesc {
	methods := make([]grpc.MethodDesc, 0, len(routes))
	for _, r := range routes {
		methods = append(methods, grpc.MethodDesc{MethodName: r.name, Handler: r.handler()})
	}
	return grpc.ServiceDesc{
		ServiceName: common.ServiceName,
		HandlerType: (*taskioServer)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
	}
}

// decode fills dst from the JSON form of in.
func decode(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// encode wraps v as {"data": v}.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(map[string]any{"data": v})
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func reply[R any](r result.Result[R]) (*structpb.Struct, error) {
	if !r.Success {
		return nil, status.Error(codeFor(r.Kind), r.ErrorMessage)
	}
	out, err := encode(r.Data)
	if err != nil {
		return nil, status.Error(codes.Internal, result.InternalMessage)
	}
	return out, nil
}

func codeFor(k result.Kind) codes.Code {
	switch k {
	case result.KindOk:
		return codes.OK
	case result.KindBadRequest:
		return codes.InvalidArgument
	case result.KindUnauthorized:
		return codes.Unauthenticated
	case result.KindForbidden:
		return codes.PermissionDenied
	case result.KindNotFound:
		return codes.NotFound
	case result.KindConflict:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}
