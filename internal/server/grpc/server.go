// Package grpc exposes the services over gRPC. Requests and responses are
// google.protobuf.Struct messages; a successful response carries its payload
// under "data" and a failed one is a gRPC status built from the result kind.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/taskio/internal/logging"
	"github.com/dmitrijs2005/taskio/internal/server/auth"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/result"
	"github.com/dmitrijs2005/taskio/internal/server/services"
	"google.golang.org/grpc"
)

type AuthAPI interface {
	Register(ctx context.Context, in services.RegisterCommand) result.Result[services.UserView]
	Login(ctx context.Context, email, password string) result.Result[services.TokenPair]
	Refresh(ctx context.Context, refreshToken string) result.Result[services.TokenPair]
}

type UserAPI interface {
	Me(ctx context.Context, actor models.Actor) result.Result[services.UserView]
	UpdateSelf(ctx context.Context, actor models.Actor, in services.UserUpdate) result.Result[services.UserView]
}

type ProjectAPI interface {
	Create(ctx context.Context, actor models.Actor, in services.ProjectCreate) result.Result[services.ProjectView]
	ListForUser(ctx context.Context, actor models.Actor) result.Result[[]services.ProjectView]
	Get(ctx context.Context, actor models.Actor, id string) result.Result[services.ProjectView]
	Update(ctx context.Context, actor models.Actor, in services.ProjectUpdate) result.Result[services.ProjectView]
	Delete(ctx context.Context, actor models.Actor, id string) result.Result[bool]
	AddMember(ctx context.Context, actor models.Actor, projectID, email string) result.Result[services.ProjectView]
	RemoveMember(ctx context.Context, actor models.Actor, projectID, email string) result.Result[services.ProjectView]
	SetAdmin(ctx context.Context, actor models.Actor, projectID, userID string, isAdmin bool) result.Result[services.ProjectView]
	Members(ctx context.Context, actor models.Actor, projectID string) result.Result[[]services.MemberView]
}

type CategoryAPI interface {
	Insert(ctx context.Context, actor models.Actor, in services.CategoryCreate) result.Result[services.CategoryView]
	Get(ctx context.Context, actor models.Actor, id string) result.Result[services.CategoryView]
	ListByProject(ctx context.Context, actor models.Actor, projectID string) result.Result[[]services.CategoryView]
	Update(ctx context.Context, actor models.Actor, in services.CategoryUpdate) result.Result[services.CategoryView]
	Delete(ctx context.Context, actor models.Actor, id string) result.Result[bool]
	Reorder(ctx context.Context, actor models.Actor, projectID string, orderedIDs []string) result.Result[[]services.CategoryView]
}

type TaskAPI interface {
	Insert(ctx context.Context, actor models.Actor, in services.TaskCreate) result.Result[services.TaskView]
	Get(ctx context.Context, actor models.Actor, id string) result.Result[services.TaskView]
	ListByProject(ctx context.Context, actor models.Actor, projectID string) result.Result[[]services.TaskView]
	ListByCategory(ctx context.Context, actor models.Actor, categoryID string) result.Result[[]services.TaskView]
	Update(ctx context.Context, actor models.Actor, in services.TaskUpdate) result.Result[services.TaskView]
	Delete(ctx context.Context, actor models.Actor, id string) result.Result[bool]
	Assign(ctx context.Context, actor models.Actor, taskID, email string) result.Result[services.TaskView]
	Unassign(ctx context.Context, actor models.Actor, taskID, email string) result.Result[services.TaskView]
	Reorder(ctx context.Context, actor models.Actor, categoryID string, orderedIDs []string) result.Result[[]services.TaskView]
	Move(ctx context.Context, actor models.Actor, in services.TaskMove) result.Result[services.TaskView]
}

// Services is everything the endpoint dispatches to.
type Services struct {
	Auth       AuthAPI
	Users      UserAPI
	Projects   ProjectAPI
	Categories CategoryAPI
	Tasks      TaskAPI
}

type GRPCServer struct {
	address string
	logger  logging.Logger
	tokens  auth.TokenIssuer
	svc     Services
}

func NewGRPCServer(address string, l logging.Logger, tokens auth.TokenIssuer, svc Services) *GRPCServer {
	return &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		tokens:  tokens,
		svc:     svc,
	}
}

func (s *GRPCServer) isTaskioServer() {}

// Server builds a grpc.Server with the interceptors and the service registered.
func (s *GRPCServer) Server() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	desc := serviceDesc()
	srv.RegisterService(&desc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.Server()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
