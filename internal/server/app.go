// Package server wires configuration, storage, services and the gRPC
// endpoint together and runs them until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/logging"
	"github.com/dmitrijs2005/taskio/internal/server/auth"
	"github.com/dmitrijs2005/taskio/internal/server/config"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskio/internal/server/services"

	gs "github.com/dmitrijs2005/taskio/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	grpc   *gs.GRPCServer
}

// NewApp opens the database, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return newApp(c, logger, db, rm), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) *App {
	tx := dbx.NewSQLTransactor(db, nil)
	hasher := auth.NewBcryptHasher(c.BcryptCost)
	tokens := auth.NewJWTIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration)

	svc := gs.Services{
		Auth:       services.NewAuthService(tx, rm, hasher, tokens, c, logger),
		Users:      services.NewUserService(tx, rm, hasher, logger),
		Projects:   services.NewProjectService(tx, rm, logger),
		Categories: services.NewCategoryService(tx, rm, logger),
		Tasks:      services.NewTaskService(tx, rm, logger),
	}

	return &App{
		config: c,
		logger: logger,
		db:     db,
		grpc:   gs.NewGRPCServer(c.EndpointAddrGRPC, logger, tokens, svc),
	}
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
