// Package app assembles the portal from its configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"certificatePortal/internal/auth"
	"certificatePortal/internal/certificates"
	"certificatePortal/internal/common"
	"certificatePortal/internal/config"
	"certificatePortal/internal/db"
	grpcserver "certificatePortal/internal/grpc"
	"certificatePortal/internal/httpapi"
	"certificatePortal/internal/ingest"
	"certificatePortal/internal/logging"
	"certificatePortal/internal/render"
	"certificatePortal/repository"
)

const shutdownTimeout = 5 * time.Second

// App holds every long-lived component.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Users    *repository.UserRepository
	Records  *repository.RecordRepository
	Gateway  *auth.Gateway
	Pipeline *ingest.Pipeline
	Registry *render.Registry
	Certs    *certificates.Service
	GRPC     *grpcserver.Server
	Log      logging.Logger
}

// New opens the store and builds the components. The caller owns Close.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}
	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a := &App{Config: cfg, DB: d, Log: log}
	if err := a.build(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	a.Users = repository.NewUserRepository(a.DB)
	a.Records = repository.NewRecordRepository(a.DB)
	a.Gateway = auth.NewGateway(a.Users, tokens, hasher, a.Log)

	a.Registry, err = render.NewRegistry(repository.NewSettingRepository(a.DB), a.Log)
	if err != nil {
		return err
	}
	if err := a.Registry.EnsureDefault(ctx); err != nil {
		return err
	}

	a.Pipeline = ingest.NewPipeline(a.Records, ingest.NewStager(cfg.Ingest.StagingDir), a.Log)
	if cfg.GRPC.Address != "" {
		a.GRPC = grpcserver.New(a.Gateway, a.Records, a.Pipeline, a.Log)
		a.Pipeline.AddNotifier(a.GRPC)
	}
	a.Certs = certificates.NewService(a.Records, a.Registry, a.Log)
	return nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.DB.Close()
}

// Handler returns the HTTP router.
func (a *App) Handler() *gin.Engine {
	return httpapi.NewRouter(&httpapi.Handler{
		Gateway:   a.Gateway,
		Pipeline:  a.Pipeline,
		Registry:  a.Registry,
		Certs:     a.Certs,
		Log:       a.Log,
		AutoPrint: a.Config.Render.AutoPrint,
		MaxUpload: a.Config.Ingest.MaxUploadBytes,
	}, a.Config.HTTP.CORSOrigin)
}

// LoadStaged ingests the staged upload when the store is empty. A corrupt
// staged file is logged and skipped; store failures are returned.
func (a *App) LoadStaged(ctx context.Context) error {
	res, ran, err := a.Pipeline.IngestIfPresent(ctx)
	switch {
	case err != nil && errors.Is(err, common.ErrIngestion):
		a.Log.Warn(ctx, "staged file could not be loaded", "err", err)
		return nil
	case err != nil:
		return err
	case ran:
		a.Log.Info(ctx, "auto-loaded staged records", "count", res.RecordCount)
	case res.RecordCount > 0:
		a.Log.Info(ctx, "records already loaded", "count", res.RecordCount)
	default:
		a.Log.Warn(ctx, "no records loaded, upload a spreadsheet")
	}
	return nil
}

// CheckIdentities returns the number of registered identities and warns
// when there are none, since nobody could then sign in.
func (a *App) CheckIdentities(ctx context.Context) (int, error) {
	n, err := a.Users.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if n == 0 {
		a.Log.Warn(ctx, "no users registered, create one with create-user or POST /api/register")
	}
	return n, nil
}

// Run serves HTTP and gRPC until ctx is cancelled, then shuts both down.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.CheckIdentities(ctx); err != nil {
		return err
	}
	if err := a.LoadStaged(ctx); err != nil {
		return err
	}

	var stopGRPC func(context.Context) error
	if a.GRPC != nil {
		var err error
		stopGRPC, err = a.GRPC.Start(a.Config.GRPC.Address)
		if err != nil {
			return fmt.Errorf("start grpc: %w", err)
		}
	}

	srv := &http.Server{Addr: a.Config.HTTP.Address, Handler: a.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		a.Log.Info(ctx, "http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errc:
		runErr = fmt.Errorf("http server: %w", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.Log.Error(sctx, "http shutdown", "err", err)
	}
	if stopGRPC != nil {
		if err := stopGRPC(sctx); err != nil {
			a.Log.Error(sctx, "grpc shutdown", "err", err)
		}
	}
	return runErr
}
