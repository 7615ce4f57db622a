// Package server initializes and runs the punishment ledger server.
// It opens the database, runs migrations, wires the services and starts
// the HTTP endpoint together with the periodic reconciliation loop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dotkom/vengeful/internal/logging"
	"github.com/dotkom/vengeful/internal/server/config"
	"github.com/dotkom/vengeful/internal/server/httpapi"
	"github.com/dotkom/vengeful/internal/server/ow"
	"github.com/dotkom/vengeful/internal/server/repositories/repomanager"
	"github.com/dotkom/vengeful/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	syncService *services.SyncService
	handler     *httpapi.Handler
}

func NewApp(cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()

	source := ow.NewClient(cfg.OWBaseURL, cfg.OWAPIToken, logger)

	syncService := services.NewSyncService(db, m, source, cfg, logger)
	ledgerService := services.NewLedgerService(db, m, cfg)
	groupService := services.NewGroupService(db, m)
	logoService := services.NewLogoService(cfg)

	handler := httpapi.NewHandler(groupService, ledgerService, syncService, logoService, logger, []byte(cfg.SecretKey))

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		repomanager: m,
		syncService: syncService,
		handler:     handler,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.handler.Routes(), app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		app.logger.Error(ctx, "migrations failed", "error", err)
		return
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.syncService.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err)
	}
}
