// Package server initializes and runs the chat backend: database and
// migrations, the service layer, the HTTP API, and the background session
// sweeper, with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/chatter/internal/logging"
	"github.com/dmitrijs2005/chatter/internal/server/auth"
	"github.com/dmitrijs2005/chatter/internal/server/broadcast"
	"github.com/dmitrijs2005/chatter/internal/server/config"
	"github.com/dmitrijs2005/chatter/internal/server/handlers"
	"github.com/dmitrijs2005/chatter/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatter/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	publisher   broadcast.Publisher
	authService *services.AuthService
	httpServer  *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	var publisher broadcast.Publisher = broadcast.NoopPublisher{}
	if cfg.NATSURL != "" {
		publisher, err = broadcast.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("broadcast init error: %w", err)
		}
	}

	codec := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})

	authService := services.NewAuthService(db, rm, codec, logger)
	chatService := services.NewChatService(db, rm, logger)
	messageService := services.NewMessageService(db, rm, publisher, logger)
	mediaService := services.NewMediaService(cfg)

	h := handlers.NewHandlers(authService, chatService, messageService, mediaService, logger, cfg.SecureCookies)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: h.Router(cfg.AllowedOrigins),
	}

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		publisher:   publisher,
		authService: authService,
		httpServer:  httpServer,
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
	app.logger.Info(ctx, "http server listening", "addr", app.config.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// runSessionSweeper periodically removes expired session rows. Expired rows
// are already invisible to lookups; the sweeper only keeps the table small.
func (app *App) runSessionSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.SessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.authService.SweepExpired(ctx); err != nil {
				app.logger.Error(ctx, "session sweep failed", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSessionSweeper(ctx)
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
	}

	wg.Wait()

	app.publisher.Close()
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}

	app.logger.Info(context.Background(), "app stopped")
}
