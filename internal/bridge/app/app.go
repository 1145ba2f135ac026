package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/harborline/avvance-bridge/internal/bridge/http"
	"github.com/harborline/avvance-bridge/internal/bridge/service"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/internal/bridge/store/drivers/sqlite"
	"github.com/harborline/avvance-bridge/pkg/avvance"
	"github.com/harborline/avvance-bridge/pkg/polltoken"
	"github.com/harborline/avvance-bridge/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the bridge service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     store.Store
	client *avvance.Client
	orders service.Orders

	// Services
	reconcilerService  *service.ReconcilerService
	financingService   *service.FinancingService
	preApprovalService *service.PreApprovalService
	cleanupService     *service.CleanupService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "avvance-bridge",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.validateConfig(); err != nil {
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.cleanupService.Start()

	app.logger.Info("bridge service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down bridge service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.cleanupService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("bridge service stopped")
	return nil
}

func (app *Application) validateConfig() error {
	var missing []string
	for key, val := range map[string]string{
		"AVVANCE_BASE_URL":      app.cfg.AvvanceBaseURL,
		"AVVANCE_AUTH_URL":      app.cfg.AvvanceAuthURL,
		"AVVANCE_CLIENT_ID":     app.cfg.AvvanceClientID,
		"AVVANCE_CLIENT_SECRET": app.cfg.AvvanceClientSecret,
		"ORDERS_BASE_URL":       app.cfg.OrdersBaseURL,
		"WEBHOOK_USERNAME":      app.cfg.WebhookUsername,
		"WEBHOOK_PASSWORD":      app.cfg.WebhookPassword,
		"OPERATOR_USERNAME":     app.cfg.OperatorUsername,
		"OPERATOR_PASSWORD":     app.cfg.OperatorPassword,
		"POLL_TOKEN_SECRET":     app.cfg.PollTokenSecret,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes the outbound client and all business services.
func (app *Application) initServices() {
	env := avvance.EnvSandbox
	if app.cfg.AvvanceEnvironment == "production" {
		env = avvance.EnvProduction
	}

	app.client = avvance.NewClient(avvance.Config{
		BaseURL:              app.cfg.AvvanceBaseURL,
		AuthURL:              app.cfg.AvvanceAuthURL,
		PartnerID:            app.cfg.AvvancePartnerID,
		MerchantHash:         app.cfg.AvvanceMerchantHash,
		Environment:          env,
		RoutingKeyProduction: app.cfg.RoutingKeyProduction,
		RoutingKeySandbox:    app.cfg.RoutingKeySandbox,
		ClientID:             app.cfg.AvvanceClientID,
		ClientSecret:         app.cfg.AvvanceClientSecret,
		Logger:               app.logger,
	})

	app.orders = service.NewHTTPOrders(app.cfg.OrdersBaseURL, app.logger)

	app.reconcilerService = &service.ReconcilerService{
		Store:  app.db,
		Orders: app.orders,
		Logger: app.logger,
	}
	app.financingService = &service.FinancingService{
		Store:      app.db,
		Client:     app.client,
		Reconciler: app.reconcilerService,
		Logger:     app.logger,
	}
	app.preApprovalService = &service.PreApprovalService{
		Store:  app.db,
		Client: app.client,
		Logger: app.logger,
	}

	app.cleanupService = service.NewCleanupService(
		app.db,
		app.orders,
		app.logger,
		app.cfg.CleanupInterval,
		app.cfg.SessionTTL,
	)
}

// initHTTP wires the router and the HTTP server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.db, app.logger, BuildVersion)
	router.Financing = app.financingService
	router.PreApproval = app.preApprovalService
	router.Reconciler = app.reconcilerService
	router.PollTokens = &polltoken.Signer{
		Secret: []byte(app.cfg.PollTokenSecret),
		TTL:    app.cfg.PollTokenTTL,
	}
	router.WebhookUsername = app.cfg.WebhookUsername
	router.WebhookPassword = app.cfg.WebhookPassword
	router.OperatorUsername = app.cfg.OperatorUsername
	router.OperatorPassword = app.cfg.OperatorPassword
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}
