// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	auditService "github.com/allisson/gatekeeper/internal/audit/service"
	auditUseCase "github.com/allisson/gatekeeper/internal/audit/usecase"
	"github.com/allisson/gatekeeper/internal/config"
	cryptoService "github.com/allisson/gatekeeper/internal/crypto/service"
	"github.com/allisson/gatekeeper/internal/database"
	gatewayUseCase "github.com/allisson/gatekeeper/internal/gateway/usecase"
	"github.com/allisson/gatekeeper/internal/http"
	identityService "github.com/allisson/gatekeeper/internal/identity/service"
	"github.com/allisson/gatekeeper/internal/metrics"
	monitorService "github.com/allisson/gatekeeper/internal/monitor/service"
	"github.com/allisson/gatekeeper/internal/notify"
	policyService "github.com/allisson/gatekeeper/internal/policy/service"
	sessionService "github.com/allisson/gatekeeper/internal/session/service"
	"github.com/allisson/gatekeeper/internal/storage"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger    *slog.Logger
	db        *sql.DB
	txManager database.TxManager
	store     storage.Store

	// Observability
	metricsProvider *metrics.Provider
	gatewayMetrics metrics.GatewayMetrics

	// Crypto
	kmsService cryptoService.KMSService
	keyRing    *cryptoService.KeyRing
	envelope   *cryptoService.EnvelopeService

	// Audit
	auditHasher auditService.ChainHasher
	auditLog    auditUseCase.AuditLog

	// Monitoring and alerting
	dispatcher *notify.Dispatcher
	closers    []func() error
	monitor    *monitorService.Monitor

	// Gateway
	policy         *policyService.Policy
	sessionStore   *sessionService.Store
	identity       identityService.IdentityVerifier
	stepUp         identityService.StepUpVerifier
	gatewayUseCase gatewayUseCase.Gateway

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	txManagerInit       sync.Once
	storeInit           sync.Once
	metricsProviderInit sync.Once
	gatewayMetricsInit sync.Once
	kmsServiceInit      sync.Once
	keyRingInit         sync.Once
	envelopeInit        sync.Once
	auditHasherInit     sync.Once
	auditLogInit        sync.Once
	dispatcherInit      sync.Once
	monitorInit         sync.Once
	policyInit          sync.Once
	sessionStoreInit    sync.Once
	identityInit        sync.Once
	stepUpInit          sync.Once
	gatewayUseCaseInit  sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection used by the SQL storage drivers.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// Store returns the key-value store selected by STORAGE_DRIVER.
func (c *Container) Store() (storage.Store, error) {
	var err error
	c.storeInit.Do(func() {
		c.store, err = c.initStore()
		if err != nil {
			c.initErrors["store"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["store"]; exists {
		return nil, storedErr
	}
	return c.store, nil
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// GatewayMetrics returns the gateway metrics recorder. It is a no-op when
// metrics are disabled.
func (c *Container) GatewayMetrics() (metrics.GatewayMetrics, error) {
	var err error
	c.gatewayMetricsInit.Do(func() {
		c.gatewayMetrics, err = c.initGatewayMetrics()
		if err != nil {
			c.initErrors["gatewayMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["gatewayMetrics"]; exists {
		return nil, storedErr
	}
	return c.gatewayMetrics, nil
}

// HTTPServer returns the HTTP server instance with its router configured.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics HTTP server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		var provider *metrics.Provider
		provider, err = c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("alert sink close: %w", err))
		}
	}

	if c.keyRing != nil {
		if err := c.keyRing.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("key ring close: %w", err))
		}
	}

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("store close: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.StorageDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initStore opens the key-value store for the configured driver.
func (c *Container) initStore() (storage.Store, error) {
	switch c.config.StorageDriver {
	case "badger":
		store, err := storage.OpenBadgerStore(c.config.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return store, nil
	case "memory":
		return storage.NewMemoryStore(), nil
	case "postgres", "mysql":
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for store: %w", err)
		}
		txManager, err := c.TxManager()
		if err != nil {
			return nil, fmt.Errorf("failed to get tx manager for store: %w", err)
		}
		return storage.NewSQLStore(db, txManager, c.config.StorageDriver)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", c.config.StorageDriver)
	}
}

func (c *Container) initGatewayMetrics() (metrics.GatewayMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpGatewayMetrics(), nil
	}
	return metrics.NewGatewayMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

// initHTTPServer creates the HTTP server and mounts every handler.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for http server: %w", err)
	}
	handlers, err := c.handlers()
	if err != nil {
		return nil, err
	}
	verifier, err := c.IdentityVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get identity verifier for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	checks := map[string]http.ReadinessCheck{
		"storage": func(ctx context.Context) error {
			_, err := store.Get(ctx, "health/probe")
			if err != nil && !isKeyNotFound(err) {
				return err
			}
			return nil
		},
		"ephemeral": func(ctx context.Context) error {
			_, err := os.Stat(c.config.EphemeralRootDir)
			return err
		},
	}

	server := http.NewServer(checks, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(c.config, handlers, verifier, provider)

	return server, nil
}
