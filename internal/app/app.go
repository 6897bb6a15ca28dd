// Package app wires the entitlement engine together: configuration,
// logging, the bbolt store, the license manager, authentication and the
// loopback HTTP server the desktop shell talks to.
package app

import (
	"context"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vyaparcli/internal/audit"
	"vyaparcli/internal/auth"
	"vyaparcli/internal/authz"
	"vyaparcli/internal/config"
	"vyaparcli/internal/exporter"
	"vyaparcli/internal/infrastructure"
	"vyaparcli/internal/license"
	"vyaparcli/internal/security"
	"vyaparcli/internal/store"
	transport "vyaparcli/internal/transport/http"
)

// Application holds all initialized components
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	DB      *store.DB
	Manager *license.Manager
	Auth    *auth.Service
	Gate    *authz.Gate
	Trail   *audit.Trail
	Server  *nethttp.Server
}

// New builds the application from configuration. Everything downstream of
// the store shares the single bbolt handle.
func New(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Paths.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	manager := license.NewManager(
		license.NewBoltStore(db),
		security.NewFingerprintManager(),
		logger,
		license.WithGracePeriodDays(cfg.License.GracePeriodDays),
		license.WithRevocationTimeout(cfg.License.RevocationTimeout),
	)

	trail := audit.NewTrail(db, logger)
	slot := auth.NewSessionSlot()
	users := auth.NewBoltUserStore(db)
	authService := auth.NewService(users, slot, trail, logger,
		cfg.Auth.MinPasswordLength, cfg.Auth.BcryptCost)

	gate := authz.NewGate(db, slot, logger)
	if err := gate.InitializeDefaults(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed roles and permissions: %w", err)
	}

	if err := seedAdminUser(users, gate, cfg.Auth.BcryptCost, logger); err != nil {
		db.Close()
		return nil, err
	}

	exp := exporter.New(cfg.Paths.ExportDir, logger)

	router := transport.NewRouter(transport.Handlers{
		License: transport.NewLicenseHandler(manager, trail, logger),
		Auth:    transport.NewAuthHandler(authService, cfg.Auth.LoginRPS, cfg.Auth.LoginBurst, logger),
		Modules: transport.NewModulesHandler(manager, gate, trail, exp, logger),
	}, cfg.Server.ReadTimeout, logger)

	server := &nethttp.Server{
		// Loopback only: the engine serves the local desktop shell, never
		// the network.
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Manager: manager,
		Auth:    authService,
		Gate:    gate,
		Trail:   trail,
		Server:  server,
	}, nil
}

// seedAdminUser creates the initial admin account on a fresh database so
// the owner can sign in after installation. The password must be changed
// on first login; an empty user table is the only trigger.
func seedAdminUser(users auth.UserStore, gate *authz.Gate, bcryptCost int, logger *slog.Logger) error {
	existing, err := users.List()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	role, err := gate.RoleByName(authz.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to look up admin role: %w", err)
	}
	if role == nil {
		return fmt.Errorf("admin role missing after seeding")
	}

	hash, err := auth.HashPassword("admin123", bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash default password: %w", err)
	}

	_, err = users.Create(&auth.User{
		Username:     "admin",
		PasswordHash: hash,
		FullName:     "Administrator",
		RoleID:       role.ID,
		RoleName:     role.Name,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	logger.Warn("seeded default admin account, change the password immediately",
		slog.String("username", "admin"))
	return nil
}

// Run starts the server and the background revocation checker, then blocks
// until an interrupt or a fatal component error.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("server listening",
			slog.String("addr", a.Server.Addr),
			slog.Int("pid", os.Getpid()))
		if err := a.Server.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.runRevocationChecker(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.shutdown()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.Logger.Info("shutdown complete")
	return nil
}

// runRevocationChecker polls the kill-switch feed on the configured
// interval. One check runs at startup so a revoked install does not get a
// full interval of grace.
func (a *Application) runRevocationChecker(ctx context.Context) {
	url := a.Config.License.RevocationURL
	if url == "" {
		a.Logger.Info("remote revocation checking disabled")
		return
	}

	check := func() {
		revoked, err := a.Manager.CheckRemoteRevocation(ctx, url)
		if err != nil {
			a.Logger.Warn("revocation check error", slog.String("error", err.Error()))
			return
		}
		if revoked {
			a.Logger.Warn("license revoked by remote feed")
		}
	}
	check()

	ticker := time.NewTicker(a.Config.License.RevocationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// shutdown drains the server and closes the store
func (a *Application) shutdown() error {
	a.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.DB.Close(); err != nil {
		a.Logger.Error("database close error", slog.String("error", err.Error()))
	}

	return infrastructure.CloseLogFile()
}
