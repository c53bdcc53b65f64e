package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/carnet"
	"github.com/clinic/clinic/internal/domain/dashboard"
	"github.com/clinic/clinic/internal/domain/medication"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/prescription"
	"github.com/clinic/clinic/internal/domain/staff"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/scheduler"
	"github.com/clinic/clinic/internal/platform/tracing"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic management API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(userCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// openPool loads the configuration and connects to the database.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsDir(cmd, cfg)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsDir(cmd, cfg)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return cfg.MigrationsDir
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := staff.CreateUserRequest{}
			req.Username, _ = cmd.Flags().GetString("username")
			req.Password, _ = cmd.Flags().GetString("password")
			req.Role, _ = cmd.Flags().GetString("role")
			req.LastName, _ = cmd.Flags().GetString("last-name")
			req.FirstName, _ = cmd.Flags().GetString("first-name")
			if req.Password == "" {
				req.Password = os.Getenv("CLINIC_USER_PASSWORD")
			}

			ctx := cmd.Context()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := staff.NewService(staff.NewUserRepo(pool), nil, nil, newLogger(cfg.Env))
			u, err := svc.CreateUser(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s %s (%s)\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Password (or CLINIC_USER_PASSWORD)")
	createCmd.Flags().String("role", auth.RoleAdmin, "One of "+strings.Join(auth.Roles, ", "))
	createCmd.Flags().String("last-name", "", "Last name")
	createCmd.Flags().String("first-name", "", "First name")
	_ = createCmd.MarkFlagRequired("username")

	cmd.AddCommand(createCmd)
	return cmd
}

// signingSecret returns JWT_SECRET, or a random per-process secret in
// development so tokens are still issued without configuration.
func signingSecret(cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	if cfg.ResolvedAuthMode() != "development" {
		return nil, errors.New("JWT_SECRET is required")
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate dev secret: %w", err)
	}
	logger.Warn().Msg("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	return secret, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "clinic-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     cfg.OTelSampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if n, err := db.NewMigrator(pool, cfg.MigrationsDir).Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	} else if n > 0 {
		logger.Info().Int("applied", n).Msg("database migrations applied")
	}

	secret, err := signingSecret(cfg, logger)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenIssuer(secret, cfg.JWTTTL)
	revocations := auth.NewPGRevocationStore(pool)
	m := metrics.New()

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
		CleanupInterval:   10 * time.Minute,
		Buckets:           m.RateLimiterBuckets,
	})
	defer limiter.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.Metrics(m))
	e.Use(tracing.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("development auth: anonymous requests get an admin session")
		e.Use(auth.DevAuthMiddleware(tokens, revocations))
	} else {
		e.Use(auth.Authenticate(tokens, revocations))
	}

	registerHealth(e, pool)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	api := e.Group("/api/v1", limiter.Middleware(), middleware.Audit(logger))

	// Services
	staffSvc := staff.NewService(staff.NewUserRepo(pool), tokens, revocations, logger)
	patientSvc := patient.NewService(patient.NewRepo(pool))
	medicationRepo := medication.NewRepo(pool)
	medicationSvc := medication.NewService(medicationRepo, m, logger)
	prescriptionSvc := prescription.NewService(prescription.NewRepo(pool), medicationRepo, db.NewTxManager(pool), m, logger)
	appointmentSvc := appointment.NewService(appointment.NewRepo(pool))
	carnetSvc := carnet.NewService(
		carnet.NewConsultationRepo(pool),
		carnet.NewCareEpisodeRepo(pool),
		carnet.NewExamRepo(pool),
		patientSvc, prescriptionSvc, appointmentSvc,
	)
	dashboardSvc := dashboard.NewService(dashboard.NewRepo(pool))

	// Routes
	staff.NewHandler(staffSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	medication.NewHandler(medicationSvc).RegisterRoutes(api)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(api)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(api)
	carnet.NewHandler(carnetSvc).RegisterRoutes(api)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(api)

	// Background jobs
	jobs := scheduler.New(logger)
	if err := jobs.Every(cfg.StockScanInterval, "low-stock-scan", medicationSvc.ScanLowStock); err != nil {
		return err
	}
	if err := jobs.Every(time.Hour, "revocation-purge", func(ctx context.Context) error {
		n, err := revocations.Purge(ctx, time.Now())
		if err == nil && n > 0 {
			logger.Info().Int64("purged", n).Msg("expired session revocations purged")
		}
		return err
	}); err != nil {
		return err
	}
	jobs.Start()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs.Stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown")
	}
	return nil
}

func registerHealth(e *echo.Echo, pool *pgxpool.Pool) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
}
