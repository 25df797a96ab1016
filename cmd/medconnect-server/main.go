package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/config"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/account"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/admin"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/appointment"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/connection"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/messaging"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/patient"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/report"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/symptom"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/logging"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/middleware"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/notification"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/objectstore"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/scheduler"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "medconnect-server",
		Short: "MedConnect patient and doctor API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.Files).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.Files).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				state, at := "pending", ""
				if s.Applied {
					state = "applied"
					if s.AppliedAt != nil {
						at = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or ADMIN_PASSWORD) are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			tokens := auth.NewTokenIssuer(cfg.EffectiveSigningKey(), cfg.JWTIssuer, cfg.TokenTTL)
			revocations := auth.NewTokenRevocationStore(time.Hour)
			defer revocations.Close()
			svc := account.NewService(account.NewUserRepoPG(pool), tokens, revocations, cfg.PhoneDefaultRegion)

			u, err := svc.CreateAdmin(ctx, account.SignUpInput{
				Email: email, Password: password, PasswordConfirm: password, DisplayName: name,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created admin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	createAdmin.Flags().String("email", "", "Admin email address")
	createAdmin.Flags().String("name", "Administrator", "Display name")
	createAdmin.Flags().String("password", "", "Password (prefer ADMIN_PASSWORD)")
	cmd.AddCommand(createAdmin)

	return cmd
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

// services holds every domain service the router exposes.
type services struct {
	accounts     *account.Service
	patients     *patient.Service
	connections  *connection.Service
	appointments *appointment.Service
	symptoms     *symptom.Service
	reports      *report.Service
	messages     *messaging.Service
	admin        *admin.Service
}

// newServices builds the domain services over q and wires their
// collaborators.
func newServices(q db.Querier, cfg *config.Config, tokens *auth.TokenIssuer, revocations auth.RevocationStore,
	store objectstore.Store, notifier *notification.Dispatcher, changes realtime.Publisher, logger zerolog.Logger) services {

	patients := patient.NewService(patient.NewRepoPG(q), cfg.PhoneDefaultRegion)
	accounts := account.NewService(account.NewUserRepoPG(q), tokens, revocations, cfg.PhoneDefaultRegion)
	connections := connection.NewService(connection.NewRepoPG(q), accounts, patients)
	appointments := appointment.NewService(appointment.NewRepoPG(q), accounts, patients)
	symptoms := symptom.NewService(symptom.NewRepoPG(q), patients)
	reports := report.NewService(report.NewRepoPG(q), store, patients)
	messages := messaging.NewService(messaging.NewRepoPG(q), accounts, connections)
	adminSvc := admin.NewService(admin.NewRepoPG(q))

	patients.SetAccessChecker(connections)
	patients.SetPublisher(changes)

	accounts.SetProvisioner(patients)
	accounts.SetNotifier(notifier, cfg.AppBaseURL)
	accounts.SetPublisher(changes)
	accounts.SetLogger(logger.With().Str("component", "account").Logger())

	connections.SetPublisher(changes)

	appointments.SetNotifier(notifier)
	appointments.SetPublisher(changes)
	appointments.SetLogger(logger.With().Str("component", "appointment").Logger())

	symptoms.SetPublisher(changes)

	reports.SetPublisher(changes)
	reports.SetLogger(logger.With().Str("component", "report").Logger())
	reports.EnablePresignedDownloads(cfg.StorageBackend == "s3")

	messages.SetPublisher(changes)
	messages.SetLogger(logger.With().Str("component", "messaging").Logger())

	adminSvc.SetLogger(logger.With().Str("component", "admin").Logger())

	return services{
		accounts:     accounts,
		patients:     patients,
		connections:  connections,
		appointments: appointments,
		symptoms:     symptoms,
		reports:      reports,
		messages:     messages,
		admin:        adminSvc,
	}
}

// router carries what newRouter mounts besides the domain services.
type router struct {
	cfg         *config.Config
	logger      zerolog.Logger
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	realtime    *realtime.Handler
	metrics     *middleware.Metrics
	health      echo.HandlerFunc
}

func newRouter(r router, svc services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(r.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(r.logger))
	e.Use(r.metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     r.cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit("1M", fmt.Sprintf("%dM", report.MaxFileSize>>20+1)))

	e.GET("/health", r.health)
	e.GET("/metrics", r.metrics.Handler())

	// API groups
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(r.cfg)))

	public := apiV1.Group("")
	api := apiV1.Group("", auth.JWTMiddleware(auth.JWTConfig{Tokens: r.tokens, Revocations: r.revocations}))
	stream := apiV1.Group("", auth.JWTMiddleware(auth.JWTConfig{
		Tokens: r.tokens, Revocations: r.revocations, AllowQueryToken: true,
	}))

	account.NewHandler(svc.accounts, r.cfg.CookieSecure).RegisterRoutes(public, api)
	patient.NewHandler(svc.patients).RegisterRoutes(api)
	connection.NewHandler(svc.connections).RegisterRoutes(api)
	appointment.NewHandler(svc.appointments).RegisterRoutes(api)
	symptom.NewHandler(svc.symptoms).RegisterRoutes(api)
	report.NewHandler(svc.reports).RegisterRoutes(api)
	messaging.NewHandler(svc.messages).RegisterRoutes(api)
	admin.NewHandler(svc.admin).RegisterRoutes(api)
	if r.realtime != nil {
		r.realtime.RegisterRoutes(stream)
	}

	return e
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func newObjectStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	if cfg.StorageBackend == "s3" {
		return objectstore.NewS3Store(ctx, objectstore.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.StoragePublicURL,
		})
	}
	base := cfg.StoragePublicURL
	if base == "" {
		base = "http://localhost:" + cfg.Port + "/files"
	}
	return objectstore.NewMemoryStore(base, cfg.S3Bucket, report.MaxFileSize), nil
}

func newEmailSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if cfg.SendGridAPIKey == "" {
		return notification.NewLogSender(logger.With().Str("component", "email").Logger())
	}
	return notification.NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFrom)
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Logger
	logger, logCloser := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.IsDev(), File: cfg.LogFile})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Realtime
	hub := realtime.NewHub(logger.With().Str("component", "realtime").Logger())
	var changes realtime.Publisher = hub
	var revocations auth.RevocationStore
	healthChecks := []db.Check{}
	if cfg.RedisURL != "" {
		client, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		bridge := realtime.NewRedisBridge(client, realtime.DefaultChannel, hub, logger.With().Str("component", "realtime").Logger())
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("realtime redis bridge stopped")
			}
		}()
		changes = bridge
		revocations = auth.NewRedisRevocationStore(client)
		healthChecks = append(healthChecks, db.Check{Name: "redis", Ping: bridge.Ping})
		logger.Info().Msg("realtime fan-out and session revocation through redis")
	} else {
		local := auth.NewTokenRevocationStore(5 * time.Minute)
		defer local.Close()
		revocations = local
	}

	// Object store
	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure object store")
	}
	if s3Store, ok := store.(*objectstore.S3Store); ok {
		healthChecks = append(healthChecks, db.Check{Name: "object_store", Ping: s3Store.Ping})
	}

	// Auth
	tokens := auth.NewTokenIssuer(cfg.EffectiveSigningKey(), cfg.JWTIssuer, cfg.TokenTTL)

	notifier := notification.NewDispatcher(newEmailSender(cfg, logger), notification.NewTemplateEngine())
	svc := newServices(pool, cfg, tokens, revocations, store, notifier, changes, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(registry)

	e := newRouter(router{
		cfg:         cfg,
		logger:      logger,
		tokens:      tokens,
		revocations: revocations,
		realtime:    realtime.NewHandler(hub, realtime.NewAuthorizer(svc.patients), cfg.CORSOrigins, logger),
		metrics:     metrics,
		health:      db.HealthHandler(pool, healthChecks...),
	}, svc)

	// Background jobs
	jobs := scheduler.New(db.NewAdvisoryLocker(pool), logger.With().Str("component", "scheduler").Logger())
	if err := jobs.Add("appointment-reminders", cfg.ReminderCron, svc.appointments.SendReminders); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule reminders")
	}
	jobs.Start()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	jobs.Stop(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
