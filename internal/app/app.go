package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/logger"
	"github.com/rewan24/E-Learning-Lessons-Platform/common/telemetry"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/auth"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/booking"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/config"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/group"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/health"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/i18n"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/kafka"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/mail"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/messaging"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/middleware"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/student"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
)

const (
	tokenPurgeInterval  = time.Hour
	healthWatchInterval = 10 * time.Second
)

// Models lists every table in creation order. Foreign keys point backwards.
func Models() []interface{} {
	return []interface{}{
		(*user.User)(nil),
		(*student.Student)(nil),
		(*group.Group)(nil),
		(*booking.Booking)(nil),
		(*auth.RefreshToken)(nil),
		(*auth.PasswordResetToken)(nil),
	}
}

// publisher is a booking.EventPublisher that holds a connection.
type publisher interface {
	booking.EventPublisher
	Close() error
}

type App struct {
	config     *config.Config
	router     chi.Router
	server     *http.Server
	grpcHealth *health.GRPCServer
	db         *bun.DB
	telemetry  *telemetry.Telemetry
	publisher  publisher
	auth       *auth.Service
	logger     *slog.Logger

	cancel context.CancelFunc
}

func New() (*App, error) {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "git_commit", GitCommit, "build_time", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	authCfg, err := auth.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load auth config: %w", err)
	}

	ctx := context.Background()
	tel, err := telemetry.Init(ctx, ServiceName, Version, slogLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	meter := otel.GetMeterProvider().Meter(ServiceName)
	m, err := metrics.New(meter, slogLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	if err := m.Health.RegisterServiceInfo(meter, ServiceName, Version, cfg.Env); err != nil {
		slogLogger.Warn("failed to register service info metric", "error", err)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := m.Database.RegisterDB(database.DB, meter); err != nil {
		slogLogger.Warn("failed to register database pool metrics", "error", err)
	}

	if err := db.RunMigrations(ctx, database, Models()...); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pub, err := newPublisher(cfg.Events, m, slogLogger)
	if err != nil {
		database.Close()
		return nil, err
	}

	mailer, err := mail.New(cfg.Mail, slogLogger)
	if err != nil {
		database.Close()
		return nil, err
	}

	app := &App{
		config:    cfg,
		db:        database,
		telemetry: tel,
		publisher: pub,
		logger:    slogLogger,
	}
	app.build(authCfg, m, mailer)

	if cfg.Server.GrpcHealthPort != "" {
		app.grpcHealth = health.NewGRPCServer(app.readiness(m),
			grpc.UnaryInterceptor(m.GRPC.UnaryServerInterceptor()))
	}

	slogLogger.Info("application initialized successfully")
	return app, nil
}

// build wires repositories, services and handlers onto a fresh router.
func (a *App) build(authCfg auth.Config, m *metrics.Metrics, mailer mail.Sender) {
	cfg := a.config
	validate := validation.New()
	pageSize, maxPageSize := cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize

	userService := user.NewService(user.NewRepository(a.db, m))
	studentService := student.NewService(student.NewRepository(a.db, m))
	groupService := group.NewService(group.NewRepository(a.db, m))

	var pub booking.EventPublisher = booking.NopPublisher{}
	if a.publisher != nil {
		pub = a.publisher
	}
	engine := booking.NewEngine(a.db, pub, m, a.logger)

	tokens := auth.NewTokenIssuer(authCfg)
	a.auth = auth.NewService(auth.NewRepository(a.db, m), userService, tokens, mailer, m, a.logger, authCfg, cfg.Mail.FrontendURL)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(a.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.StripSlashes)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(i18n.Middleware)

	// Health endpoints (no auth, no timeout)
	a.readiness(m).RegisterRoutes(r)

	r.Route("/api", func(r chi.Router) {
		if cfg.Server.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		}
		r.Use(auth.Middleware(tokens, a.logger))

		auth.NewHandler(a.auth, validate, a.logger, auth.CookiePolicyFor(cfg.Env, authCfg.AccessTokenTTL)).RegisterRoutes(r)
		user.NewHandler(userService, studentService, validate, a.logger, pageSize, maxPageSize).RegisterRoutes(r)
		student.NewHandler(studentService, validate, m, a.logger, pageSize, maxPageSize).RegisterRoutes(r)
		group.NewHandler(groupService, engine, validate, m, a.logger, pageSize, maxPageSize).RegisterRoutes(r)
		booking.NewHandler(engine, studentService, validate, a.logger, pageSize, maxPageSize).RegisterRoutes(r)
	})

	a.router = r
}

func (a *App) readiness(m *metrics.Metrics) *health.Handler {
	checks := []health.Check{{Name: "database", Fn: a.db.PingContext}}
	if p, ok := a.publisher.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, health.Check{Name: "events", Fn: p.Ping})
	}
	return health.NewHandler(m, a.logger, checks...)
}

func newPublisher(cfg config.EventsConfig, m *metrics.Metrics, logger *slog.Logger) (publisher, error) {
	switch cfg.Driver {
	case config.EventsNATS:
		p, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, m, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize NATS producer: %w", err)
		}
		return p, nil
	case config.EventsKafka:
		p, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, m, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize kafka producer: %w", err)
		}
		return p, nil
	default:
		logger.Info("booking events disabled")
		return nil, nil
	}
}

func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.purgeTokens(ctx)

	if a.grpcHealth != nil {
		lis, err := net.Listen("tcp", ":"+a.config.Server.GrpcHealthPort)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC health: %w", err)
		}
		go a.grpcHealth.Watch(ctx, healthWatchInterval)
		go func() {
			a.logger.Info("gRPC health server starting", "port", a.config.Server.GrpcHealthPort)
			if err := a.grpcHealth.Server.Serve(lis); err != nil {
				a.logger.Error("gRPC health server stopped", "error", err)
			}
		}()
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// purgeTokens removes expired refresh and reset tokens once an hour.
func (a *App) purgeTokens(ctx context.Context) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.auth.PurgeExpired(ctx); err != nil {
				a.logger.Warn("failed to purge expired tokens", "error", err)
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.grpcHealth != nil {
		a.grpcHealth.Stop()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	db.Close(a.db)

	return errors.Join(errs...)
}
