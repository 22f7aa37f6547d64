package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"timetrack/internal/domain/audit"
	"timetrack/internal/domain/auth"
	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/notifications"
	"timetrack/internal/domain/organization"
	"timetrack/internal/domain/project"
	"timetrack/internal/domain/reports"
	"timetrack/internal/domain/timesheet"
	"timetrack/internal/platform/config"
	"timetrack/internal/platform/db"
	"timetrack/internal/platform/email"
	"timetrack/internal/platform/jobs"
	"timetrack/internal/platform/metrics"
	"timetrack/internal/platform/revocation"
	audithandler "timetrack/internal/transport/http/handlers/audit"
	authhandler "timetrack/internal/transport/http/handlers/auth"
	notificationshandler "timetrack/internal/transport/http/handlers/notifications"
	organizationshandler "timetrack/internal/transport/http/handlers/organizations"
	projectshandler "timetrack/internal/transport/http/handlers/projects"
	reportshandler "timetrack/internal/transport/http/handlers/reports"
	timesheetshandler "timetrack/internal/transport/http/handlers/timesheets"
	"timetrack/internal/transport/http/middleware"
)

const (
	jobWorkers      = 2
	shutdownTimeout = 15 * time.Second
)

type App struct {
	Config        config.Config
	DB            *pgxpool.Pool
	Router        http.Handler
	Jobs          *jobs.Service
	Notifications *notifications.Service

	emailWorker *jobs.EmailWorker
	closers     []func() error
}

// New wires every service and handler on top of pool. Redis is used for
// revocation, rate limiting and the email queue when REDIS_URL is set.
func New(cfg config.Config, pool *pgxpool.Pool) (*App, error) {
	app := &App{Config: cfg, DB: pool}

	var (
		redisClient *redis.Client
		redisOpt    asynq.RedisClientOpt
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		app.closers = append(app.closers, redisClient.Close)
		redisOpt = asynq.RedisClientOpt{
			Addr:      opts.Addr,
			Username:  opts.Username,
			Password:  opts.Password,
			DB:        opts.DB,
			TLSConfig: opts.TLSConfig,
		}
	}

	var revoked revocation.Store = revocation.NewMemory()
	if redisClient != nil {
		revoked = revocation.NewRedis(redisClient)
	}

	app.Jobs = jobs.New(jobs.PGRecorder{DB: pool}, jobWorkers)
	courier := &jobs.Courier{
		Mailer:    email.New(cfg),
		Addresses: jobs.PGAddresses{DB: pool},
		From:      cfg.EmailFrom,
	}
	var outbox notifications.Outbox = jobs.QueueOutbox{Jobs: app.Jobs, Courier: courier}
	if redisClient != nil {
		asynqOutbox := jobs.NewAsynqOutbox(redisOpt)
		app.closers = append(app.closers, asynqOutbox.Close)
		outbox = asynqOutbox
		app.emailWorker = jobs.NewEmailWorker(redisOpt, app.Jobs, courier)
	}
	dispatcher := notifications.NewDispatcher(outbox)

	members := membership.NewStore(pool)
	authSvc := auth.NewService(auth.NewStore(pool), revoked, cfg.JWTSecret, cfg.TokenTTL)
	orgSvc := organization.NewService(organization.NewPGTransactor(pool))
	projectSvc := project.NewService(project.NewPGTransactor(pool))
	timesheetSvc := timesheet.NewService(timesheet.NewPGTransactor(pool), dispatcher, timesheet.Policy{LockOnSubmit: cfg.SubmitLocksEntries})
	app.Notifications = notifications.New(notifications.NewPGTransactor(pool), dispatcher)
	auditSvc := audit.New(pool, members)
	reportSvc := reports.NewService(timesheetSvc, reports.NewStore(pool), members)

	rateLimit, err := middleware.RateLimit(cfg.RateLimit, redisClient)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger)
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics)
	}
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit)
		r.Use(middleware.Auth(cfg.JWTSecret, revoked))

		authhandler.NewHandler(authSvc).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			orgHandler := organizationshandler.NewHandler(orgSvc, auditSvc)
			projectHandler := projectshandler.NewHandler(projectSvc, auditSvc)
			timesheetHandler := timesheetshandler.NewHandler(timesheetSvc, reportSvc, auditSvc)
			notificationHandler := notificationshandler.NewHandler(app.Notifications)
			auditHandler := audithandler.NewHandler(auditSvc)
			reportHandler := reportshandler.NewHandler(reportSvc)

			r.Route("/organizations", func(r chi.Router) {
				orgHandler.RegisterRoutes(r)
				r.Route("/{orgID}", func(r chi.Router) {
					orgHandler.RegisterOrgRoutes(r)
					projectHandler.RegisterRoutes(r)
					timesheetHandler.RegisterRoutes(r)
					notificationHandler.RegisterRoutes(r)
					auditHandler.RegisterRoutes(r)
					reportHandler.RegisterRoutes(r)
				})
			})
		})
	})

	app.Router = router
	return app, nil
}

// Start launches the job workers, the reminder scheduler and, with Redis,
// the email worker. They stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	a.Jobs.Start(ctx)
	go a.Jobs.ScheduleReminders(ctx, a.Config.ReminderInterval, a.Notifications)
	if a.emailWorker != nil {
		go func() {
			if err := a.emailWorker.Run(); err != nil {
				log.Error().Err(err).Msg("email worker stopped")
			}
		}()
	}
}

// Close stops the email worker, waits for in-flight jobs and releases
// Redis connections. ctx must already be cancelled for the jobs to drain.
func (a *App) Close() {
	if a.emailWorker != nil {
		a.emailWorker.Shutdown()
	}
	a.Jobs.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// Prepare applies migrations and the seed when configured to.
func Prepare(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) error {
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, db.Migrations()); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg, auth.HashPassword); err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
	}
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer pool.Close()

	if err := Prepare(ctx, cfg, pool); err != nil {
		return err
	}

	app, err := New(cfg, pool)
	if err != nil {
		return err
	}

	workCtx, stopWork := context.WithCancel(ctx)
	app.Start(workCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("timetrack server listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = srv.Shutdown(shutdownCtx)
		cancel()
	}
	stopWork()
	app.Close()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
