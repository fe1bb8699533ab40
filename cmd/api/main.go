package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhenando/maxsmile/internal/auth"
	"github.com/rhenando/maxsmile/internal/booking"
	"github.com/rhenando/maxsmile/internal/cache"
	"github.com/rhenando/maxsmile/internal/clinic"
	"github.com/rhenando/maxsmile/internal/config"
	"github.com/rhenando/maxsmile/internal/db"
	"github.com/rhenando/maxsmile/internal/handlers"
	"github.com/rhenando/maxsmile/internal/metrics"
	"github.com/rhenando/maxsmile/internal/middleware"
	"github.com/rhenando/maxsmile/internal/notifications"
	"github.com/rhenando/maxsmile/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "maxsmile",
		}
	}

	metrics.Register()

	brevo := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	mailer := notifications.NewContactMailer(brevo, cfg.ContactInbox)
	if mailer == nil {
		logger.Info("contact mailer disabled")
	} else {
		logger.Info("contact mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	}

	dir := clinic.Default()
	val := validation.New(dir)
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	bookingRepo := booking.NewRepository(cols.Appointments, cols.DayCounters)
	bookingService := booking.NewService(bookingRepo, dir, cfg.DailyLimit, cfg.Timezone, logger)
	bookingHandler := booking.NewHandler(bookingService, val, cacheStore, cacheTTL, logger)

	server := &handlers.Server{
		Cfg:   cfg,
		Cols:  cols,
		Dir:   dir,
		Val:   val,
		Log:   logger,
		Cache: cacheStore,
		Auth:  jwtManager,
	}
	if mailer != nil {
		server.Notifier = mailer
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	appointmentsLimiter := middleware.NewRateLimiter(cfg.RateLimitAppointments, window)
	contactLimiter := middleware.NewRateLimiter(cfg.RateLimitContact, window)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/branches", server.GetBranches)
		api.Get("/services", server.GetServices)
		api.Get("/testimonials", server.GetTestimonials)
		api.With(contactLimiter.Middleware).Post("/testimonials", server.CreateTestimonial)
		api.With(contactLimiter.Middleware).Post("/contact", server.CreateContact)

		api.Get("/appointments", bookingHandler.GetAvailability)
		api.With(appointmentsLimiter.Middleware).Post("/appointments", bookingHandler.Create)

		api.Route("/admin", func(admin chi.Router) {
			admin.Post("/login", server.AdminLogin)
			admin.Post("/refresh", server.AdminRefresh)
			admin.Post("/logout", server.AdminLogout)

			// chi requires middlewares before routes; auth-protected
			// endpoints live in their own sub-router.
			admin.Group(func(protected chi.Router) {
				protected.Use(middleware.AdminAuth(jwtManager))
				protected.Get("/appointments", bookingHandler.AdminList)
				protected.Post("/appointments", bookingHandler.AdminCreate)
				protected.Patch("/appointments/status", bookingHandler.AdminUpdateStatus)
				protected.Delete("/appointments/{id}", bookingHandler.AdminDelete)
				protected.Get("/appointments/export", bookingHandler.AdminExport)
				protected.Post("/users", server.AdminCreateUser)
				protected.Patch("/users/{id}/password", server.AdminUpdateUserPassword)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
