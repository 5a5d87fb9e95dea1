package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/traininjapan/booking-api/api/swagger"
	"github.com/traininjapan/booking-api/internal/handler"
	internalmiddleware "github.com/traininjapan/booking-api/internal/middleware"
	"github.com/traininjapan/booking-api/internal/repository"
	"github.com/traininjapan/booking-api/internal/service"
	"github.com/traininjapan/booking-api/pkg/cache"
	"github.com/traininjapan/booking-api/pkg/config"
	"github.com/traininjapan/booking-api/pkg/database"
	"github.com/traininjapan/booking-api/pkg/logger"
	"github.com/traininjapan/booking-api/pkg/mail"
	corsmiddleware "github.com/traininjapan/booking-api/pkg/middleware/cors"
	"github.com/traininjapan/booking-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/traininjapan/booking-api/pkg/middleware/requestid"
	"github.com/traininjapan/booking-api/pkg/signing"
)

// @title Train in Japan Booking API
// @version 1.0.0
// @description Course scheduling, capacity, booking and waitlist service for training schools.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, session cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	app, err := buildApp(cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}

	app.notifications.Start(ctx)
	defer app.notifications.Stop()

	if app.sweeper != nil {
		if err := app.sweeper.Start(ctx); err != nil {
			logr.Fatal("failed to start waitlist sweeper", zap.Error(err))
		}
		defer app.sweeper.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	router        *gin.Engine
	notifications *service.NotificationService
	sweeper       *service.WaitlistSweeper
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	courseRepo := repository.NewCourseRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.SessionTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	var mailer mail.Mailer
	if cfg.Notifications.SendGridAPIKey != "" {
		mailer = mail.NewSendGridMailer(cfg.Notifications.SendGridAPIKey, cfg.Notifications.FromName, cfg.Notifications.FromEmail)
	} else {
		mailer = mail.NewLogMailer(logr)
	}
	notifications := service.NewNotificationService(mailer, signing.NewOfferSigner(cfg.Waitlist.ClaimSecret), service.NotificationConfig{
		Enabled:        cfg.Notifications.Enabled,
		Workers:        cfg.Notifications.Workers,
		MaxRetries:     cfg.Notifications.MaxRetries,
		RetryDelay:     cfg.Notifications.RetryDelay,
		RatePerSecond:  cfg.Notifications.RatePerSecond,
		ClaimURLPrefix: cfg.Waitlist.ClaimURLPrefix,
	}, metrics, logr)

	identity := service.NewIdentityService(service.IdentityConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	capacity := service.NewCapacityValidator(courseRepo, locationRepo)
	conflicts := service.NewConflictService(sessionRepo, validate)
	locations := service.NewLocationService(locationRepo, validate, logr)
	instructors := service.NewInstructorService(instructorRepo, validate, logr)
	availability := service.NewAvailabilityService(availabilityRepo, instructors, validate)
	courses := service.NewCourseService(courseRepo, locationRepo, instructorRepo, capacity, db, metrics, validate, logr)
	sessions := service.NewSessionService(courseRepo, scheduleRepo, sessionRepo, conflicts, cacheSvc, db, validate, logr)
	waitlist := service.NewWaitlistService(waitlistRepo, courseRepo, notifications, db, cfg.Waitlist.OfferTTL, metrics, validate, logr)
	bookings := service.NewBookingService(bookingRepo, courseRepo, sessionRepo, sessions, waitlist, cacheSvc, db, metrics, validate, logr)
	exports := service.NewExportService(courseRepo, sessionRepo, bookingRepo, cfg.Exports.MaxRows, logr)

	var sweeper *service.WaitlistSweeper
	if cfg.Waitlist.SweepEnabled {
		s, err := service.NewWaitlistSweeper(waitlist, cfg.Waitlist.SweepSchedule, cfg.Waitlist.SweepTimezone, logr)
		if err != nil {
			return nil, err
		}
		sweeper = s
	}

	deps := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())
	if cfg.RateLimit.Enabled {
		r.Use(ratelimit.Middleware(ratelimit.NewLimiter(cfg.RateLimit.RatePerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)))
	}

	registerRoutes(r, cfg, routeHandlers{
		identity:    identity,
		courses:     handler.NewCourseHandler(courses),
		schedules:   handler.NewScheduleHandler(sessions, conflicts, exports),
		bookings:    handler.NewBookingHandler(bookings),
		waitlist:    handler.NewWaitlistHandler(waitlist),
		locations:   handler.NewLocationHandler(locations),
		instructors: handler.NewInstructorHandler(instructors, availability),
		metrics:     handler.NewMetricsHandler(metrics, notifications, deps),
	})

	return &application{router: r, notifications: notifications, sweeper: sweeper}, nil
}
