package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/appointment-booking/internal/availability"
	"github.com/iliyamo/appointment-booking/internal/config"
	"github.com/iliyamo/appointment-booking/internal/database"
	"github.com/iliyamo/appointment-booking/internal/handler"
	"github.com/iliyamo/appointment-booking/internal/lock"
	"github.com/iliyamo/appointment-booking/internal/logging"
	"github.com/iliyamo/appointment-booking/internal/middleware"
	"github.com/iliyamo/appointment-booking/internal/observability/metrics"
	"github.com/iliyamo/appointment-booking/internal/queue"
	"github.com/iliyamo/appointment-booking/internal/repository"
	"github.com/iliyamo/appointment-booking/internal/router"
	"github.com/iliyamo/appointment-booking/internal/service"
	"github.com/iliyamo/appointment-booking/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewBookingMetrics(reg)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unreachable; rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	fallback := lock.NewSQLFallback(db)
	locks := lock.NewStore(nativeLocker(cfg.Booking, db, rdb, log), fallback,
		lock.WithMarkerTTL(cfg.Booking.LockMarkerTTL),
		lock.WithLogger(log),
		lock.WithMetrics(m),
	)

	store := repository.NewStore(db)
	engine := availability.NewEngine(cfg.Booking, store, log, m)
	svc := service.NewBookingService(cfg.Booking, store, locks, log, m)

	publisher := queue.NewPublisher(cfg.Queue.URL, log)
	defer publisher.Close()

	if cfg.Queue.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.BookingLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("booking consumer stopped")
			}
		}()
	}
	go worker.NewLockSweeper(fallback, cfg.Booking.LockSweepInterval, log, m).Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	router.RegisterRoutes(e, db, reg)
	router.RegisterBooking(e, handler.NewBookingHandler(engine, svc, publisher, log), cfg.JWTSecret,
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log))

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "lock_backend": cfg.Booking.LockBackend}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

// nativeLocker picks the named-lock backend.  A redis backend without a
// reachable server degrades to the marker table only.
func nativeLocker(cfg config.BookingConfig, db *sql.DB, rdb *redis.Client, log logrus.FieldLogger) lock.Native {
	switch cfg.LockBackend {
	case "redis":
		if rdb == nil {
			log.Warn("LOCK_BACKEND=redis but redis is unreachable; using lock marker table")
		}
		return lock.NewRedisLocker(rdb, cfg.LockMarkerTTL)
	case "local":
		log.Warn("LOCK_BACKEND=local serialises bookings within this process only")
		return lock.NewLocalLocker()
	default:
		return lock.NewMySQLLocker(db)
	}
}
