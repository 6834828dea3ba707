package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/config"
	"github.com/iliyamo/spacebook/internal/database"
	"github.com/iliyamo/spacebook/internal/handler"
	"github.com/iliyamo/spacebook/internal/logger"
	"github.com/iliyamo/spacebook/internal/middleware"
	"github.com/iliyamo/spacebook/internal/model"
	"github.com/iliyamo/spacebook/internal/notify"
	"github.com/iliyamo/spacebook/internal/queue"
	"github.com/iliyamo/spacebook/internal/repository"
	"github.com/iliyamo/spacebook/internal/repository/memstore"
	"github.com/iliyamo/spacebook/internal/router"
	"github.com/iliyamo/spacebook/internal/service"
)

func newServeCmd() *cobra.Command {
	var (
		migrate  bool
		seedDemo bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, push worker and broker consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.IsProd(), cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := buildApp(ctx, cfg, log, migrate, seedDemo)
			if err != nil {
				return err
			}
			defer a.close()
			return a.run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations on startup (mysql driver)")
	cmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "seed a demo host, guest and space (memory driver)")
	return cmd
}

// preferenceDirectory is what both store drivers provide for lookups.
type preferenceDirectory interface {
	booking.Directory
	notify.Preferences
}

// notificationStore is what both store drivers provide for notifications.
type notificationStore interface {
	notify.Repository
	handler.NotificationStore
}

type app struct {
	cfg config.Config
	log *zap.Logger

	db        *sqlx.DB
	rdb       *redis.Client
	tasks     *asynq.Client
	publisher *service.BookingPublisher

	http       *echo.Echo
	pushWorker *notify.PushWorker
	consumers  []*queue.Consumer
}

func buildApp(ctx context.Context, cfg config.Config, log *zap.Logger, migrate, seedDemo bool) (*app, error) {
	a := &app{cfg: cfg, log: log}
	var checks []handler.HealthCheck

	var (
		store booking.Store
		dir   preferenceDirectory
		inbox notificationStore
	)
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, err
		}
		a.db = db
		if migrate {
			if err := database.Migrate(ctx, db); err != nil {
				a.close()
				return nil, err
			}
		}
		store = repository.NewStore(db)
		dir = repository.NewDirectory(db)
		inbox = repository.NewNotificationRepo(db)
		checks = append(checks, handler.HealthCheck{Name: "mysql", Probe: db.PingContext})
	default:
		mem := memstore.New()
		if seedDemo {
			seed(mem)
			log.Info("seeded demo data", zap.Uint64("host_id", 2), zap.Uint64("guest_id", 1), zap.Uint64("space_id", 1))
		}
		store, dir, inbox = mem, mem, mem
	}

	a.rdb = config.NewRedisClient(cfg.Redis)
	var (
		pusher notify.Pusher
		stream handler.Streamer
	)
	if a.rdb == nil {
		log.Warn("redis unavailable; rate limiting is per process, cache and real-time push are off",
			zap.String("addr", cfg.Redis.Addr))
	} else {
		rdb := a.rdb
		checks = append(checks, handler.HealthCheck{Name: "redis", Probe: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		ps := notify.NewRedisPubSub(rdb)
		stream = ps
		if cfg.Push.Enabled {
			a.tasks = asynq.NewClient(cfg.Redis.AsynqOpt())
			pusher = notify.NewQueuePusher(a.tasks, cfg.Push.Queue, cfg.Push.MaxRetry)
			a.pushWorker = notify.NewPushWorker(cfg.Redis.AsynqOpt(), cfg.Push.Queue, cfg.Push.Concurrency, ps, log)
		} else {
			pusher = ps
		}
	}

	var events booking.EventPublisher
	if cfg.Broker.Enabled {
		a.publisher = service.NewBookingPublisher(cfg.Broker.URL, service.DefaultBuffer, log)
		events = a.publisher
	}

	cache := middleware.NewResponseCache(cfg.Cache, a.rdb)
	orch := booking.NewOrchestrator(store, dir, notify.NewDispatcher(dir, inbox, pusher, log), events, log,
		booking.WithSlotCache(cache))

	if cfg.Broker.Enabled {
		onComment := func(ctx context.Context, ev queue.CommentPostedEvent) error {
			_, err := orch.CommentPosted(ctx, booking.CommentEventFromQueue(ev))
			return err
		}
		a.consumers = append(a.consumers,
			queue.NewCommentConsumer(cfg.Broker.URL, onComment, log),
			queue.NewAuditConsumer(cfg.Broker.URL, cfg.Broker.AuditLog, log))
	}

	a.http = router.New(router.Deps{
		Log:           log,
		JWTSecret:     cfg.JWTSecret,
		RateLimit:     cfg.RateLimit,
		Cache:         cfg.Cache,
		Redis:         a.rdb,
		ResponseCache: cache,
		Booking:       orch,
		Notifications: inbox,
		Stream:        stream,
		StripeSecret:  cfg.Stripe.WebhookSecret,
		Health:        checks,
	})
	return a, nil
}

// run blocks until ctx is cancelled or one component fails, then shuts
// every component down.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	addr := ":" + a.cfg.Port
	g.Go(func() error {
		a.log.Info("listening", zap.String("addr", addr), zap.String("env", a.cfg.Env), zap.String("store", a.cfg.StoreDriver))
		if err := a.http.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.http.Shutdown(shutdownCtx)
	})
	if a.pushWorker != nil {
		g.Go(func() error { return a.pushWorker.Run(gctx) })
	}
	if a.publisher != nil {
		g.Go(func() error { return a.publisher.Run(gctx) })
	}
	for _, c := range a.consumers {
		c := c
		g.Go(func() error { return c.Run(gctx) })
	}

	err := g.Wait()
	a.log.Info("shutdown complete")
	return err
}

func (a *app) close() {
	if a.tasks != nil {
		_ = a.tasks.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func seed(mem *memstore.Store) {
	mem.PutUser(model.User{ID: 1, Role: model.RoleGuest, NotificationsEnabled: true})
	mem.PutUser(model.User{ID: 2, Role: model.RoleHost, NotificationsEnabled: true})
	mem.PutSpace(model.Space{ID: 1, HostID: 2, Title: "Demo studio"})
}
