package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/auth_service/internal/audit"
	"github.com/Skotchmaster/auth_service/internal/config"
	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/handlers"
	"github.com/Skotchmaster/auth_service/internal/jobs"
	"github.com/Skotchmaster/auth_service/internal/middleware/csrf"
	"github.com/Skotchmaster/auth_service/internal/ratelimit"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/session"
	httpserver "github.com/Skotchmaster/auth_service/internal/transport/http"
	"github.com/Skotchmaster/auth_service/pkg/db"
	"github.com/Skotchmaster/auth_service/pkg/hash"
	"github.com/Skotchmaster/auth_service/pkg/logging"
	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

func main() {
	deactivate := flag.String("deactivate", "", "disable the account with this user id, end its sessions and exit")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPool())
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			log.Error("db close error", "error", err)
		}
	}()
	if err := repo.Migrate(gdb); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	store := repo.New(gdb)
	sessions := session.NewRedisStore(rdb)
	hasher := hash.New(cfg.BcryptCost)
	accessCodec := tokens.NewCodec(tokens.KindAccess, cfg.JWTSecret, cfg.AccessTokenTTL, tokens.WithIssuer(cfg.JWTIssuer))
	refreshCodec := tokens.NewCodec(tokens.KindRefresh, cfg.JWTRefreshSecret, cfg.RefreshTokenTTL, tokens.WithIssuer(cfg.JWTIssuer))

	publisher, mailer, indexer, closeOutbound := outbound(ctx, log, cfg)
	defer closeOutbound()

	auth := (&service.AuthService{
		Users:        store,
		Ledger:       store,
		Sessions:     sessions,
		Hasher:       hasher,
		AccessCodec:  accessCodec,
		RefreshCodec: refreshCodec,
		Mailer:       mailer,
		Events:       publisher,
		StoreTimeout: cfg.StoreTimeout,
	}).Init()
	users := &service.UserService{
		Users:        store,
		Hasher:       hasher,
		Sessions:     auth,
		Events:       publisher,
		StoreTimeout: cfg.StoreTimeout,
	}

	if *deactivate != "" {
		id, err := uuid.Parse(*deactivate)
		if err != nil {
			log.Error("invalid user id", "error", err)
			os.Exit(2)
		}
		if err := users.Deactivate(logging.IntoContext(ctx, log), id); err != nil {
			log.Error("deactivate failed", "user_id", id.String(), "error", err)
			os.Exit(1)
		}
		log.Info("user deactivated", "user_id", id.String())
		return
	}

	var limiter ratelimit.Limiter
	switch cfg.RateLimitBackend {
	case "redis":
		limiter = ratelimit.NewRedis(rdb)
	default:
		mem := ratelimit.NewMemory()
		limiter = mem
		jobs.Start(ctx, log, jobs.RateLimitCleanup{Limiter: mem}, time.Minute, 5*time.Second)
	}
	jobs.Start(ctx, log, jobs.LedgerPurge{Ledger: store, Retention: cfg.LedgerRetention}, cfg.SweepInterval, time.Minute)
	jobs.Start(ctx, log, jobs.CacheReconcile{Cache: sessions, Ledger: store}, cfg.SweepInterval, time.Minute)

	cookies := handlers.Cookies{Secure: cfg.CookieSecure}
	deps := &httpserver.Deps{
		AuthHandler: &handlers.AuthHandler{Auth: auth, Cookies: cookies},
		UserHandler: &handlers.UserHandler{Users: users, Auth: auth, Cookies: cookies},
		AccessCodec: accessCodec,
		Limiter:     limiter,
		Ready: map[string]httpserver.Check{
			"database": func(ctx context.Context) error { return db.Ping(ctx, gdb) },
			"redis":    sessions.Ping,
		},
	}
	if indexer != nil {
		deps.UserHandler.Activity = indexer
	}
	if cfg.CSRFEnabled {
		c := csrf.DefaultConfig()
		c.Secure = cfg.CookieSecure
		c.SessionCookie = handlers.RefreshCookie
		deps.CSRF = &c
	}

	e := httpserver.New(log, deps)
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("http server listening", "addr", cfg.Addr(), "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	log.Info("shutdown complete")
}

// outbound wires Kafka and Elasticsearch when configured and falls back to
// logging otherwise. The returned func closes whatever was opened.
func outbound(ctx context.Context, log *slog.Logger, cfg *config.Config) (events.Publisher, events.Mailer, *audit.Indexer, func()) {
	var (
		publishers events.Multi
		closers    []func() error
		mailer     events.Mailer
		indexer    *audit.Indexer
	)

	if len(cfg.KafkaBrokers) > 0 {
		p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.UserTopic)
		m := events.NewKafkaMailer(cfg.KafkaBrokers, cfg.EmailTopic, cfg.FrontendURL)
		publishers = append(publishers, p)
		mailer = m
		closers = append(closers, p.Close, m.Close)
	} else {
		log.Warn("KAFKA_BROKERS not set, mail is logged instead of sent")
		mailer = events.NewLogMailer(cfg.FrontendURL, !cfg.IsProduction())
	}

	if cfg.ESURL != "" {
		es, err := audit.NewClient(ctx, audit.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword, Index: cfg.ESIndex})
		if err != nil {
			log.Warn("elasticsearch unavailable, activity log disabled", "error", err)
		} else {
			indexer = audit.NewIndexer(es, cfg.ESIndex)
			if err := indexer.EnsureIndex(ctx); err != nil {
				log.Warn("elasticsearch index setup failed", "index", cfg.ESIndex, "error", err)
			}
			publishers = append(publishers, indexer)
		}
	}

	var publisher events.Publisher = events.Noop{}
	if len(publishers) > 0 {
		publisher = publishers
	}
	return publisher, mailer, indexer, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Error("outbound close error", "error", err)
			}
		}
	}
}
