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

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"taskdesk.org/internal/audit"
	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/config"
	"taskdesk.org/internal/httpapi"
	"taskdesk.org/internal/migrate"
	"taskdesk.org/internal/obs"
	"taskdesk.org/internal/store/memory"
	"taskdesk.org/internal/store/pg"
	"taskdesk.org/internal/tasks"
	"taskdesk.org/ops/migrations"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Credentials of the account the in-memory store is seeded with; they match
// ops/migrations/seeds.
const (
	devAdminEmail    = "admin@example.com"
	devAdminPassword = "admin123"
)

type stores struct {
	identity auth.Store
	tasks    tasks.Store
	audit    audit.Store
	db       *sql.DB
	close    func() error
}

func main() {
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	obs.SetLevel(cfg.LogLevel)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("open stores")
	}

	var rdb *redis.Client
	revocations := auth.Revocations(auth.NopRevocations{})
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Fatal("parse redis url")
		}
		rdb = redis.NewClient(opts)
		revocations = auth.NewRedisRevocations(rdb)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret,
		auth.WithTTL(cfg.Auth.TokenTTL),
		auth.WithIssuerName(cfg.Auth.Issuer),
	)
	if err != nil {
		log.WithError(err).Fatal("token issuer")
	}
	directory, err := auth.NewDirectory(st.identity)
	if err != nil {
		log.WithError(err).Fatal("directory")
	}
	taskSvc, err := tasks.NewService(st.tasks)
	if err != nil {
		log.WithError(err).Fatal("task service")
	}
	feed := audit.NewFeed()
	recorder := audit.NewRecorder(st.audit,
		audit.WithFeed(feed),
		audit.WithWriteTimeout(cfg.Audit.WriteTimeout),
	)

	api, err := httpapi.New(httpapi.Deps{
		Auth:          auth.NewService(st.identity, issuer, auth.WithRevocations(revocations)),
		Directory:     directory,
		Tasks:         taskSvc,
		Audit:         audit.NewService(st.audit),
		Recorder:      recorder,
		Feed:          feed,
		Ready:         httpapi.ReadyProbe{DB: st.db, Redis: rdb},
		Version:       version,
		CORSOrigins:   cfg.Server.CORSOrigins,
		AuthRateLimit: cfg.Server.AuthRateLimit,
		SecureCookies: cfg.Production(),

		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		log.WithError(err).Fatal("http api")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.WithFields(logrus.Fields{
		"version":     version,
		"addr":        srv.Addr,
		"environment": cfg.Environment,
		"postgres":    st.db != nil,
		"redis":       rdb != nil,
	}).Info("server_starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("server_stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
	recorder.Wait()
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := st.close(); err != nil {
		log.WithError(err).Warn("close stores")
	}
	log.Info("server_stopped")
}

// openStores connects to PostgreSQL when a DSN is configured and falls back to a
// seeded in-memory store otherwise, which is refused in production.
func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.Database.DSN == "" {
		if cfg.Production() {
			return stores{}, errors.New("TASKDESK_PG_DSN is required in production")
		}
		mem := memory.New()
		if _, err := mem.Seed(devAdminEmail, devAdminPassword); err != nil {
			return stores{}, err
		}
		obs.Logger().WithField("admin_email", devAdminEmail).Warn("using in-memory store")
		return stores{
			identity: mem,
			tasks:    mem.Tasks(),
			audit:    mem.Audit(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := pg.Open(ctx, cfg.Database)
	if err != nil {
		return stores{}, err
	}
	if cfg.Database.MigrateOnStart {
		mctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		mgr := migrate.NewManager(db.DB(), migrations.Files, migrations.SchemaDir, migrations.SeedsDir)
		if err := mgr.Up(mctx); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		if err := mgr.Seed(mctx); err != nil {
			_ = db.Close()
			return stores{}, err
		}
	}
	return stores{
		identity: db,
		tasks:    db.Tasks(),
		audit:    db.Audit(),
		db:       db.DB(),
		close:    db.Close,
	}, nil
}
