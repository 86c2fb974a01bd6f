package main

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "roomshare/internal/adapters/http_server"
	"roomshare/internal/adapters/maps"
	"roomshare/internal/adapters/notify"
	"roomshare/internal/adapters/observability"
	redisad "roomshare/internal/adapters/redis"
	"roomshare/internal/app"
	"roomshare/internal/domain"
	"roomshare/internal/shared"
	"roomshare/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("open table store failed")
	}
	defer func() { _ = closeStore() }()

	// cache is optional; without Redis every read goes to the store
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rc.Ping(pctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, caching disabled")
		} else {
			cache = rc
			defer rc.Close()
		}
		cancel()
	}

	notifier, err := notify.New(cfg.NotifyURL, cfg.NotifyToken, cfg.RemoteTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("notification client")
	}

	var mc domain.MapsClient
	if cfg.MapsKey != "" {
		c, err := maps.New(cfg.MapsBase, cfg.MapsKey, 5, cfg.RemoteTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("maps client")
		}
		mc = c
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn().Msg("JWT_SECRET is empty; using a random secret, sessions end on restart")
	}
	auth, err := server.NewAuth(secret, cfg.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("auth")
	}

	repos := app.NewRepositories(store, cfg.Tabs, cache, cfg.CacheTTL)
	svc := app.NewServices(repos, notifier, mc, cfg.RemoteTimeout)

	// http
	srv := server.New(cfg.RemoteTimeout + 10*time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Accounts:  svc.Accounts,
		Auth:      auth,
		Props:     svc.Properties,
		Favorites: svc.Favorites,
		Conv:      svc.Conversations,
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.Backend).Bool("cache", cache != nil).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func randomSecret() string {
	var b [32]byte
	if _, err := crand.Read(b[:]); err != nil {
		log.Fatal().Err(err).Msg("crypto/rand failed")
	}
	return hex.EncodeToString(b[:])
}
