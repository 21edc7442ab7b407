// Command secretroomd serves the secret room HTTP API.
//
// Configuration comes from SECRETROOM_* environment variables. When no Redis
// address is configured the daemon starts an embedded miniredis, which keeps
// local development and CI runs self-contained.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"

	secretroom "github.com/internos-labs/secretroom"
	"github.com/internos-labs/secretroom/httpapi"
	"github.com/internos-labs/secretroom/identity"
	"github.com/internos-labs/secretroom/metrics/export/prometheus"
	"github.com/internos-labs/secretroom/sqlitestore"
	"github.com/internos-labs/secretroom/storage/hmacsign"
)

type daemonConfig struct {
	ListenAddr string `env:"SECRETROOM_LISTEN_ADDR" envDefault:":8080"`
	RedisAddr  string `env:"SECRETROOM_REDIS_ADDR"`
	DBPath     string `env:"SECRETROOM_DB_PATH" envDefault:"secretroom.db"`

	ShareBaseURL string `env:"SECRETROOM_SHARE_BASE_URL" envDefault:"https://internos.app"`
	OriginPepper string `env:"SECRETROOM_ORIGIN_PEPPER,required"`

	NonceTTL         time.Duration `env:"SECRETROOM_NONCE_TTL" envDefault:"2m"`
	LockoutThreshold int           `env:"SECRETROOM_LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutWindow    time.Duration `env:"SECRETROOM_LOCKOUT_WINDOW" envDefault:"15m"`
	LockoutDuration  time.Duration `env:"SECRETROOM_LOCKOUT_DURATION" envDefault:"15m"`

	ObjectSecret  string `env:"SECRETROOM_OBJECT_SECRET,required"`
	ObjectBaseURL string `env:"SECRETROOM_OBJECT_BASE_URL" envDefault:"https://objects.internos.app"`

	TokenMethod   string `env:"SECRETROOM_TOKEN_METHOD" envDefault:"hs256"`
	TokenKey      string `env:"SECRETROOM_TOKEN_KEY,required"`
	TokenIssuer   string `env:"SECRETROOM_TOKEN_ISSUER" envDefault:"internos"`
	TokenAudience string `env:"SECRETROOM_TOKEN_AUDIENCE"`

	MetricsEnabled bool `env:"SECRETROOM_METRICS_ENABLED" envDefault:"true"`
	AuditLog       bool `env:"SECRETROOM_AUDIT_LOG" envDefault:"false"`

	ShutdownGrace time.Duration `env:"SECRETROOM_SHUTDOWN_GRACE" envDefault:"10s"`
}

func main() {
	var cfg daemonConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("secretroomd: parse env: %v", err)
	}

	addr := cfg.RedisAddr
	var embedded *miniredis.Miniredis
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			log.Fatalf("secretroomd: start embedded redis: %v", err)
		}
		embedded = mr
		addr = mr.Addr()
		log.Printf("secretroomd: using embedded redis at %s", addr)
	}
	redisClient := redis.NewClient(&redis.Options{Addr: addr})
	defer func() {
		_ = redisClient.Close()
		if embedded != nil {
			embedded.Close()
		}
	}()

	store, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("secretroomd: open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	signer, err := hmacsign.NewSigner(hmacsign.Config{
		Secret:  cfg.ObjectSecret,
		BaseURL: cfg.ObjectBaseURL,
	})
	if err != nil {
		log.Fatalf("secretroomd: object signer: %v", err)
	}

	verifier, err := identity.NewVerifier(identity.Config{
		SigningMethod: identity.SigningMethod(cfg.TokenMethod),
		Key:           []byte(cfg.TokenKey),
		Issuer:        cfg.TokenIssuer,
		Audience:      cfg.TokenAudience,
	})
	if err != nil {
		log.Fatalf("secretroomd: token verifier: %v", err)
	}

	engineConfig := secretroom.DefaultConfig()
	engineConfig.Nonce.TTL = cfg.NonceTTL
	engineConfig.Lockout.Threshold = cfg.LockoutThreshold
	engineConfig.Lockout.Window = cfg.LockoutWindow
	engineConfig.Lockout.Duration = cfg.LockoutDuration
	engineConfig.Origin.Pepper = cfg.OriginPepper
	engineConfig.Share.BaseURL = cfg.ShareBaseURL

	builder := secretroom.New().
		WithConfig(engineConfig).
		WithRedis(redisClient).
		WithRooms(store).
		WithLedger(store).
		WithLockouts(store).
		WithStorage(signer).
		WithMetricsEnabled(cfg.MetricsEnabled).
		WithLatencyHistograms(cfg.MetricsEnabled)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(secretroom.NewJSONWriterSink(os.Stdout))
	}

	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("secretroomd: build engine: %v", err)
	}
	defer engine.Close()

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(engine, verifier).Handler())
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(engine).Handler())
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("secretroomd: listening on %s", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Printf("secretroomd: received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("secretroomd: serve: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("secretroomd: shutdown: %v", err)
	}
}
