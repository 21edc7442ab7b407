//go:build integration
// +build integration

package test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	secretroom "github.com/internos-labs/secretroom"
	"github.com/internos-labs/secretroom/sqlitestore"
)

const integrationAnswer = "open sesame"

func integrationConfig() secretroom.Config {
	cfg := secretroom.DefaultConfig()
	cfg.Origin.Pepper = "integration-pepper-0123456789abcdef"
	cfg.Lockout.Threshold = 3
	cfg.Lockout.Window = time.Minute
	cfg.Lockout.Duration = 5 * time.Minute
	// Floor-level argon2id parameters keep the suite fast.
	cfg.Answer.Memory = 8 * 1024
	cfg.Answer.Time = 1
	cfg.Answer.Parallelism = 1
	cfg.Answer.KeyLength = 16
	return cfg
}

func newIntegrationEngine(t *testing.T, rdb *redis.Client) (*secretroom.Engine, *sqlitestore.Store) {
	t.Helper()

	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "rooms.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	engine, err := secretroom.New().
		WithConfig(integrationConfig()).
		WithRedis(rdb).
		WithRooms(store).
		WithLedger(store).
		WithLockouts(store).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store
}

func newIntegrationRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func seedRoom(t *testing.T, engine *secretroom.Engine, policy secretroom.Policy) int64 {
	t.Helper()

	owner := secretroom.CallerIdentity{UserID: "owner-1", Name: "owner"}
	res, err := engine.CreateRoom(context.Background(), owner, secretroom.CreateRoomInput{
		Title:      "integration room",
		Answer:     integrationAnswer,
		Policy:     policy,
		Visibility: secretroom.VisibilityPrivate,
		Content:    secretroom.ContentSpec{Kind: secretroom.ContentText, Text: "the secret"},
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return res.ID
}
