package secretroom

import (
	"errors"

	"github.com/internos-labs/secretroom/answer"
	"github.com/internos-labs/secretroom/internal/lockout"
	"github.com/internos-labs/secretroom/internal/nonce"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by secretroom APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	rooms    RoomProvider
	ledger   AttemptLedger
	lockouts LockoutProvider
	storage  StorageProvider

	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithRooms describes the withrooms operation and its observable behavior.
//
// WithRooms may return an error when input validation, dependency calls, or security checks fail.
// WithRooms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRooms(rp RoomProvider) *Builder {
	b.rooms = rp
	return b
}

// WithLedger describes the withledger operation and its observable behavior.
//
// WithLedger may return an error when input validation, dependency calls, or security checks fail.
// WithLedger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLedger(al AttemptLedger) *Builder {
	b.ledger = al
	return b
}

// WithLockouts describes the withlockouts operation and its observable behavior.
//
// WithLockouts may return an error when input validation, dependency calls, or security checks fail.
// WithLockouts does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLockouts(lp LockoutProvider) *Builder {
	b.lockouts = lp
	return b
}

// WithStorage describes the withstorage operation and its observable behavior.
//
// WithStorage may return an error when input validation, dependency calls, or security checks fail.
// WithStorage does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStorage(sp StorageProvider) *Builder {
	b.storage = sp
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.rooms == nil {
		return nil, errors.New("room provider required")
	}
	if b.ledger == nil {
		return nil, errors.New("attempt ledger required")
	}
	if b.lockouts == nil {
		return nil, errors.New("lockout provider required")
	}

	engine := &Engine{
		config:   cfg,
		redis:    b.redis,
		rooms:    b.rooms,
		ledger:   b.ledger,
		lockouts: b.lockouts,
		storage:  b.storage,
	}

	engine.nonces = nonce.NewStore(b.redis, cfg.Nonce.RedisPrefix, cfg.Nonce.TTL)
	engine.guard = lockout.NewGuard(b.redis, b.ledger, b.lockouts, lockout.Config{
		RedisPrefix: cfg.Lockout.RedisPrefix,
		Threshold:   cfg.Lockout.Threshold,
		Window:      cfg.Lockout.Window,
		Duration:    cfg.Lockout.Duration,
	})
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ah, err := answer.NewHasher(answer.Config{
		Memory:      cfg.Answer.Memory,
		Time:        cfg.Answer.Time,
		Parallelism: cfg.Answer.Parallelism,
		SaltLength:  cfg.Answer.SaltLength,
		KeyLength:   cfg.Answer.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.answerHash = ah

	b.built = true

	return engine, nil
}
