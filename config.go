package secretroom

import (
	"errors"
	"time"
)

// Config defines a public type used by secretroom APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Nonce   NonceConfig
	Lockout LockoutConfig
	Answer  AnswerConfig
	Origin  OriginConfig
	Share   ShareConfig
	Listing ListingConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
NONCE CONFIG
====================================
*/

// NonceConfig tunes the single-use solve challenge tokens.
type NonceConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig tunes brute-force protection. Window is the trailing period
// over which consecutive failures are counted; Duration is how long a lockout
// blocks once the threshold is crossed. The source system used a single knob
// for both; they default to the same value here but may be set independently.
type LockoutConfig struct {
	RedisPrefix string
	Threshold   int
	Window      time.Duration
	Duration    time.Duration
}

/*
====================================
ANSWER CONFIG
====================================
*/

// AnswerConfig carries the argon2id work parameters for answer hashing.
type AnswerConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnSolve bool
}

// OriginConfig holds the server-side secret used to derive non-reversible
// origin identifiers. Pepper must be set and must stay stable across restarts
// or lockout correlation breaks.
type OriginConfig struct {
	Pepper string
}

// ShareConfig controls share-URL generation for created rooms.
type ShareConfig struct {
	BaseURL string
}

// ListingConfig tunes the public room listing surface.
type ListingConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	StatsWindow     time.Duration
}

// AuditConfig defines a public type used by secretroom APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by secretroom APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration the engine starts from.
// Callers may adjust individual fields before passing the result to
// [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Nonce: NonceConfig{
			RedisPrefix: "sn",
			TTL:         2 * time.Minute,
		},
		Lockout: LockoutConfig{
			RedisPrefix: "sl",
			Threshold:   5,
			Window:      15 * time.Minute,
			Duration:    15 * time.Minute,
		},
		Answer: AnswerConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnSolve: false,
		},
		Share: ShareConfig{
			BaseURL: "https://internos.app",
		},
		Listing: ListingConfig{
			DefaultPageSize: 20,
			MaxPageSize:     50,
			StatsWindow:     time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate checks the configuration for values the engine cannot operate
// with. It is called by [Builder.Build] before any dependency is constructed.
func (c Config) Validate() error {
	if c.Nonce.TTL <= 0 {
		return errors.New("Nonce TTL must be positive")
	}
	if c.Nonce.TTL > time.Hour {
		return errors.New("Nonce TTL must not exceed one hour")
	}
	if c.Lockout.Threshold < 2 {
		return errors.New("Lockout Threshold must be at least 2")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be positive")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be positive")
	}
	if c.Origin.Pepper == "" {
		return errors.New("Origin Pepper must be set")
	}
	if len(c.Origin.Pepper) < 16 {
		return errors.New("Origin Pepper must be at least 16 bytes")
	}
	if c.Listing.DefaultPageSize <= 0 || c.Listing.MaxPageSize <= 0 {
		return errors.New("Listing page sizes must be positive")
	}
	if c.Listing.DefaultPageSize > c.Listing.MaxPageSize {
		return errors.New("Listing DefaultPageSize must not exceed MaxPageSize")
	}
	if c.Listing.StatsWindow <= 0 {
		return errors.New("Listing StatsWindow must be positive")
	}
	return nil
}

// ConfigWarning flags a configuration value that is valid but weaker than the
// recommended posture.
type ConfigWarning struct {
	Code    string
	Message string
}

// ConfigWarnings defines a public type used by secretroom APIs.
type ConfigWarnings []ConfigWarning

// Codes returns the warning codes in emission order.
func (w ConfigWarnings) Codes() []string {
	out := make([]string, 0, len(w))
	for _, warning := range w {
		out = append(out, warning.Code)
	}
	return out
}

// Lint reports posture warnings for values [Config.Validate] accepts but that
// weaken the deployment. It never fails: callers decide whether a warning is
// acceptable for their environment.
func (c Config) Lint() ConfigWarnings {
	var warnings ConfigWarnings
	add := func(code, message string) {
		warnings = append(warnings, ConfigWarning{Code: code, Message: message})
	}

	if c.Nonce.TTL > 10*time.Minute {
		add("long_nonce_ttl", "nonce TTL above 10m widens the replay window for leaked grants")
	}
	if c.Lockout.Threshold > 10 {
		add("high_lockout_threshold", "lockout threshold above 10 allows long guessing runs per origin")
	}
	if c.Lockout.Duration < c.Lockout.Window {
		add("short_lockout_duration", "lockout duration below the counting window lets an origin resume before its failures age out")
	}
	if c.Answer.Memory < 65536 {
		add("weak_answer_hash", "argon2id memory below 64 MiB is below the recommended interactive cost")
	}
	if len(c.Origin.Pepper) > 0 && len(c.Origin.Pepper) < 32 {
		add("short_origin_pepper", "origin pepper below 32 bytes weakens origin hash unlinkability")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "no audit trail will be recorded for solve attempts or lockouts")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", "a slow audit sink can stall solve requests when the buffer fills")
	}
	return warnings
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}
