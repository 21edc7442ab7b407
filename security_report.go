package secretroom

import "time"

// SecurityReport is a point-in-time summary of the engine's security posture,
// derived entirely from configuration. It carries no secrets and is safe to
// log or expose on an operator surface.
type SecurityReport struct {
	NonceTTL          time.Duration
	LockoutThreshold  int
	LockoutWindow     time.Duration
	LockoutDuration   time.Duration
	Answer            AnswerConfigReport
	UpgradeOnSolve    bool
	OriginPepperSet   bool
	AuditEnabled      bool
	AuditNonBlocking  bool
	MetricsEnabled    bool
	LatencyHistograms bool
	StorageConfigured bool
}

// AnswerConfigReport mirrors the active argon2id parameters.
type AnswerConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport describes the securityreport operation and its observable behavior.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		NonceTTL:         e.config.Nonce.TTL,
		LockoutThreshold: e.config.Lockout.Threshold,
		LockoutWindow:    e.config.Lockout.Window,
		LockoutDuration:  e.config.Lockout.Duration,
		Answer: AnswerConfigReport{
			Memory:      e.config.Answer.Memory,
			Time:        e.config.Answer.Time,
			Parallelism: e.config.Answer.Parallelism,
			SaltLength:  e.config.Answer.SaltLength,
			KeyLength:   e.config.Answer.KeyLength,
		},
		UpgradeOnSolve:    e.config.Answer.UpgradeOnSolve,
		OriginPepperSet:   e.config.Origin.Pepper != "",
		AuditEnabled:      e.config.Audit.Enabled,
		AuditNonBlocking:  !e.config.Audit.Enabled || e.config.Audit.DropIfFull,
		MetricsEnabled:    e.config.Metrics.Enabled,
		LatencyHistograms: e.config.Metrics.Enabled && e.config.Metrics.EnableLatencyHistograms,
		StorageConfigured: e.storage != nil,
	}
}
