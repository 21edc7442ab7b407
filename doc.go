// Package secretroom provides a solve engine for answer-gated secret rooms:
// single-use solve nonces, non-reversible origin lockouts, argon2id answer
// verification, and once/limited/unlimited disclosure policies.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// secretroom is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (SolveResult, SolveMeta, MetricsSnapshot, etc.). Coordination machinery — nonce
// storage, lockout counting, origin hashing — lives under internal/ and is never
// exported. Durable storage, object storage, and caller identity are supplied by the
// embedding application through the provider interfaces in this package.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Record or log a raw client address anywhere; only the peppered origin hash
//     leaves the engine.
//   - Let a caller distinguish a wrong answer from a room that does not exist.
//
// # Performance contract
//
// Solve is the hot path. Its cost is dominated by one argon2id verification; around it
// the engine performs one Redis round-trip for the nonce, at most two for the lockout
// counter, and the durable writes the disclosure policy requires.
package secretroom
