// Package internal contains helper utilities that are intentionally private
// to secretroom, including origin identifier derivation and nonce token
// generation.
//
// # Sub-packages
//
//   - nonce — Redis-backed single-use solve challenge tokens
//   - lockout — brute-force failure counting and durable lockout escalation
//
// # What this package must NOT do
//
//   - Export types that appear in the public secretroom API.
//   - Be imported by any package outside the secretroom module.
package internal
