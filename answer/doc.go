// Package answer hashes and verifies room answers with argon2id.
//
// Answers are adversarial input on the hot brute-force path: the hash must be
// deliberately slow, salted per answer, and compared in constant time. The
// package enforces a work-factor floor at construction so a misconfigured
// engine cannot silently weaken stored hashes, and encodes digests in PHC
// format so parameters travel with the hash and can be upgraded later.
//
// Unlike a password policy there is no minimum answer length: a one-letter
// riddle answer is legitimate, and the brute-force budget is enforced by the
// lockout guard, not by the hash input.
package answer
