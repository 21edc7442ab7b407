// Package identity verifies bearer tokens minted by the platform's account
// service and maps them to a [secretroom.CallerIdentity]. The solve path
// never touches this package; only the room CRUD and upload surfaces require
// an authenticated caller.
package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	secretroom "github.com/internos-labs/secretroom"
)

// ErrInvalidToken covers every verification failure: bad signature, expired,
// wrong issuer or audience, malformed claims.
var ErrInvalidToken = errors.New("invalid bearer token")

// SigningMethod defines a public type used by secretroom APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the secret room engine.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 is an exported constant or variable used by the secret room engine.
	MethodHS256 SigningMethod = "hs256"
)

// Config defines a public type used by secretroom APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SigningMethod SigningMethod
	Key           []byte // HS256 secret or ed25519 public key
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Verifier defines a public type used by secretroom APIs.
//
// Verifier instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Verifier struct {
	config Config
}

type accessClaims struct {
	UID  string `json:"uid"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewVerifier describes the newverifier operation and its observable behavior.
//
// NewVerifier may return an error when input validation, dependency calls, or security checks fail.
// NewVerifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Key) == 0 {
			return nil, errors.New("hs256 requires a key")
		}
	case MethodEd25519:
		if _, err := parseEdPublicKey(cfg.Key); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Verifier{config: cfg}, nil
}

// Verify parses and validates a bearer token and returns the caller it
// names. Every failure collapses into [ErrInvalidToken].
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (v *Verifier) Verify(tokenStr string) (secretroom.CallerIdentity, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method().Alg()}),
	}
	if v.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(v.config.Leeway))
	}
	if v.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		options = append(options, jwt.WithAudience(v.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != v.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return v.verifyKey()
	})
	if err != nil {
		return secretroom.CallerIdentity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid || claims.UID == "" {
		return secretroom.CallerIdentity{}, ErrInvalidToken
	}

	return secretroom.CallerIdentity{
		UserID: claims.UID,
		Name:   claims.Name,
	}, nil
}

func (v *Verifier) method() jwt.SigningMethod {
	switch v.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (v *Verifier) verifyKey() (interface{}, error) {
	switch v.config.SigningMethod {
	case MethodHS256:
		return v.config.Key, nil
	default:
		return parseEdPublicKey(v.config.Key)
	}
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
