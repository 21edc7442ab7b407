package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testHSKey = "0123456789abcdef0123456789abcdef"

func mintHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testHSKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"uid":  "user-7",
		"name": "ada",
		"iss":  "internos-accounts",
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
}

func newHSVerifier(t *testing.T) *Verifier {
	t.Helper()

	v, err := NewVerifier(Config{
		SigningMethod: MethodHS256,
		Key:           []byte(testHSKey),
		Issuer:        "internos-accounts",
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestVerifyValidToken(t *testing.T) {
	v := newHSVerifier(t)

	caller, err := v.Verify(mintHS256(t, baseClaims()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if caller.UserID != "user-7" || caller.Name != "ada" {
		t.Fatalf("caller = %+v", caller)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := newHSVerifier(t)

	claims := baseClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	if _, err := v.Verify(mintHS256(t, claims)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	v := newHSVerifier(t)

	claims := baseClaims()
	claims["iss"] = "somewhere-else"

	if _, err := v.Verify(mintHS256(t, claims)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsMissingUID(t *testing.T) {
	v := newHSVerifier(t)

	claims := baseClaims()
	delete(claims, "uid")

	if _, err := v.Verify(mintHS256(t, claims)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	v := newHSVerifier(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims())
	signed, err := token.SignedString([]byte("another-0123456789abcdef-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := v.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsAlgorithmConfusion(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	v, err := NewVerifier(Config{
		SigningMethod: MethodEd25519,
		Key:           pub,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	// Proper EdDSA token verifies.
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, baseClaims())
	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := v.Verify(signed); err != nil {
		t.Fatalf("verify eddsa: %v", err)
	}

	// HS256 token signed with the public key bytes must be rejected.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims())
	forgedStr, err := forged.SignedString([]byte(pub))
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}
	if _, err := v.Verify(forgedStr); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("forged err = %v, want ErrInvalidToken", err)
	}
}

func TestNewVerifierValidation(t *testing.T) {
	if _, err := NewVerifier(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected missing key rejection")
	}
	if _, err := NewVerifier(Config{SigningMethod: "rsa", Key: []byte(testHSKey)}); err == nil {
		t.Fatal("expected unsupported method rejection")
	}
	if _, err := NewVerifier(Config{
		SigningMethod: MethodHS256,
		Key:           []byte(testHSKey),
		Leeway:        5 * time.Minute,
	}); err == nil {
		t.Fatal("expected excessive leeway rejection")
	}
}
