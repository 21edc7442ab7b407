// Package hmacsign implements the secretroom storage provider with
// HMAC-signed, time-limited URLs against a single object endpoint. The
// serving side verifies the same signature, so no shared session state is
// needed between issuer and server.
package hmacsign

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	secretroom "github.com/internos-labs/secretroom"
)

// ErrInvalidFileRef indicates a file reference that failed validation.
var ErrInvalidFileRef = errors.New("invalid file reference")

const maxFileNameLength = 100

// Config carries the signing secret, the public object endpoint, and the
// signed-URL lifetimes.
type Config struct {
	Secret    string
	BaseURL   string
	ReadTTL   time.Duration
	UploadTTL time.Duration
}

// Signer issues and verifies signed object URLs.
//
// Signer instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Signer struct {
	config Config
}

// NewSigner validates cfg and returns a ready signer.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("signing secret must be at least 16 bytes")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ReadTTL <= 0 {
		cfg.ReadTTL = 5 * time.Minute
	}
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = 10 * time.Minute
	}
	return &Signer{config: cfg}, nil
}

// IssueReadURL returns a GET URL for fileRef that expires after the
// configured read TTL.
func (s *Signer) IssueReadURL(_ context.Context, fileRef string) (string, error) {
	if !validFileRef(fileRef) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileRef, fileRef)
	}

	exp := time.Now().Add(s.config.ReadTTL).Unix()
	sig := s.sign("GET", fileRef, "", exp)
	return fmt.Sprintf("%s/o/%s?exp=%d&sig=%s", s.config.BaseURL, fileRef, exp, sig), nil
}

// IssueUploadURL mints a fresh file reference for fileName and returns a PUT
// URL bound to it and to mimeType. The reference is timestamp/uuid/safe-name
// so uploads never collide and never traverse paths.
func (s *Signer) IssueUploadURL(_ context.Context, fileName, mimeType string) (secretroom.UploadGrant, error) {
	safe := sanitizeFileName(fileName)
	fileRef := fmt.Sprintf("%d/%s/%s", time.Now().Unix(), uuid.NewString(), safe)

	exp := time.Now().Add(s.config.UploadTTL).Unix()
	sig := s.sign("PUT", fileRef, mimeType, exp)
	return secretroom.UploadGrant{
		UploadURL: fmt.Sprintf("%s/o/%s?exp=%d&sig=%s", s.config.BaseURL, fileRef, exp, sig),
		FileRef:   fileRef,
	}, nil
}

// Verify checks a signature presented back to the serving side. mimeType
// must be empty for GET.
func (s *Signer) Verify(method, fileRef, mimeType string, exp int64, sig string) bool {
	if time.Now().Unix() > exp {
		return false
	}
	if !validFileRef(fileRef) {
		return false
	}
	want := s.sign(method, fileRef, mimeType, exp)
	return subtle.ConstantTimeCompare([]byte(want), []byte(sig)) == 1
}

func (s *Signer) sign(method, fileRef, mimeType string, exp int64) string {
	mac := hmac.New(sha256.New, []byte(s.config.Secret))
	mac.Write([]byte(method))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(fileRef))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(mimeType))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// sanitizeFileName reduces a caller-supplied name to a safe path segment:
// ASCII letters, digits, dot, dash, underscore. Anything else becomes a
// dash. Names that sanitize to nothing fall back to "file".
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxFileNameLength {
		name = name[:maxFileNameLength]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	out := strings.Trim(b.String(), ".-")
	if out == "" {
		return "file"
	}
	return out
}

// validFileRef accepts only references this signer could have minted:
// timestamp/uuid/safe-name with no empty or dot-only segments.
func validFileRef(fileRef string) bool {
	parts := strings.Split(fileRef, "/")
	if len(parts) != 3 {
		return false
	}
	if _, err := strconv.ParseInt(parts[0], 10, 64); err != nil {
		return false
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return false
	}
	name := parts[2]
	if name == "" || name == "." || name == ".." {
		return false
	}
	return name == sanitizeFileName(name)
}
