package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/lumenboard/lumenboard/platform/go/email"
	"github.com/lumenboard/lumenboard/platform/go/persistence"
)

// Errors returned by the signup service layer.
var (
	ErrInvalidCode  = errors.New("invalid or expired verification code")
	ErrInvalidToken = errors.New("invalid or expired provisioning token")
)

const (
	codeIdentifierPrefix  = "workspace-creation:"
	tokenIdentifierPrefix = "verified:"

	codeTTL  = 10 * time.Minute
	tokenTTL = 30 * time.Minute

	// maxCodeAttempts caps brute-force guessing; the record is removed once
	// the cap is reached, forcing a fresh code.
	maxCodeAttempts = 5
)

// VerificationStore abstracts persistence for short-lived codes and tokens.
type VerificationStore interface {
	Upsert(ctx context.Context, rec persistence.VerificationRecord) error
	Get(ctx context.Context, identifier string) (persistence.VerificationRecord, error)
	Delete(ctx context.Context, identifier string) error
	IncrementAttempts(ctx context.Context, identifier string) (int, error)
}

// Service implements the identity verification flow: issue a 6-digit code to
// an email address, verify it, and exchange the verified code for a
// longer-lived opaque provisioning token.
type Service struct {
	store  VerificationStore
	sender email.Sender
}

// New constructs a Service with required dependencies.
func New(store VerificationStore, sender email.Sender) *Service {
	if store == nil {
		panic("verification store is required")
	}
	if sender == nil {
		panic("email sender is required")
	}
	return &Service{store: store, sender: sender}
}

// SendCode generates a fresh 6-digit code for the email and dispatches it.
// The upsert replaces any earlier code for the same address, so at most one
// code is valid per email at a time. A delivery failure aborts the flow and
// removes the record: a stored code nobody received is only attack surface.
func (s *Service) SendCode(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return fmt.Errorf("email is required")
	}

	code, err := randomCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	identifier := codeIdentifierPrefix + emailAddr
	if err := s.store.Upsert(ctx, persistence.VerificationRecord{
		Identifier: identifier,
		Value:      code,
		ExpiresAt:  time.Now().Add(codeTTL),
	}); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	if err := s.sender.SendVerificationCode(ctx, emailAddr, code); err != nil {
		_ = s.store.Delete(ctx, identifier)
		return fmt.Errorf("dispatch verification code: %w", err)
	}

	return nil
}

// VerifyCode validates the submitted code and, on success, exchanges it for
// an opaque provisioning token stored under "verified:<email>". The code
// record is single-use: it is deleted the moment it verifies.
func (s *Service) VerifyCode(ctx context.Context, emailAddr, code string) (string, error) {
	emailAddr = normalizeEmail(emailAddr)
	identifier := codeIdentifierPrefix + emailAddr

	rec, err := s.store.Get(ctx, identifier)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return "", ErrInvalidCode
		}
		return "", fmt.Errorf("load verification code: %w", err)
	}

	if time.Now().After(rec.ExpiresAt) {
		_ = s.store.Delete(ctx, identifier)
		return "", ErrInvalidCode
	}

	if subtle.ConstantTimeCompare([]byte(rec.Value), []byte(code)) != 1 {
		attempts, incErr := s.store.IncrementAttempts(ctx, identifier)
		if incErr == nil && attempts >= maxCodeAttempts {
			_ = s.store.Delete(ctx, identifier)
		}
		return "", ErrInvalidCode
	}

	if err := s.store.Delete(ctx, identifier); err != nil {
		return "", fmt.Errorf("consume verification code: %w", err)
	}

	token, err := mintToken()
	if err != nil {
		return "", fmt.Errorf("mint provisioning token: %w", err)
	}

	if err := s.store.Upsert(ctx, persistence.VerificationRecord{
		Identifier: tokenIdentifierPrefix + emailAddr,
		Value:      token,
		ExpiresAt:  time.Now().Add(tokenTTL),
	}); err != nil {
		return "", fmt.Errorf("store provisioning token: %w", err)
	}

	return token, nil
}

// CheckToken re-verifies a provisioning token without consuming it. The
// orchestrator calls this at the start of every creation attempt, which lets
// clients retry slug checks and creation without re-sending a code.
func (s *Service) CheckToken(ctx context.Context, emailAddr, token string) error {
	emailAddr = normalizeEmail(emailAddr)

	rec, err := s.store.Get(ctx, tokenIdentifierPrefix+emailAddr)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("load provisioning token: %w", err)
	}

	if time.Now().After(rec.ExpiresAt) {
		_ = s.store.Delete(ctx, tokenIdentifierPrefix+emailAddr)
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(rec.Value), []byte(token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// ConsumeToken deletes the provisioning token once the saga completes.
func (s *Service) ConsumeToken(ctx context.Context, emailAddr string) error {
	return s.store.Delete(ctx, tokenIdentifierPrefix+normalizeEmail(emailAddr))
}

func normalizeEmail(emailAddr string) string {
	return strings.ToLower(strings.TrimSpace(emailAddr))
}

// randomCode returns a uniformly random 6-digit numeric code.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// mintToken returns a 256-bit opaque token as hex.
func mintToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
