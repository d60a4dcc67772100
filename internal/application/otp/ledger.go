// Package otp issues and checks one-time codes bound to a (voter, purpose) pair.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/securevote-api/internal/domain"
	"github.com/securevote-api/internal/pkg/id"
)

// Outcome is the result of checking a code against the newest challenge.
type Outcome int

const (
	Valid Outcome = iota
	NotFound
	Expired
	Mismatch
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case NotFound:
		return "not_found"
	case Expired:
		return "expired"
	case Mismatch:
		return "mismatch"
	}
	return "unknown"
}

// Err maps a failed outcome to its domain error. Valid maps to nil.
func (o Outcome) Err() error {
	switch o {
	case NotFound:
		return domain.ErrOtpNotFound
	case Expired:
		return domain.ErrOtpExpired
	case Mismatch:
		return domain.ErrOtpMismatch
	}
	return nil
}

const (
	codeMin = 100000
	codeMax = 999999
	// purgeGrace keeps expired rows around for audit before DynamoDB TTL drops them.
	purgeGrace = 24 * time.Hour

	defaultMaxAttempts = 5
)

type challengeStore interface {
	Append(ctx context.Context, c *domain.OtpChallenge) error
	Latest(ctx context.Context, subjectKey string) (*domain.OtpChallenge, error)
	MarkConsumed(ctx context.Context, subjectKey, challengeID string, at time.Time) error
	// RecordFailure counts one wrong code and returns the new total.
	RecordFailure(ctx context.Context, subjectKey, challengeID string) (int, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// LedgerDeps bundles the Ledger's collaborators. SMS may be nil.
type LedgerDeps struct {
	Store       challengeStore
	Mailer      mailer
	SMS         smsSender
	TTL         time.Duration
	SingleUse   bool
	MaxAttempts int // wrong codes allowed per challenge, default 5
	Now         func() time.Time
	NewCode     func() (string, error)
}

// Ledger is the append-only OTP log. Only the newest challenge per
// (subject, purpose) is ever consulted; older codes become unreachable.
type Ledger struct {
	store       challengeStore
	mailer      mailer
	sms         smsSender
	ttl         time.Duration
	singleUse   bool
	maxAttempts int
	now         func() time.Time
	newCode     func() (string, error)
}

func NewLedger(deps LedgerDeps) *Ledger {
	l := &Ledger{
		store:       deps.Store,
		mailer:      deps.Mailer,
		sms:         deps.SMS,
		ttl:         deps.TTL,
		singleUse:   deps.SingleUse,
		maxAttempts: deps.MaxAttempts,
		now:         deps.Now,
		newCode:     deps.NewCode,
	}
	if l.maxAttempts <= 0 {
		l.maxAttempts = defaultMaxAttempts
	}
	if l.ttl <= 0 {
		l.ttl = 5 * time.Minute
	}
	if l.now == nil {
		l.now = func() time.Time { return time.Now().UTC() }
	}
	if l.newCode == nil {
		l.newCode = RandomCode
	}
	return l
}

// RandomCode returns a uniformly random six-digit code in [100000, 999999].
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// Issue sends a fresh code to subject and records it. The code is delivered
// before anything is written; on delivery failure nothing is persisted.
func (l *Ledger) Issue(ctx context.Context, subject domain.EligibleVoter, purpose domain.Flow) (string, error) {
	code, err := l.newCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	subj := "SecureVote OTP for " + strings.ToUpper(string(purpose))
	body := fmt.Sprintf("Your SecureVote OTP is: %s\n\nThis OTP is valid for %d minutes.\n\nIf you did not request it, ignore this email.",
		code, int(l.ttl/time.Minute))
	if err := l.mailer.SendEmail(subject.Email, subj, body); err != nil {
		slog.Error("otp email failed", "voter_id", subject.VoterID, "purpose", purpose, "err", err)
		return "", fmt.Errorf("send otp email: %w", domain.ErrDeliveryFailure)
	}
	if l.sms != nil && subject.Phone != nil && *subject.Phone != "" {
		if err := l.sms.SendSMS(ctx, *subject.Phone, "Your SecureVote OTP is: "+code); err != nil {
			slog.Warn("otp sms failed", "voter_id", subject.VoterID, "err", err)
		}
	}

	now := l.now()
	c := &domain.OtpChallenge{
		SubjectKey:  domain.SubjectKey(subject.VoterID, purpose),
		ChallengeID: id.New(),
		SubjectID:   subject.VoterID,
		Purpose:     purpose,
		CodeHash:    hashCode(code),
		ExpiresAt:   now.Add(l.ttl),
		CreatedAt:   now,
		PurgeAt:     now.Add(l.ttl + purgeGrace).Unix(),
	}
	if err := l.store.Append(ctx, c); err != nil {
		return "", fmt.Errorf("store otp challenge: %w", err)
	}
	return code, nil
}

// Verify checks code against the newest challenge for (subjectID, purpose).
// By default a valid code stays valid until it expires; in single-use mode the
// first Valid consumes it and later checks report Expired. After maxAttempts
// wrong codes the challenge reports Expired until a new one is issued.
func (l *Ledger) Verify(ctx context.Context, subjectID string, purpose domain.Flow, code string) (Outcome, error) {
	c, err := l.store.Latest(ctx, domain.SubjectKey(subjectID, purpose))
	if errors.Is(err, domain.ErrNotFound) {
		return NotFound, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load otp challenge: %w", err)
	}

	now := l.now()
	if now.After(c.ExpiresAt) || (l.singleUse && c.ConsumedAt != nil) || c.Attempts >= l.maxAttempts {
		return Expired, nil
	}
	if subtle.ConstantTimeCompare([]byte(hashCode(strings.TrimSpace(code))), []byte(c.CodeHash)) != 1 {
		n, err := l.store.RecordFailure(ctx, c.SubjectKey, c.ChallengeID)
		if err != nil {
			return 0, fmt.Errorf("record otp failure: %w", err)
		}
		if n >= l.maxAttempts {
			slog.Warn("otp challenge locked", "subject_key", c.SubjectKey, "attempts", n)
		}
		return Mismatch, nil
	}
	if l.singleUse {
		err := l.store.MarkConsumed(ctx, c.SubjectKey, c.ChallengeID, now)
		if errors.Is(err, domain.ErrConflict) {
			return Expired, nil
		}
		if err != nil {
			return 0, fmt.Errorf("consume otp challenge: %w", err)
		}
	}
	return Valid, nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
