// Package otp issues and verifies one-time passcodes bound to a phone number
// and a purpose, and hands delivery to an SMS dispatcher.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultMaxAttempts = 5
)

// Options configures a Ledger. Zero values fall back to the defaults.
type Options struct {
	TTL         time.Duration
	MaxAttempts int
	Codes       CodeGenerator
	Tokens      func() string
	Now         func() time.Time
	Messages    Messages
	Logger      zerolog.Logger
}

// Ledger owns the lifecycle of OTP records.
type Ledger struct {
	store       Store
	dispatcher  Dispatcher
	ttl         time.Duration
	maxAttempts int
	codes       CodeGenerator
	tokens      func() string
	now         func() time.Time
	messages    Messages
	log         zerolog.Logger
}

// NewLedger wires a ledger to its store and dispatcher.
func NewLedger(store Store, dispatcher Dispatcher, opts Options) *Ledger {
	l := &Ledger{
		store:       store,
		dispatcher:  dispatcher,
		ttl:         opts.TTL,
		maxAttempts: opts.MaxAttempts,
		codes:       opts.Codes,
		tokens:      opts.Tokens,
		now:         opts.Now,
		messages:    opts.Messages,
		log:         opts.Logger,
	}
	if l.ttl <= 0 {
		l.ttl = DefaultTTL
	}
	if l.maxAttempts <= 0 {
		l.maxAttempts = DefaultMaxAttempts
	}
	if l.codes == nil {
		l.codes = NewNumericCodes(DefaultCodeLength)
	}
	if l.tokens == nil {
		l.tokens = NewVerificationToken
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.messages == nil {
		l.messages = NewDefaultMessages()
	}
	return l
}

// TTL returns the configured code lifetime.
func (l *Ledger) TTL() time.Duration { return l.ttl }

// MaxAttempts returns the configured attempt ceiling.
func (l *Ledger) MaxAttempts() int { return l.maxAttempts }

// Issue generates a code for (phone, purpose), replaces any prior record and
// sends the code by SMS. If delivery fails the new record is removed again.
func (l *Ledger) Issue(ctx context.Context, phone string, purpose Purpose) (*Issuance, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrPhoneRequired
	}
	if !purpose.Valid() {
		return nil, ErrInvalidPurpose
	}

	code, err := l.codes.Generate()
	if err != nil {
		return nil, internal("generate code", err)
	}

	now := l.now()
	rec := &Record{
		PhoneNumber:       phone,
		Purpose:           purpose,
		Code:              code,
		VerificationToken: l.tokens(),
		ExpiresAt:         now.Add(l.ttl),
		CreatedAt:         now,
	}
	if err := l.store.Upsert(ctx, rec); err != nil {
		return nil, internal("upsert", err)
	}

	delivery := l.dispatcher.Send(ctx, phone, l.messages.Render(purpose, code, l.ttl))
	if !delivery.Success {
		l.log.Warn().
			Str("phone", phone).
			Str("purpose", purpose.String()).
			Str("reason", delivery.Error).
			Str("status_code", delivery.StatusCode).
			Msg("otp delivery failed, rolling back issuance")

		// The caller may already be gone; the rollback must still run.
		rollbackCtx := context.WithoutCancel(ctx)
		if err := l.store.DeleteIssuance(rollbackCtx, phone, purpose, rec.VerificationToken); err != nil {
			l.log.Error().Err(err).Str("phone", phone).Str("purpose", purpose.String()).Msg("otp rollback failed")
			return nil, errors.Join(&DeliveryError{Reason: delivery.Error, StatusCode: delivery.StatusCode}, internal("rollback", err))
		}
		return nil, &DeliveryError{Reason: delivery.Error, StatusCode: delivery.StatusCode}
	}

	l.log.Info().
		Str("phone", phone).
		Str("purpose", purpose.String()).
		Str("message_id", delivery.MessageID).
		Time("expires_at", rec.ExpiresAt).
		Msg("otp issued")

	return &Issuance{
		VerificationToken: rec.VerificationToken,
		ExpiresAt:         rec.ExpiresAt,
		MessageID:         delivery.MessageID,
	}, nil
}

// Verify checks a submitted code. Domain failures are reported in the result;
// the error is non-nil only for persistence faults.
func (l *Ledger) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	phone := strings.TrimSpace(req.PhoneNumber)

	rec, err := l.store.Find(ctx, phone, req.Purpose, req.VerificationToken)
	if errors.Is(err, ErrNotFound) {
		return &VerifyResult{Outcome: OutcomeInvalidRequest}, nil
	}
	if err != nil {
		return nil, internal("find", err)
	}

	if result := l.precheck(rec); result != nil {
		return result, nil
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(req.Code)) != 1 {
		attempts, err := l.store.IncrementAttempts(ctx, phone, req.Purpose, req.VerificationToken, l.maxAttempts)
		switch {
		case errors.Is(err, ErrNotFound):
			return &VerifyResult{Outcome: OutcomeInvalidRequest}, nil
		case errors.Is(err, ErrAttemptLimit):
			return &VerifyResult{Outcome: OutcomeAttemptsExhausted}, nil
		case err != nil:
			return nil, internal("increment attempts", err)
		}
		remaining := l.maxAttempts - attempts
		l.log.Info().
			Str("phone", phone).
			Str("purpose", req.Purpose.String()).
			Int("attempts_remaining", remaining).
			Msg("otp code mismatch")
		return &VerifyResult{Outcome: OutcomeCodeMismatch, AttemptsRemaining: remaining}, nil
	}

	now := l.now()
	err = l.store.MarkVerified(ctx, phone, req.Purpose, req.VerificationToken, l.maxAttempts, now)
	if errors.Is(err, ErrConflict) {
		return l.reclassify(ctx, phone, req)
	}
	if err != nil {
		return nil, internal("mark verified", err)
	}

	l.log.Info().Str("phone", phone).Str("purpose", req.Purpose.String()).Msg("otp verified")
	return &VerifyResult{Outcome: OutcomeSuccess, VerifiedAt: now}, nil
}

// Resend drops whatever record exists for (phone, purpose) and issues a new
// code. The token is accepted but not checked, so a user who lost it can
// still recover by phone and purpose.
func (l *Ledger) Resend(ctx context.Context, phone, token string, purpose Purpose) (*Issuance, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrPhoneRequired
	}
	if !purpose.Valid() {
		return nil, ErrInvalidPurpose
	}

	l.log.Debug().
		Str("phone", phone).
		Str("purpose", purpose.String()).
		Bool("token_supplied", token != "").
		Msg("otp resend requested")

	if err := l.store.Delete(ctx, phone, purpose); err != nil {
		return nil, internal("delete", err)
	}
	return l.Issue(ctx, phone, purpose)
}

// precheck applies the checks that come before the code comparison, in order.
func (l *Ledger) precheck(rec *Record) *VerifyResult {
	switch {
	case rec.Verified:
		return &VerifyResult{Outcome: OutcomeAlreadyVerified}
	case rec.Attempts >= l.maxAttempts:
		return &VerifyResult{Outcome: OutcomeAttemptsExhausted}
	case rec.Expired(l.now()):
		return &VerifyResult{Outcome: OutcomeExpired}
	}
	return nil
}

// reclassify runs after losing a race on MarkVerified.
func (l *Ledger) reclassify(ctx context.Context, phone string, req VerifyRequest) (*VerifyResult, error) {
	rec, err := l.store.Find(ctx, phone, req.Purpose, req.VerificationToken)
	if errors.Is(err, ErrNotFound) {
		return &VerifyResult{Outcome: OutcomeInvalidRequest}, nil
	}
	if err != nil {
		return nil, internal("find", err)
	}
	if result := l.precheck(rec); result != nil {
		return result, nil
	}
	return &VerifyResult{Outcome: OutcomeInvalidRequest}, nil
}
