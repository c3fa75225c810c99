package otp

import (
	"fmt"
	"time"
)

// Outcome classifies a verification attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInvalidRequest
	OutcomeAlreadyVerified
	OutcomeAttemptsExhausted
	OutcomeExpired
	OutcomeCodeMismatch
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccess:           "success",
	OutcomeInvalidRequest:    "invalid_request",
	OutcomeAlreadyVerified:   "already_verified",
	OutcomeAttemptsExhausted: "attempts_exhausted",
	OutcomeExpired:           "expired",
	OutcomeCodeMismatch:      "code_mismatch",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// VerifyRequest carries what the user submitted.
type VerifyRequest struct {
	PhoneNumber       string
	Code              string
	VerificationToken string
	Purpose           Purpose
}

// VerifyResult is the structured outcome of Ledger.Verify.
type VerifyResult struct {
	Outcome Outcome
	// AttemptsRemaining is only meaningful for OutcomeCodeMismatch.
	AttemptsRemaining int
	VerifiedAt        time.Time
}

// OK reports a successful verification.
func (r *VerifyResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// MustResend reports whether the user has to request a new code rather than retype.
func (r *VerifyResult) MustResend() bool {
	switch r.Outcome {
	case OutcomeAttemptsExhausted, OutcomeExpired, OutcomeInvalidRequest:
		return true
	case OutcomeCodeMismatch:
		return r.AttemptsRemaining <= 0
	}
	return false
}

// Message is the user facing text for the outcome.
func (r *VerifyResult) Message() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return "OTP verified successfully"
	case OutcomeInvalidRequest:
		return "Invalid OTP request"
	case OutcomeAlreadyVerified:
		return "OTP already verified"
	case OutcomeAttemptsExhausted:
		return "Maximum attempts reached. Please request a new OTP."
	case OutcomeExpired:
		return "OTP expired. Please request a new one."
	case OutcomeCodeMismatch:
		return fmt.Sprintf("Invalid OTP. %d attempts remaining.", r.AttemptsRemaining)
	}
	return "Failed to verify OTP"
}

// Issuance is returned to the caller after a successful issue or resend.
// It never contains the code.
type Issuance struct {
	VerificationToken string    `json:"verification_token"`
	ExpiresAt         time.Time `json:"expires_at"`
	MessageID         string    `json:"-"`
}
