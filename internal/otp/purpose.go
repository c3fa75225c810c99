package otp

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Purpose scopes an OTP record so one phone can run independent flows.
type Purpose string

const (
	PurposeRegistration      Purpose = "registration"
	PurposePhoneVerification Purpose = "phone-verification"
	PurposePasswordReset     Purpose = "password-reset"
	PurposeLogin             Purpose = "login"
)

// Purposes lists every accepted purpose.
var Purposes = []Purpose{
	PurposeRegistration,
	PurposePhoneVerification,
	PurposePasswordReset,
	PurposeLogin,
}

// ParsePurpose maps a request value to a Purpose. An empty value means registration.
func ParsePurpose(value string) (Purpose, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return PurposeRegistration, nil
	}
	p := Purpose(value)
	if !p.Valid() {
		return "", ErrInvalidPurpose
	}
	return p, nil
}

// Valid reports whether p belongs to the closed purpose set.
func (p Purpose) Valid() bool {
	for _, known := range Purposes {
		if p == known {
			return true
		}
	}
	return false
}

func (p Purpose) String() string {
	return string(p)
}

// DisplayName returns a human readable form, e.g. "Password Reset".
func (p Purpose) DisplayName() string {
	words := strings.ReplaceAll(string(p), "-", " ")
	return cases.Title(language.English).String(words)
}
