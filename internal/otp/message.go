package otp

import (
	"fmt"
	"strings"
	"time"
)

// Messages renders the SMS body for a purpose.
type Messages interface {
	Render(purpose Purpose, code string, ttl time.Duration) string
}

// DefaultMessages holds one template per purpose. Templates use {{code}} and
// {{validity}} placeholders; {{validity}} never overstates the TTL.
type DefaultMessages map[Purpose]string

// NewDefaultMessages returns the built-in templates.
func NewDefaultMessages() DefaultMessages {
	return DefaultMessages{
		PurposeRegistration:      "Your OTP for registration is {{code}}. Valid for {{validity}}.",
		PurposePhoneVerification: "Your phone verification code is {{code}}. Valid for {{validity}}.",
		PurposePasswordReset:     "Your password reset code is {{code}}. Valid for {{validity}}. Do not share it with anyone.",
		PurposeLogin:             "Your login code is {{code}}. Valid for {{validity}}.",
	}
}

func (m DefaultMessages) Render(purpose Purpose, code string, ttl time.Duration) string {
	tpl, ok := m[purpose]
	if !ok {
		tpl = fmt.Sprintf("Your OTP for %s is {{code}}. Valid for {{validity}}.", purpose.DisplayName())
	}
	return strings.NewReplacer(
		"{{code}}", code,
		"{{validity}}", validity(ttl),
	).Replace(tpl)
}

func validity(ttl time.Duration) string {
	if ttl < time.Minute {
		return plural(int(ttl/time.Second), "second")
	}
	return plural(int(ttl/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
