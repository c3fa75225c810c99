package otp

import (
	"strings"
	"testing"
	"time"
)

func TestNumericCodes_Format(t *testing.T) {
	gen := NewNumericCodes(6)
	sawLeadingZero := false
	for i := 0; i < 2000; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q has length %d, want 6", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
		if code[0] == '0' {
			sawLeadingZero = true
		}
	}
	if !sawLeadingZero {
		t.Error("expected at least one code with a leading zero in 2000 draws")
	}
}

func TestNumericCodes_LengthFallback(t *testing.T) {
	for _, n := range []int{0, 3, 11} {
		if got := NewNumericCodes(n).Length(); got != DefaultCodeLength {
			t.Errorf("NewNumericCodes(%d).Length() = %d, want %d", n, got, DefaultCodeLength)
		}
	}
	if got := NewNumericCodes(8).Length(); got != 8 {
		t.Errorf("Length() = %d, want 8", got)
	}
}

func TestNewVerificationToken_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok := NewVerificationToken()
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestParsePurpose(t *testing.T) {
	tests := []struct {
		in      string
		want    Purpose
		wantErr bool
	}{
		{"", PurposeRegistration, false},
		{"registration", PurposeRegistration, false},
		{" Password-Reset ", PurposePasswordReset, false},
		{"phone-verification", PurposePhoneVerification, false},
		{"login", PurposeLogin, false},
		{"signup", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePurpose(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePurpose(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePurpose(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPurpose_DisplayName(t *testing.T) {
	if got := PurposePhoneVerification.DisplayName(); got != "Phone Verification" {
		t.Errorf("DisplayName() = %q", got)
	}
}

func TestDefaultMessages_Render(t *testing.T) {
	msgs := NewDefaultMessages()

	got := msgs.Render(PurposeRegistration, "482913", 5*time.Minute)
	if got != "Your OTP for registration is 482913. Valid for 5 minutes." {
		t.Errorf("registration message = %q", got)
	}

	got = msgs.Render(PurposeLogin, "000111", 3*time.Minute)
	if !strings.Contains(got, "000111") || !strings.Contains(got, "3 minutes") {
		t.Errorf("login message = %q", got)
	}

	got = DefaultMessages{}.Render(PurposePasswordReset, "123456", 30*time.Second)
	if got != "Your OTP for Password Reset is 123456. Valid for 30 seconds." {
		t.Errorf("fallback message = %q", got)
	}
}

func TestDefaultMessages_ValidityNeverOverstates(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{90 * time.Second, "Valid for 1 minute."},
		{time.Minute, "Valid for 1 minute."},
		{299 * time.Second, "Valid for 4 minutes."},
		{time.Second, "Valid for 1 second."},
		{45 * time.Second, "Valid for 45 seconds."},
	}
	for _, tt := range tests {
		got := NewDefaultMessages().Render(PurposeLogin, "482913", tt.ttl)
		if !strings.HasSuffix(got, tt.want) {
			t.Errorf("ttl %v: got %q, want suffix %q", tt.ttl, got, tt.want)
		}
	}
}

func TestVerifyResult_Message(t *testing.T) {
	r := &VerifyResult{Outcome: OutcomeCodeMismatch, AttemptsRemaining: 2}
	if r.Message() != "Invalid OTP. 2 attempts remaining." {
		t.Errorf("Message() = %q", r.Message())
	}
	if r.MustResend() {
		t.Error("mismatch with attempts left should allow retry")
	}
	r.AttemptsRemaining = 0
	if !r.MustResend() {
		t.Error("mismatch with no attempts left should require resend")
	}
	if OutcomeExpired.String() != "expired" {
		t.Errorf("String() = %q", OutcomeExpired.String())
	}
}
