package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestToken_RoundTrip(t *testing.T) {
	id := uuid.New()
	tok, err := GenerateToken("secret", id, "administrator", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseToken("secret", tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != id.String() || claims.UserType != "administrator" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseToken("other", tok); err == nil {
		t.Error("expected signature error")
	}
}

func TestToken_Expired(t *testing.T) {
	tok, err := GenerateToken("secret", uuid.New(), "patient", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken("secret", tok); err == nil {
		t.Error("expected expiry error")
	}
}

func TestPhoneGrant_RoundTrip(t *testing.T) {
	tok, exp, err := GeneratePhoneGrant("secret", "+8801711000000", "registration", 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 14*time.Minute {
		t.Errorf("expiry %v too early", exp)
	}

	grant, err := ParsePhoneGrant("secret", tok)
	if err != nil {
		t.Fatalf("ParsePhoneGrant: %v", err)
	}
	if grant.Phone != "+8801711000000" || grant.Purpose != "registration" {
		t.Errorf("grant = %+v", grant)
	}

	if _, err := ParseToken("secret", tok); err == nil {
		t.Error("a phone grant must not pass as an access token")
	}
}

func TestPhoneGrant_RejectsAccessToken(t *testing.T) {
	tok, err := GenerateToken("secret", uuid.New(), "patient", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParsePhoneGrant("secret", tok); err == nil {
		t.Error("an access token must not pass as a phone grant")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "s3cret!") || CheckPassword(hash, "wrong") {
		t.Error("bcrypt round trip failed")
	}
}
