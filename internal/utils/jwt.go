package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const phoneGrantAudience = "phone-grant"

// Claims is the payload of an account access token.
type Claims struct {
	UserID   string `json:"user_id"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for the provided user ID.
func GenerateToken(secret string, userID uuid.UUID, userType string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:   userID.String(),
		UserType: userType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates an access token and returns its claims. Phone grants
// are rejected.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc(secret), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	for _, aud := range claims.Audience {
		if aud == phoneGrantAudience {
			return nil, jwt.ErrTokenInvalidAudience
		}
	}
	return claims, nil
}

// PhoneGrant proves that a phone number passed OTP verification for a purpose.
type PhoneGrant struct {
	Phone   string `json:"phone"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// GeneratePhoneGrant signs a short lived grant for a verified phone number.
func GeneratePhoneGrant(secret, phone, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	grant := &PhoneGrant{
		Phone:   phone,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   phone,
			Audience:  jwt.ClaimStrings{phoneGrantAudience},
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, grant).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParsePhoneGrant validates a grant and returns it.
func ParsePhoneGrant(secret, tokenString string) (*PhoneGrant, error) {
	grant := &PhoneGrant{}
	token, err := jwt.ParseWithClaims(tokenString, grant, keyFunc(secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(phoneGrantAudience),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || grant.Phone == "" {
		return nil, errors.New("invalid phone grant")
	}
	return grant, nil
}

func keyFunc(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}
}
