package models

import (
	"time"
)

// OTPRecord keeps the current one-time code for a phone number and purpose.
type OTPRecord struct {
	BaseModel
	PhoneNumber       string     `gorm:"not null;uniqueIndex:idx_otp_phone_purpose" json:"phone_number"`
	Purpose           string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_otp_phone_purpose" json:"purpose"`
	Code              string     `gorm:"type:varchar(10);not null" json:"-"`
	VerificationToken string     `gorm:"not null;index" json:"verification_token"`
	ExpiresAt         time.Time  `gorm:"not null" json:"expires_at"`
	Attempts          int        `gorm:"not null;default:0" json:"attempts"`
	Verified          bool       `gorm:"not null;default:false" json:"verified"`
	VerifiedAt        *time.Time `json:"verified_at"`
}

// TableName sets the table name to 'otp_records'.
func (OTPRecord) TableName() string { return "otp_records" }
