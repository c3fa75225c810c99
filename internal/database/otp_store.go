package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/clinic/internal/models"
	"github.com/example/clinic/internal/otp"
)

// OTPStore persists OTP records in Postgres through gorm. The unique index on
// (phone_number, purpose) keeps one live record per pair.
type OTPStore struct {
	db *gorm.DB
}

// NewOTPStore wraps a migrated gorm connection.
func NewOTPStore(db *gorm.DB) *OTPStore {
	return &OTPStore{db: db}
}

func (s *OTPStore) Upsert(ctx context.Context, rec *otp.Record) error {
	row := models.OTPRecord{
		PhoneNumber:       rec.PhoneNumber,
		Purpose:           rec.Purpose.String(),
		Code:              rec.Code,
		VerificationToken: rec.VerificationToken,
		ExpiresAt:         rec.ExpiresAt,
		Attempts:          0,
		Verified:          false,
	}
	row.CreatedAt = rec.CreatedAt
	row.UpdatedAt = rec.CreatedAt

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "phone_number"}, {Name: "purpose"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"code", "verification_token", "expires_at", "attempts",
			"verified", "verified_at", "created_at", "updated_at",
		}),
	}).Create(&row).Error
}

func (s *OTPStore) Find(ctx context.Context, phone string, purpose otp.Purpose, token string) (*otp.Record, error) {
	var row models.OTPRecord
	err := s.issuance(ctx, phone, purpose, token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, otp.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toRecord(&row), nil
}

func (s *OTPStore) IncrementAttempts(ctx context.Context, phone string, purpose otp.Purpose, token string, max int) (int, error) {
	var attempts []int
	res := s.db.WithContext(ctx).Raw(
		`UPDATE otp_records SET attempts = attempts + 1, updated_at = ?
		 WHERE phone_number = ? AND purpose = ? AND verification_token = ? AND attempts < ?
		 RETURNING attempts`,
		time.Now(), phone, purpose.String(), token, max,
	).Scan(&attempts)
	if res.Error != nil {
		return 0, res.Error
	}
	if len(attempts) == 1 {
		return attempts[0], nil
	}

	// Nothing matched: either the issuance is gone or it is already at max.
	var count int64
	if err := s.issuance(ctx, phone, purpose, token).Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, otp.ErrNotFound
	}
	return max, otp.ErrAttemptLimit
}

func (s *OTPStore) MarkVerified(ctx context.Context, phone string, purpose otp.Purpose, token string, max int, at time.Time) error {
	res := s.issuance(ctx, phone, purpose, token).
		Where("verified = ? AND attempts < ? AND expires_at >= ?", false, max, at).
		Updates(map[string]interface{}{
			"verified":    true,
			"verified_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return otp.ErrConflict
	}
	return nil
}

func (s *OTPStore) Delete(ctx context.Context, phone string, purpose otp.Purpose) error {
	return s.db.WithContext(ctx).
		Where("phone_number = ? AND purpose = ?", phone, purpose.String()).
		Delete(&models.OTPRecord{}).Error
}

func (s *OTPStore) DeleteIssuance(ctx context.Context, phone string, purpose otp.Purpose, token string) error {
	return s.issuance(ctx, phone, purpose, token).Delete(&models.OTPRecord{}).Error
}

func (s *OTPStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.OTPRecord{})
	return res.RowsAffected, res.Error
}

func (s *OTPStore) issuance(ctx context.Context, phone string, purpose otp.Purpose, token string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.OTPRecord{}).
		Where("phone_number = ? AND purpose = ? AND verification_token = ?", phone, purpose.String(), token)
}

func toRecord(row *models.OTPRecord) *otp.Record {
	return &otp.Record{
		PhoneNumber:       row.PhoneNumber,
		Purpose:           otp.Purpose(row.Purpose),
		Code:              row.Code,
		VerificationToken: row.VerificationToken,
		ExpiresAt:         row.ExpiresAt,
		Attempts:          row.Attempts,
		Verified:          row.Verified,
		VerifiedAt:        row.VerifiedAt,
		CreatedAt:         row.CreatedAt,
	}
}
