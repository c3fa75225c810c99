package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/example/clinic/internal/models"
)

// ErrUserNotFound is returned when no account matches a lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when creating an account whose phone or email is taken.
var ErrUserExists = errors.New("user already exists")

// UserRepository reads and writes clinic accounts.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.first(ctx, "phone = ?", phone)
}

// Create inserts user, failing with ErrUserExists when the phone is already registered.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("phone = ?", user.Phone).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserExists
	}
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserExists
	}
	return err
}

// UpdatePassword replaces the password hash of the account with phone.
func (r *UserRepository) UpdatePassword(ctx context.Context, phone, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("phone = ?", phone).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkPhoneVerified flags the account with phone as verified. Missing accounts are ignored.
func (r *UserRepository) MarkPhoneVerified(ctx context.Context, phone string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("phone = ?", phone).Update("phone_verified", true).Error
}

func (r *UserRepository) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
