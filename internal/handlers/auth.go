package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/clinic/internal/config"
	"github.com/example/clinic/internal/database"
	"github.com/example/clinic/internal/models"
	"github.com/example/clinic/internal/otp"
	"github.com/example/clinic/internal/utils"
)

// UserStore is the account storage the auth endpoints need.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, phone, hash string) error
}

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	users UserStore
	cfg   *config.Config
	log   zerolog.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users UserStore, cfg *config.Config, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{users: users, cfg: cfg, log: log}
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	UserType  string `json:"user_type"`
	Grant     string `json:"grant"`
}

// Register creates an account for a phone number that has just passed
// registration OTP verification.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || req.Password == "" || req.FirstName == "" || req.Grant == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}
	if len(req.Password) < 6 {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 6 characters")
	}

	userType := models.UserType(strings.ToLower(strings.TrimSpace(req.UserType)))
	switch userType {
	case "":
		userType = models.UserTypePatient
	case models.UserTypePatient, models.UserTypeDoctor:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "user_type must be patient or doctor")
	}

	if err := h.checkGrant(req.Grant, req.Phone, otp.PurposeRegistration); err != nil {
		return err
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		PasswordHash:  passwordHash,
		UserType:      userType,
		PhoneVerified: true,
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		user.Email = &email
	}

	if err := h.users.Create(c.UserContext(), &user); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			return fiber.NewError(fiber.StatusConflict, "user already exists")
		}
		return err
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.UserType), h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	h.log.Info().Str("user_id", user.ID.String()).Str("user_type", string(user.UserType)).Msg("user registered")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.FindByPhone(c.UserContext(), strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.UserType), h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLogin authenticates an administrator by email.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req adminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.FindByEmail(c.UserContext(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
		}
		return err
	}
	if user.UserType != models.UserTypeAdministrator || !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.UserType), h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{"token": token})
}

// checkGrant accepts a phone grant only for the given phone and purpose.
func (h *AuthHandler) checkGrant(grant, phone string, purpose otp.Purpose) error {
	parsed, err := utils.ParsePhoneGrant(h.cfg.JWTSecret, grant)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired verification grant")
	}
	if parsed.Phone != phone || parsed.Purpose != purpose.String() {
		return fiber.NewError(fiber.StatusForbidden, "verification grant does not match this request")
	}
	return nil
}
