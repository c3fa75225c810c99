package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/clinic/internal/database"
	"github.com/example/clinic/internal/otp"
	"github.com/example/clinic/internal/utils"
)

type resetPasswordRequest struct {
	Phone       string `json:"phone"`
	Grant       string `json:"grant"`
	NewPassword string `json:"new_password"`
}

// ResetPassword sets a new password once the phone has passed a
// password-reset OTP verification.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || req.Grant == "" || req.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phone, grant and new_password are required")
	}

	if len(req.NewPassword) < 6 {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 6 characters")
	}

	if err := h.checkGrant(req.Grant, req.Phone, otp.PurposePasswordReset); err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	if err := h.users.UpdatePassword(c.UserContext(), req.Phone, hash); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update password")
	}

	h.log.Info().Str("phone", req.Phone).Msg("password reset")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "password updated successfully",
	})
}
