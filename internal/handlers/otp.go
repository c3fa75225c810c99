package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/clinic/internal/otp"
	"github.com/example/clinic/internal/ratelimit"
	"github.com/example/clinic/internal/utils"
)

// PhoneVerifier flags an account's phone as verified.
type PhoneVerifier interface {
	MarkPhoneVerified(ctx context.Context, phone string) error
}

// OTPConfig holds what the OTP endpoints need besides the ledger.
type OTPConfig struct {
	GrantSecret string
	GrantTTL    time.Duration
	Limiter     *ratelimit.Limiter
	Phones      PhoneVerifier
}

// OTPHandler exposes issue, verify and resend over HTTP.
type OTPHandler struct {
	ledger *otp.Ledger
	cfg    OTPConfig
	log    zerolog.Logger
}

func NewOTPHandler(ledger *otp.Ledger, cfg OTPConfig, log zerolog.Logger) *OTPHandler {
	return &OTPHandler{ledger: ledger, cfg: cfg, log: log}
}

type sendOTPRequest struct {
	Phone             string `json:"phone"`
	Purpose           string `json:"purpose"`
	VerificationToken string `json:"verification_token"`
}

type verifyOTPRequest struct {
	Phone             string `json:"phone"`
	Code              string `json:"code"`
	VerificationToken string `json:"verification_token"`
	Purpose           string `json:"purpose"`
}

// Send issues a new code for a phone and purpose.
func (h *OTPHandler) Send(c *fiber.Ctx) error {
	req, purpose, err := h.parseSend(c)
	if err != nil {
		return err
	}
	if limited, err := h.throttle(c, req.Phone, purpose); limited || err != nil {
		return err
	}

	issuance, err := h.ledger.Issue(c.UserContext(), req.Phone, purpose)
	if err != nil {
		return h.issueError(c, err)
	}
	return h.issued(c, issuance, "OTP sent successfully")
}

// Resend drops the current code and issues a new one.
func (h *OTPHandler) Resend(c *fiber.Ctx) error {
	req, purpose, err := h.parseSend(c)
	if err != nil {
		return err
	}
	if limited, err := h.throttle(c, req.Phone, purpose); limited || err != nil {
		return err
	}

	issuance, err := h.ledger.Resend(c.UserContext(), req.Phone, req.VerificationToken, purpose)
	if err != nil {
		return h.issueError(c, err)
	}
	return h.issued(c, issuance, "OTP resent successfully")
}

// Verify checks a submitted code. A successful verification returns a phone grant.
func (h *OTPHandler) Verify(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	purpose, err := otp.ParsePurpose(req.Purpose)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || req.Code == "" || req.VerificationToken == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phone, code and verification_token are required")
	}

	result, err := h.ledger.Verify(c.UserContext(), otp.VerifyRequest{
		PhoneNumber:       req.Phone,
		Code:              strings.TrimSpace(req.Code),
		VerificationToken: req.VerificationToken,
		Purpose:           purpose,
	})
	if err != nil {
		h.log.Error().Err(err).Str("phone", req.Phone).Msg("otp verify failed")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to verify OTP")
	}

	if !result.OK() {
		body := fiber.Map{
			"success": false,
			"outcome": result.Outcome.String(),
			"error":   result.Message(),
			"action":  "retry",
		}
		if result.Outcome == otp.OutcomeCodeMismatch {
			body["attempts_remaining"] = result.AttemptsRemaining
		}
		if result.MustResend() {
			body["action"] = "resend"
		}
		return c.Status(verifyStatus(result.Outcome)).JSON(body)
	}

	if purpose == otp.PurposePhoneVerification && h.cfg.Phones != nil {
		if err := h.cfg.Phones.MarkPhoneVerified(c.UserContext(), req.Phone); err != nil {
			h.log.Error().Err(err).Str("phone", req.Phone).Msg("failed to flag phone as verified")
		}
	}

	grant, expires, err := utils.GeneratePhoneGrant(h.cfg.GrantSecret, req.Phone, purpose.String(), h.cfg.GrantTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate verification grant")
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"message":          result.Message(),
		"verified_at":      result.VerifiedAt,
		"grant":            grant,
		"grant_expires_at": expires,
	})
}

func (h *OTPHandler) parseSend(c *fiber.Ctx) (*sendOTPRequest, otp.Purpose, error) {
	var req sendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	purpose, err := otp.ParsePurpose(req.Purpose)
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, otp.ErrPhoneRequired.Error())
	}
	return &req, purpose, nil
}

// throttle writes a 429 response and reports true when the request is over
// the limit. It fails open when the limiter's backend is unavailable.
func (h *OTPHandler) throttle(c *fiber.Ctx, phone string, purpose otp.Purpose) (bool, error) {
	if h.cfg.Limiter == nil {
		return false, nil
	}
	decision, err := h.cfg.Limiter.Allow(c.UserContext(), phone, purpose.String())
	if err != nil {
		h.log.Warn().Err(err).Msg("rate limiter unavailable")
	}
	if decision.Allowed {
		return false, nil
	}

	retry := int(decision.RetryAfter.Round(time.Second).Seconds())
	if retry < 1 {
		retry = 1
	}
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
	return true, c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"success":     false,
		"outcome":     "rate_limited",
		"error":       decision.Reason,
		"retry_after": retry,
	})
}

func (h *OTPHandler) issued(c *fiber.Ctx, issuance *otp.Issuance, message string) error {
	return c.JSON(fiber.Map{
		"success":            true,
		"message":            message,
		"verification_token": issuance.VerificationToken,
		"expires_at":         issuance.ExpiresAt,
	})
}

func (h *OTPHandler) issueError(c *fiber.Ctx, err error) error {
	var delivery *otp.DeliveryError
	switch {
	case errors.Is(err, otp.ErrPhoneRequired), errors.Is(err, otp.ErrInvalidPurpose):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &delivery):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success":     false,
			"outcome":     "delivery_failed",
			"error":       "Failed to send OTP SMS",
			"details":     delivery.Reason,
			"status_code": delivery.StatusCode,
		})
	}
	h.log.Error().Err(err).Msg("otp issue failed")
	return fiber.NewError(fiber.StatusInternalServerError, "Failed to send OTP")
}

func verifyStatus(outcome otp.Outcome) int {
	switch outcome {
	case otp.OutcomeInvalidRequest:
		return fiber.StatusNotFound
	case otp.OutcomeAlreadyVerified:
		return fiber.StatusConflict
	case otp.OutcomeAttemptsExhausted:
		return fiber.StatusTooManyRequests
	case otp.OutcomeExpired:
		return fiber.StatusGone
	case otp.OutcomeCodeMismatch:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
