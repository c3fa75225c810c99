package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SMSTelemetry reports gateway balance and message status. Both return nil
// when the gateway could not answer.
type SMSTelemetry interface {
	CheckBalance(ctx context.Context) map[string]any
	GetStatus(ctx context.Context, messageID string) map[string]any
}

// SMSHandler exposes gateway telemetry to administrators.
type SMSHandler struct {
	gateway SMSTelemetry
}

// NewSMSHandler accepts a nil gateway for providers without telemetry.
func NewSMSHandler(gateway SMSTelemetry) *SMSHandler {
	return &SMSHandler{gateway: gateway}
}

func (h *SMSHandler) Balance(c *fiber.Ctx) error {
	if h.gateway == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "sms provider does not report balance")
	}
	balance := h.gateway.CheckBalance(c.UserContext())
	if balance == nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to check SMS balance")
	}
	return c.JSON(fiber.Map{"success": true, "balance": balance})
}

func (h *SMSHandler) Status(c *fiber.Ctx) error {
	if h.gateway == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "sms provider does not report message status")
	}
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message id is required")
	}
	status := h.gateway.GetStatus(c.UserContext(), id)
	if status == nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to check SMS status")
	}
	return c.JSON(fiber.Map{"success": true, "message_id": id, "status": status})
}
