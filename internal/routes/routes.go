package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/clinic/internal/handlers"
	"github.com/example/clinic/internal/middleware"
	"github.com/example/clinic/internal/models"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	OTP       *handlers.OTPHandler
	SMS       *handlers.SMSHandler
	JWTSecret string
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, h Handlers) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	otpRoutes := api.Group("/otp")
	otpRoutes.Post("/send", h.OTP.Send)
	otpRoutes.Post("/verify", h.OTP.Verify)
	otpRoutes.Post("/resend", h.OTP.Resend)

	if h.Auth != nil {
		auth := api.Group("/auth")
		auth.Post("/register", h.Auth.Register)
		auth.Post("/login", h.Auth.Login)
		auth.Post("/password-reset", h.Auth.ResetPassword)
		auth.Post("/admin/login", h.Auth.AdminLogin)
	}

	// Administrator routes
	admin := api.Group("/sms",
		middleware.AuthMiddleware(h.JWTSecret),
		middleware.RequireUserType(string(models.UserTypeAdministrator)),
	)
	admin.Get("/balance", h.SMS.Balance)
	admin.Get("/status/:id", h.SMS.Status)
}
