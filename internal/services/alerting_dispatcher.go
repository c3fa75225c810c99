package services

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/clinic/internal/otp"
)

// AdminNotifier posts operator alerts. *TelegramService satisfies it.
type AdminNotifier interface {
	SendToAdmin(ctx context.Context, text string) error
}

// AlertingDispatcher forwards to a provider and notifies the admin chat when
// a send fails. The alert is posted in the background and never changes the
// Delivery returned to the caller.
type AlertingDispatcher struct {
	next     otp.Dispatcher
	notifier AdminNotifier
	provider string
	log      zerolog.Logger
}

func NewAlertingDispatcher(next otp.Dispatcher, notifier AdminNotifier, provider string, log zerolog.Logger) *AlertingDispatcher {
	return &AlertingDispatcher{next: next, notifier: notifier, provider: provider, log: log}
}

func (d *AlertingDispatcher) Send(ctx context.Context, phoneNumber, message string) otp.Delivery {
	delivery := d.next.Send(ctx, phoneNumber, message)
	if delivery.Success {
		return delivery
	}

	text := formatDeliveryAlert(d.provider, phoneNumber, delivery)
	alertCtx := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(alertCtx, 15*time.Second)
		defer cancel()
		if err := d.notifier.SendToAdmin(ctx, text); err != nil {
			d.log.Warn().Err(err).Msg("failed to post sms failure alert")
		}
	}()

	return delivery
}

func formatDeliveryAlert(provider, phoneNumber string, delivery otp.Delivery) string {
	status := delivery.StatusCode
	if status == "" {
		status = "-"
	}
	return fmt.Sprintf("<b>⚠️ OTP SMS delivery failed</b>\n<b>Provider:</b> %s\n<b>Phone:</b> %s\n<b>Status:</b> %s\n<b>Reason:</b> %s",
		html.EscapeString(provider),
		html.EscapeString(maskPhone(phoneNumber)),
		html.EscapeString(status),
		html.EscapeString(delivery.Error),
	)
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-4 && phone[i] >= '0' && phone[i] <= '9' {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
