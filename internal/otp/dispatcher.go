package otp

import "context"

// Delivery is the normalised outcome of one SMS send attempt.
type Delivery struct {
	Success    bool   `json:"success"`
	MessageID  string `json:"message_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode string `json:"status_code,omitempty"`
}

// Dispatcher delivers a message to a phone number. Implementations make at
// most one gateway call and report transport faults as a failed Delivery.
type Dispatcher interface {
	Send(ctx context.Context, phoneNumber, message string) Delivery
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, phoneNumber, message string) Delivery

func (f DispatcherFunc) Send(ctx context.Context, phoneNumber, message string) Delivery {
	return f(ctx, phoneNumber, message)
}
