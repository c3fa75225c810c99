package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/clinic/internal/otp"
)

// BoomcastConfig holds Boomcast OTP gateway settings.
type BoomcastConfig struct {
	URL      string
	Username string
	Password string
	Masking  string
	Timeout  time.Duration
}

// Boomcast is the alternative SMS provider. It has no structured response,
// so any 2xx counts as accepted.
type Boomcast struct {
	cfg    BoomcastConfig
	client *http.Client
	log    zerolog.Logger
}

func NewBoomcast(cfg BoomcastConfig, log zerolog.Logger) *Boomcast {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Boomcast{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("provider", "boomcast").Logger(),
	}
}

func (b *Boomcast) Send(ctx context.Context, phoneNumber, message string) otp.Delivery {
	params := url.Values{}
	params.Set("masking", b.cfg.Masking)
	params.Set("userName", b.cfg.Username)
	params.Set("password", b.cfg.Password)
	params.Set("MsgType", "TEXT")
	params.Set("receiver", phoneNumber)
	params.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.URL+"?"+params.Encode(), nil)
	if err != nil {
		return otp.Delivery{Success: false, Error: "Failed to send SMS: " + err.Error()}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Error().Err(err).Str("phone", phoneNumber).Msg("boomcast request failed")
		return otp.Delivery{Success: false, Error: "Failed to send SMS: " + err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.log.Error().Int("http_status", resp.StatusCode).Str("body", string(body)).Msg("boomcast rejected message")
		return otp.Delivery{
			Success:    false,
			Error:      fmt.Sprintf("boomcast returned status %d", resp.StatusCode),
			StatusCode: fmt.Sprint(resp.StatusCode),
		}
	}

	b.log.Debug().Str("phone", phoneNumber).Str("body", string(body)).Msg("boomcast accepted message")
	return otp.Delivery{Success: true, Status: strings.TrimSpace(string(body))}
}
