package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/clinic/internal/otp"
)

// SonaliConfig holds the Sonali SMS gateway credentials and endpoints.
type SonaliConfig struct {
	APIKey     string
	SecretKey  string
	SenderID   string
	SendURL    string
	StatusURL  string
	BalanceURL string
	Timeout    time.Duration
}

// SonaliSMS talks to the Sonali SMS HTTP API.
type SonaliSMS struct {
	cfg    SonaliConfig
	client *http.Client
	log    zerolog.Logger
}

// NewSonaliSMS creates a gateway client. Each call makes exactly one request.
func NewSonaliSMS(cfg SonaliConfig, log zerolog.Logger) *SonaliSMS {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SonaliSMS{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("provider", "sonali").Logger(),
	}
}

// gatewayString accepts both "0" and 0 from the gateway.
type gatewayString string

func (s *gatewayString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = gatewayString(v)
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = gatewayString(n.String())
	return nil
}

type sonaliSendResponse struct {
	Status    gatewayString `json:"Status"`
	Text      string        `json:"Text"`
	MessageID gatewayString `json:"Message_ID"`
}

// Send implements otp.Dispatcher.
func (s *SonaliSMS) Send(ctx context.Context, phoneNumber, message string) otp.Delivery {
	params := url.Values{}
	params.Set("apikey", s.cfg.APIKey)
	params.Set("secretkey", s.cfg.SecretKey)
	params.Set("callerID", s.cfg.SenderID)
	params.Set("toUser", phoneNumber)
	params.Set("messageContent", message)

	status, body, err := s.get(ctx, s.cfg.SendURL, params)
	if err != nil {
		s.log.Error().Err(err).Str("phone", phoneNumber).Msg("sms send request failed")
		return otp.Delivery{Success: false, Error: "Failed to send SMS: " + err.Error()}
	}
	if status < 200 || status >= 300 {
		s.log.Error().Int("http_status", status).Str("phone", phoneNumber).Msg("sms gateway returned non-2xx")
		return otp.Delivery{
			Success:    false,
			Error:      fmt.Sprintf("sms gateway returned status %d", status),
			StatusCode: fmt.Sprint(status),
		}
	}

	var resp sonaliSendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		s.log.Error().Err(err).Str("phone", phoneNumber).Msg("sms gateway response not decodable")
		return otp.Delivery{Success: false, Error: "Failed to send SMS: invalid gateway response"}
	}

	if resp.Status != "0" {
		s.log.Warn().
			Str("phone", phoneNumber).
			Str("status", string(resp.Status)).
			Str("text", resp.Text).
			Msg("sms rejected by gateway")
		return otp.Delivery{Success: false, Error: resp.Text, StatusCode: string(resp.Status)}
	}

	s.log.Debug().Str("phone", phoneNumber).Str("message_id", string(resp.MessageID)).Msg("sms accepted")
	return otp.Delivery{Success: true, MessageID: string(resp.MessageID), Status: resp.Text}
}

// CheckBalance returns the gateway's balance payload, or nil on any failure.
func (s *SonaliSMS) CheckBalance(ctx context.Context) map[string]any {
	params := url.Values{}
	params.Set("client", s.cfg.APIKey)
	return s.getJSON(ctx, s.cfg.BalanceURL, params, "balance")
}

// GetStatus returns the delivery status payload for messageID, or nil on any failure.
func (s *SonaliSMS) GetStatus(ctx context.Context, messageID string) map[string]any {
	params := url.Values{}
	params.Set("apikey", s.cfg.APIKey)
	params.Set("secretkey", s.cfg.SecretKey)
	params.Set("messageid", messageID)
	return s.getJSON(ctx, s.cfg.StatusURL, params, "status")
}

func (s *SonaliSMS) getJSON(ctx context.Context, endpoint string, params url.Values, op string) map[string]any {
	status, body, err := s.get(ctx, endpoint, params)
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("sms gateway request failed")
		return nil
	}
	if status < 200 || status >= 300 {
		s.log.Error().Int("http_status", status).Str("op", op).Msg("sms gateway returned non-2xx")
		return nil
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("sms gateway response not decodable")
		return nil
	}
	return out
}

func (s *SonaliSMS) get(ctx context.Context, endpoint string, params url.Values) (int, []byte, error) {
	reqURL := endpoint
	if encoded := params.Encode(); encoded != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		reqURL += sep + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}
