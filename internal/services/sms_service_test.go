package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/clinic/internal/otp"
)

func newSonali(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *SonaliSMS {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSonaliSMS(SonaliConfig{
		APIKey:     "key",
		SecretKey:  "secret",
		SenderID:   "CLINIC",
		SendURL:    srv.URL + "/sendtext",
		StatusURL:  srv.URL + "/getstatus",
		BalanceURL: srv.URL + "/balance",
		Timeout:    timeout,
	}, zerolog.Nop())
}

func TestSonaliSMS_SendAccepted(t *testing.T) {
	var got map[string]string
	sms := newSonali(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"apikey":         q.Get("apikey"),
			"secretkey":      q.Get("secretkey"),
			"callerID":       q.Get("callerID"),
			"toUser":         q.Get("toUser"),
			"messageContent": q.Get("messageContent"),
		}
		w.Write([]byte(`{"Status":"0","Text":"ACCEPTD","Message_ID":"8841"}`))
	}, 0)

	d := sms.Send(context.Background(), "+8801711000000", "Your OTP for login is 123456.")
	if !d.Success || d.MessageID != "8841" || d.Status != "ACCEPTD" {
		t.Fatalf("delivery = %+v", d)
	}
	want := map[string]string{
		"apikey":         "key",
		"secretkey":      "secret",
		"callerID":       "CLINIC",
		"toUser":         "+8801711000000",
		"messageContent": "Your OTP for login is 123456.",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("param %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestSonaliSMS_SendNormalisesFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantError  string
		wantStatus string
	}{
		{"rejected", http.StatusOK, `{"Status":"1003","Text":"INVALID SENDER"}`, "INVALID SENDER", "1003"},
		{"numeric status", http.StatusOK, `{"Status":1007,"Text":"LOW BALANCE"}`, "LOW BALANCE", "1007"},
		{"non-2xx", http.StatusBadGateway, `oops`, "sms gateway returned status 502", "502"},
		{"garbage", http.StatusOK, `<html>`, "Failed to send SMS: invalid gateway response", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sms := newSonali(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, 0)
			d := sms.Send(context.Background(), "p", "m")
			if d.Success || d.Error != tt.wantError || d.StatusCode != tt.wantStatus {
				t.Errorf("delivery = %+v", d)
			}
		})
	}
}

func TestSonaliSMS_SendTimeout(t *testing.T) {
	release := make(chan struct{})
	sms := newSonali(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	d := sms.Send(context.Background(), "p", "m")
	if d.Success || !strings.HasPrefix(d.Error, "Failed to send SMS") {
		t.Errorf("delivery = %+v", d)
	}
}

func TestSonaliSMS_BalanceAndStatus(t *testing.T) {
	sms := newSonali(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/balance":
			if r.URL.Query().Get("client") != "key" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write([]byte(`{"balance":"120.50"}`))
		case "/getstatus":
			if r.URL.Query().Get("messageid") == "missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"Status":"DELIVRD"}`))
		}
	}, 0)

	if got := sms.CheckBalance(context.Background()); got == nil || got["balance"] != "120.50" {
		t.Errorf("CheckBalance = %v", got)
	}
	if got := sms.GetStatus(context.Background(), "8841"); got == nil || got["Status"] != "DELIVRD" {
		t.Errorf("GetStatus = %v", got)
	}
	if got := sms.GetStatus(context.Background(), "missing"); got != nil {
		t.Errorf("GetStatus on 404 = %v, want nil", got)
	}
}

func TestBoomcast_Send(t *testing.T) {
	var msgType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msgType = r.URL.Query().Get("MsgType")
		if r.URL.Query().Get("receiver") == "bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	b := NewBoomcast(BoomcastConfig{URL: srv.URL, Username: "u", Password: "p", Masking: "Clinic"}, zerolog.Nop())

	if d := b.Send(context.Background(), "+8801711000000", "m"); !d.Success || d.Status != "OK" {
		t.Errorf("delivery = %+v", d)
	}
	if msgType != "TEXT" {
		t.Errorf("MsgType = %q", msgType)
	}
	if d := b.Send(context.Background(), "bad", "m"); d.Success || d.StatusCode != "500" {
		t.Errorf("delivery = %+v", d)
	}
}

type chanNotifier struct {
	texts chan string
	err   error
}

func (n *chanNotifier) SendToAdmin(_ context.Context, text string) error {
	n.texts <- text
	return n.err
}

func TestAlertingDispatcher(t *testing.T) {
	notifier := &chanNotifier{texts: make(chan string, 1), err: errors.New("telegram down")}
	fail := otp.DispatcherFunc(func(context.Context, string, string) otp.Delivery {
		return otp.Delivery{Success: false, Error: "INVALID SENDER", StatusCode: "1003"}
	})

	d := NewAlertingDispatcher(fail, notifier, "sonali", zerolog.Nop()).Send(context.Background(), "+8801711002345", "m")
	if d.Success || d.StatusCode != "1003" {
		t.Fatalf("delivery = %+v", d)
	}

	select {
	case text := <-notifier.texts:
		if !strings.Contains(text, "INVALID SENDER") || !strings.Contains(text, "2345") || strings.Contains(text, "8801711") {
			t.Errorf("alert = %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no alert posted")
	}

	ok := otp.DispatcherFunc(func(context.Context, string, string) otp.Delivery {
		return otp.Delivery{Success: true}
	})
	NewAlertingDispatcher(ok, notifier, "sonali", zerolog.Nop()).Send(context.Background(), "p", "m")
	select {
	case text := <-notifier.texts:
		t.Errorf("unexpected alert %q", text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTelegramService_SendToAdmin(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
	}))
	defer srv.Close()

	tg := NewTelegramService("bot-token", "42", zerolog.Nop())
	tg.baseURL = srv.URL
	if err := tg.SendToAdmin(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if path != "/botbot-token/sendMessage" {
		t.Errorf("path = %q", path)
	}

	if err := NewTelegramService("", "", zerolog.Nop()).SendToAdmin(context.Background(), "x"); err != nil {
		t.Errorf("unconfigured service should be a no-op, got %v", err)
	}
}
