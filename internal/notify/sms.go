package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sarvodaya-edu/fees-api/pkg/config"
)

// NormalizePhone strips everything but digits and prefixes the country code
// when the number looks like a bare local number.
func NormalizePhone(phone, countryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if countryCode != "" && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}

	return digits
}

func checkStatus(resp *http.Response, provider string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: gateway returned %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
}

// TwilioSMS sends SMS through the Twilio Messages API.
type TwilioSMS struct {
	cfg         config.TwilioConfig
	countryCode string
	client      *http.Client
	baseURL     string
}

func NewTwilioSMS(cfg config.TwilioConfig, countryCode string, timeout time.Duration) *TwilioSMS {
	return &TwilioSMS{
		cfg:         cfg,
		countryCode: countryCode,
		client:      newHTTPClient(timeout),
		baseURL:     "https://api.twilio.com",
	}
}

func (p *TwilioSMS) Name() string { return "twilio" }

func (p *TwilioSMS) Send(ctx context.Context, phone, message string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", "+"+NormalizePhone(phone, p.countryCode))
	form.Set("From", p.cfg.PhoneNumber)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "twilio")
}

// TextLocal sends SMS through the TextLocal bulk SMS API.
type TextLocal struct {
	cfg     config.TextLocalConfig
	client  *http.Client
	baseURL string
}

func NewTextLocal(cfg config.TextLocalConfig, timeout time.Duration) *TextLocal {
	return &TextLocal{
		cfg:     cfg,
		client:  newHTTPClient(timeout),
		baseURL: "https://api.textlocal.in",
	}
}

func (p *TextLocal) Name() string { return "textlocal" }

func (p *TextLocal) Send(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("apikey", p.cfg.APIKey)
	form.Set("numbers", NormalizePhone(phone, "91"))
	form.Set("message", message)
	form.Set("sender", p.cfg.Sender)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/send/", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("textlocal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("textlocal: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "textlocal"); err != nil {
		return err
	}

	// TextLocal answers 200 even on failure and reports status in the body.
	var parsed struct {
		Status string `json:"status"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil && parsed.Status == "failure" {
		reason := "unknown error"
		if len(parsed.Errors) > 0 {
			reason = parsed.Errors[0].Message
		}
		return fmt.Errorf("textlocal: %s", reason)
	}

	return nil
}

// MSG91 sends SMS through the MSG91 HTTP API.
type MSG91 struct {
	cfg     config.MSG91Config
	client  *http.Client
	baseURL string
}

func NewMSG91(cfg config.MSG91Config, timeout time.Duration) *MSG91 {
	return &MSG91{
		cfg:     cfg,
		client:  newHTTPClient(timeout),
		baseURL: "https://api.msg91.com",
	}
}

func (p *MSG91) Name() string { return "msg91" }

func (p *MSG91) Send(ctx context.Context, phone, message string) error {
	q := url.Values{}
	q.Set("authkey", p.cfg.APIKey)
	q.Set("mobiles", NormalizePhone(phone, "91"))
	q.Set("message", message)
	q.Set("sender", p.cfg.SenderID)
	q.Set("route", p.cfg.Route)
	q.Set("country", "91")

	endpoint := p.baseURL + "/api/sendhttp.php?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("msg91: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("msg91: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "msg91")
}

// TextBee sends SMS through a TextBee android gateway device.
type TextBee struct {
	cfg     config.TextBeeConfig
	client  *http.Client
	baseURL string
}

func NewTextBee(cfg config.TextBeeConfig, timeout time.Duration) *TextBee {
	return &TextBee{
		cfg:     cfg,
		client:  newHTTPClient(timeout),
		baseURL: "https://api.textbee.dev",
	}
}

func (p *TextBee) Name() string { return "textbee" }

func (p *TextBee) Send(ctx context.Context, phone, message string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"recipients": []string{"+" + NormalizePhone(phone, "91")},
		"message":    message,
	})
	if err != nil {
		return fmt.Errorf("textbee: marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/gateway/devices/%s/send-sms", p.baseURL, p.cfg.DeviceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("textbee: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("textbee: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "textbee")
}
