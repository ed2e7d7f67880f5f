package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sarvodaya-edu/fees-api/pkg/config"
)

// TwilioWhatsApp sends WhatsApp messages through the Twilio Messages API.
// Same endpoint as SMS but with whatsapp:-prefixed addresses.
type TwilioWhatsApp struct {
	cfg         config.TwilioConfig
	countryCode string
	client      *http.Client
	baseURL     string
}

func NewTwilioWhatsApp(cfg config.TwilioConfig, countryCode string, timeout time.Duration) *TwilioWhatsApp {
	return &TwilioWhatsApp{
		cfg:         cfg,
		countryCode: countryCode,
		client:      newHTTPClient(timeout),
		baseURL:     "https://api.twilio.com",
	}
}

func (p *TwilioWhatsApp) Name() string { return "twilio" }

func (p *TwilioWhatsApp) Send(ctx context.Context, phone, message string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", "whatsapp:+"+NormalizePhone(phone, p.countryCode))
	form.Set("From", "whatsapp:"+p.cfg.PhoneNumber)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio whatsapp: build request: %w", err)
	}
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio whatsapp: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "twilio whatsapp")
}

// WhatsAppBusiness sends messages through the Meta WhatsApp Business Cloud API.
type WhatsAppBusiness struct {
	cfg         config.WhatsAppBusinessConfig
	countryCode string
	client      *http.Client
	baseURL     string
}

func NewWhatsAppBusiness(cfg config.WhatsAppBusinessConfig, countryCode string, timeout time.Duration) *WhatsAppBusiness {
	return &WhatsAppBusiness{
		cfg:         cfg,
		countryCode: countryCode,
		client:      newHTTPClient(timeout),
		baseURL:     "https://graph.facebook.com",
	}
}

func (p *WhatsAppBusiness) Name() string { return "whatsapp-business" }

func (p *WhatsAppBusiness) Send(ctx context.Context, phone, message string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                NormalizePhone(phone, p.countryCode),
		"type":              "text",
		"text":              map[string]string{"body": message},
	})
	if err != nil {
		return fmt.Errorf("whatsapp business: marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v17.0/%s/messages", p.baseURL, p.cfg.PhoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whatsapp business: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp business: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "whatsapp business")
}

// UltraMsg sends WhatsApp messages through an UltraMsg instance.
type UltraMsg struct {
	cfg         config.UltraMsgConfig
	countryCode string
	client      *http.Client
	baseURL     string
}

func NewUltraMsg(cfg config.UltraMsgConfig, countryCode string, timeout time.Duration) *UltraMsg {
	return &UltraMsg{
		cfg:         cfg,
		countryCode: countryCode,
		client:      newHTTPClient(timeout),
		baseURL:     "https://api.ultramsg.com",
	}
}

func (p *UltraMsg) Name() string { return "ultramsg" }

func (p *UltraMsg) Send(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("token", p.cfg.Token)
	form.Set("to", "+"+NormalizePhone(phone, p.countryCode))
	form.Set("body", message)

	endpoint := fmt.Sprintf("%s/%s/messages/chat", p.baseURL, p.cfg.InstanceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("ultramsg: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ultramsg: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "ultramsg")
}

// CallMeBot sends WhatsApp messages through the free CallMeBot relay. The
// recipient must have activated the bot for their own number first, so this
// only suits single-operator setups.
type CallMeBot struct {
	cfg         config.CallMeBotConfig
	countryCode string
	client      *http.Client
	baseURL     string
}

func NewCallMeBot(cfg config.CallMeBotConfig, countryCode string, timeout time.Duration) *CallMeBot {
	return &CallMeBot{
		cfg:         cfg,
		countryCode: countryCode,
		client:      newHTTPClient(timeout),
		baseURL:     "https://api.callmebot.com",
	}
}

func (p *CallMeBot) Name() string { return "callmebot" }

func (p *CallMeBot) Send(ctx context.Context, phone, message string) error {
	q := url.Values{}
	q.Set("phone", "+"+NormalizePhone(phone, p.countryCode))
	q.Set("text", message)
	q.Set("apikey", p.cfg.APIKey)

	endpoint := p.baseURL + "/whatsapp.php?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("callmebot: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("callmebot: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "callmebot")
}
