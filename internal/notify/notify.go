// Package notify implements the SMS and WhatsApp gateway integrations.
// Every provider exposes the same single capability: deliver one text
// message to one phone number, best-effort. Provider selection and
// credentials come from configuration.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sarvodaya-edu/fees-api/pkg/config"
)

// Provider delivers one message to one recipient.
type Provider interface {
	Name() string
	Send(ctx context.Context, phone, message string) error
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// SMSProvider builds the configured SMS gateway. An empty provider name
// yields nil, which disables the channel.
func SMSProvider(cfg config.NotificationsConfig) (Provider, error) {
	switch cfg.SMSProvider {
	case "":
		return nil, nil
	case "twilio":
		return NewTwilioSMS(cfg.Twilio, cfg.CountryCode, cfg.Timeout), nil
	case "textlocal":
		return NewTextLocal(cfg.TextLocal, cfg.Timeout), nil
	case "msg91":
		return NewMSG91(cfg.MSG91, cfg.Timeout), nil
	case "textbee":
		return NewTextBee(cfg.TextBee, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.SMSProvider)
	}
}

// WhatsAppProvider builds the configured WhatsApp gateway. An empty provider
// name yields nil, which disables the channel.
func WhatsAppProvider(cfg config.NotificationsConfig) (Provider, error) {
	switch cfg.WhatsAppProvider {
	case "":
		return nil, nil
	case "twilio":
		return NewTwilioWhatsApp(cfg.Twilio, cfg.CountryCode, cfg.Timeout), nil
	case "whatsapp-business":
		return NewWhatsAppBusiness(cfg.WhatsAppBusiness, cfg.CountryCode, cfg.Timeout), nil
	case "ultramsg":
		return NewUltraMsg(cfg.UltraMsg, cfg.CountryCode, cfg.Timeout), nil
	case "callmebot":
		return NewCallMeBot(cfg.CallMeBot, cfg.CountryCode, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown whatsapp provider %q", cfg.WhatsAppProvider)
	}
}
