package models

import "time"

// NotificationChannel identifies the delivery medium.
type NotificationChannel string

const (
	ChannelSMS      NotificationChannel = "sms"
	ChannelWhatsApp NotificationChannel = "whatsapp"
)

// DeliveryStatus is the typed outcome of one best-effort send.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// NotificationResult records the outcome of a single dispatch attempt. It is
// logged by the caller; a failed send never affects the committed payment.
type NotificationResult struct {
	Channel   NotificationChannel `json:"channel"`
	Provider  string              `json:"provider"`
	Recipient string              `json:"recipient"`
	Status    DeliveryStatus      `json:"status"`
	Reason    string              `json:"reason,omitempty"`
	SentAt    time.Time           `json:"sent_at"`
}
