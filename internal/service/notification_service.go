package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sarvodaya-edu/fees-api/internal/models"
	"github.com/sarvodaya-edu/fees-api/internal/notify"
	"github.com/sarvodaya-edu/fees-api/pkg/jobs"
)

// dispatchPayload is one queued send: a resolved provider plus the message.
type dispatchPayload struct {
	Channel   models.NotificationChannel
	Provider  notify.Provider
	Recipient string
	Message   string
	PaymentID string
}

// NotificationService fans committed payments out to the configured SMS and
// WhatsApp providers. Delivery is best-effort: each send is attempted once,
// the outcome is logged, and failures are dropped without retry.
type NotificationService struct {
	sms        notify.Provider
	whatsapp   notify.Provider
	queue      *jobs.Queue
	metrics    *MetricsService
	logger     *zap.Logger
	schoolName string
	timeout    time.Duration
	enabled    bool
}

// NewNotificationService constructs the notification dispatcher.
func NewNotificationService(sms, whatsapp notify.Provider, metrics *MetricsService, schoolName string, workers int, timeout time.Duration, enabled bool, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &NotificationService{
		sms:        sms,
		whatsapp:   whatsapp,
		metrics:    metrics,
		logger:     logger,
		schoolName: schoolName,
		timeout:    timeout,
		enabled:    enabled && (sms != nil || whatsapp != nil),
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: 0,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// Message renders the parent notification text for one payment.
func (s *NotificationService) Message(student models.Student, payment models.Payment) string {
	return fmt.Sprintf("Dear Parent, Payment of ₹%d received for %s (%s). Date: %s. Thank you! - %s",
		payment.TotalAmount, student.Name, student.AdmissionNo,
		payment.PaymentDate.Format("02/01/2006"), s.schoolName)
}

// PaymentRecorded implements PaymentNotifier. It enqueues one send per
// enabled channel and returns immediately; the payment is already committed
// and is never affected by delivery problems.
func (s *NotificationService) PaymentRecorded(student models.Student, payment models.Payment) {
	if !s.enabled {
		return
	}
	if student.Mobile == "" {
		s.logger.Warn("student has no mobile number, skipping notification",
			zap.String("student_id", student.ID),
			zap.String("payment_id", payment.ID))
		return
	}

	message := s.Message(student, payment)
	for _, target := range []struct {
		channel  models.NotificationChannel
		provider notify.Provider
	}{
		{models.ChannelSMS, s.sms},
		{models.ChannelWhatsApp, s.whatsapp},
	} {
		if target.provider == nil {
			continue
		}
		job := jobs.Job{
			ID:   fmt.Sprintf("%s-%s", payment.ID, target.channel),
			Type: string(target.channel),
			Payload: dispatchPayload{
				Channel:   target.channel,
				Provider:  target.provider,
				Recipient: student.Mobile,
				Message:   message,
				PaymentID: payment.ID,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue notification",
				zap.String("payment_id", payment.ID),
				zap.String("channel", string(target.channel)),
				zap.Error(err))
		}
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(dispatchPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := payload.Provider.Send(sendCtx, payload.Recipient, payload.Message)

	result := models.NotificationResult{
		Channel:   payload.Channel,
		Provider:  payload.Provider.Name(),
		Recipient: payload.Recipient,
		Status:    models.DeliveryDelivered,
		SentAt:    time.Now().UTC(),
	}
	if err != nil {
		result.Status = models.DeliveryFailed
		result.Reason = err.Error()
	}

	s.metrics.RecordNotification(result.Channel, result.Provider, err == nil)

	if err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("payment_id", payload.PaymentID),
			zap.String("channel", string(result.Channel)),
			zap.String("provider", result.Provider),
			zap.String("reason", result.Reason))
		return err
	}

	s.logger.Info("notification delivered",
		zap.String("payment_id", payload.PaymentID),
		zap.String("channel", string(result.Channel)),
		zap.String("provider", result.Provider))
	return nil
}
