package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/internal/metrics"
	"alert-service/internal/models"
	"alert-service/internal/providers"
	"alert-service/pkg/sms"
)

// Trigger says why notifications are being sent; it only changes the wording.
type Trigger int

const (
	TriggerCreated Trigger = iota
	TriggerManual
)

// Service texts an event's trusted contacts and escalates to a voice call
// on the emergency number when confidence reaches the threshold.
type Service struct {
	messenger      providers.Messenger
	logger         *logging.Logger
	metrics        *metrics.Collector
	emergencyPhone string
	threshold      float64
}

// New constructs a notification Service. A nil messenger means no transport
// is configured and every attempt is recorded as skipped.
func New(messenger providers.Messenger, logger *logging.Logger, m *metrics.Collector, cfg config.Config) *Service {
	return &Service{
		messenger:      messenger,
		logger:         logger,
		metrics:        m,
		emergencyPhone: strings.TrimSpace(cfg.Emergency.Phone),
		threshold:      cfg.Emergency.Threshold,
	}
}

// Dispatch runs the whole pipeline and never fails: panics and provider
// errors end up in the log and in the returned results.
func (s *Service) Dispatch(ctx context.Context, ev models.Event, trigger Trigger) (results []models.DeliveryResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logging.Fields{"event_id": ev.ID}).Errorf("notify error: %v", r)
		}
	}()

	results = append(results, s.NotifyContacts(ctx, ev, trigger)...)
	if call := s.MaybeEscalate(ctx, ev); call != nil {
		results = append(results, *call)
	}
	return results
}

// NotifyContacts sends one SMS per contact with a usable phone number.
// Each send is independent; a failure does not stop the rest.
func (s *Service) NotifyContacts(ctx context.Context, ev models.Event, trigger Trigger) []models.DeliveryResult {
	contacts := ev.Contacts()
	results := make([]models.DeliveryResult, 0, len(contacts))
	body := smsBody(ev, trigger)

	for _, c := range contacts {
		res := models.DeliveryResult{Channel: models.ChannelSMS, To: c.Phone}
		if s.messenger == nil {
			res.Skipped = true
			s.logger.WithFields(logging.Fields{"event_id": ev.ID, "to": c.Phone}).Infof("(no-twilio) send_sms: %s", body)
		} else if receipt, err := s.messenger.SendSMS(ctx, c.Phone, body); err != nil {
			res.Error = err.Error()
			s.logger.WithFields(logging.Fields{"event_id": ev.ID, "to": c.Phone}).Errorf("SMS failed: %v", err)
		} else {
			res.SID = receipt.SID
			res.Status = receipt.Status
		}
		s.metrics.Delivery(res.Channel, res.Outcome())
		results = append(results, res)
	}
	return results
}

// MaybeEscalate calls the emergency number when one is configured and the
// confidence is at or above the threshold. Otherwise it returns nil.
func (s *Service) MaybeEscalate(ctx context.Context, ev models.Event) *models.DeliveryResult {
	if !s.shouldEscalate(ev.Confidence) {
		return nil
	}

	text := fmt.Sprintf("Emergency: %s detected with confidence %s.", strings.ToUpper(ev.Type), formatConfidence(ev.Confidence))
	res := models.DeliveryResult{Channel: models.ChannelCall, To: s.emergencyPhone}

	if s.messenger == nil {
		res.Skipped = true
		s.logger.WithFields(logging.Fields{"event_id": ev.ID, "to": s.emergencyPhone}).Infof("(no-twilio) call_number: %s", text)
	} else if receipt, err := s.messenger.PlaceCall(ctx, s.emergencyPhone, sms.Say(text)); err != nil {
		res.Error = err.Error()
		s.logger.WithFields(logging.Fields{"event_id": ev.ID, "to": s.emergencyPhone}).Errorf("Emergency call failed: %v", err)
	} else {
		res.SID = receipt.SID
		res.Status = receipt.Status
		s.logger.WithFields(logging.Fields{"event_id": ev.ID, "sid": receipt.SID}).Warn("Emergency call placed")
	}
	s.metrics.Delivery(res.Channel, res.Outcome())
	return &res
}

func (s *Service) shouldEscalate(confidence float64) bool {
	return s.emergencyPhone != "" && confidence >= s.threshold
}

func smsBody(ev models.Event, trigger Trigger) string {
	typ := strings.ToUpper(ev.Type)
	conf := formatConfidence(ev.Confidence)
	if trigger == TriggerManual {
		return fmt.Sprintf("ALERT: %s user %s at confidence %s", typ, ev.UserID, conf)
	}
	return fmt.Sprintf("ALERT: %s detected (confidence %s).", typ, conf)
}

func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}
