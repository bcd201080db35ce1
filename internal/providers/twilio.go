package providers

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/pkg/sms"
)

// Receipt is what the provider reports for an accepted send.
type Receipt struct {
	SID    string
	Status string
}

// Messenger is the text + voice transport used by the notifier.
type Messenger interface {
	SendSMS(ctx context.Context, to, body string) (Receipt, error)
	PlaceCall(ctx context.Context, to, twiml string) (Receipt, error)
}

type twilioSender interface {
	Send(toNumber, body string) (string, string, error)
	Call(toNumber, twiml string) (string, string, error)
}

// Twilio paces outbound requests and makes exactly one attempt per send.
type Twilio struct {
	client  twilioSender
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewTwilio returns nil when credentials are missing, so callers treat the
// transport as absent instead of failing.
func NewTwilio(cfg config.Config, logger *logging.Logger) Messenger {
	sid := cfg.Twilio.AccountSID
	if sid == "" || cfg.Twilio.AuthToken == "" || cfg.Twilio.FromNumber == "" || !strings.HasPrefix(sid, "AC") {
		logger.Warn("Twilio not configured, notifications will be skipped")
		return nil
	}
	logger.WithFields(logging.Fields{"from": cfg.Twilio.FromNumber}).Info("Twilio transport initialized")
	return newTwilio(sms.New(sid, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber), cfg.Twilio.RateLimit, logger)
}

func newTwilio(client twilioSender, ratePerSecond int, logger *logging.Logger) *Twilio {
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	return &Twilio{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
		logger:  logger,
	}
}

func (t *Twilio) SendSMS(ctx context.Context, to, body string) (Receipt, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Receipt{}, fmt.Errorf("twilio rate limit wait: %w", err)
	}
	sid, status, err := t.client.Send(to, body)
	if err != nil {
		return Receipt{}, err
	}
	t.logger.WithFields(logging.Fields{"to": to, "sid": sid, "status": status}).Info("SMS sent")
	return Receipt{SID: sid, Status: status}, nil
}

func (t *Twilio) PlaceCall(ctx context.Context, to, twiml string) (Receipt, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Receipt{}, fmt.Errorf("twilio rate limit wait: %w", err)
	}
	sid, status, err := t.client.Call(to, twiml)
	if err != nil {
		return Receipt{}, err
	}
	t.logger.WithFields(logging.Fields{"to": to, "sid": sid, "status": status}).Info("Call placed")
	return Receipt{SID: sid, Status: status}, nil
}
