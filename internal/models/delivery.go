package models

const (
	ChannelSMS  = "sms"
	ChannelCall = "call"
)

// DeliveryResult records one notification attempt. Skipped means no
// messaging transport is configured; Error carries the provider's detail
// when it rejected the send.
type DeliveryResult struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Skipped bool   `json:"skipped,omitempty"`
	SID     string `json:"sid,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the provider rejected the attempt.
func (r DeliveryResult) Failed() bool {
	return r.Error != ""
}

// Outcome is a short label used for logs and metrics.
func (r DeliveryResult) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Failed():
		return "failed"
	default:
		return "sent"
	}
}
