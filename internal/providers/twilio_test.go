package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-service/internal/config"
	"alert-service/internal/logging"
)

type senderStub struct {
	sent  []string
	calls []string
	err   error
}

func (s *senderStub) Send(to, body string) (string, string, error) {
	s.sent = append(s.sent, to+"|"+body)
	if s.err != nil {
		return "", "", s.err
	}
	return "SM123", "queued", nil
}

func (s *senderStub) Call(to, twiml string) (string, string, error) {
	s.calls = append(s.calls, to+"|"+twiml)
	if s.err != nil {
		return "", "", s.err
	}
	return "CA123", "queued", nil
}

func twilioConfig(sid, token, from string) config.Config {
	var cfg config.Config
	cfg.Twilio.AccountSID = sid
	cfg.Twilio.AuthToken = token
	cfg.Twilio.FromNumber = from
	return cfg
}

func TestNewTwilio_AbsentCredentials(t *testing.T) {
	log := logging.NewNop()

	assert.Nil(t, NewTwilio(twilioConfig("", "tok", "+1"), log))
	assert.Nil(t, NewTwilio(twilioConfig("AC1", "", "+1"), log))
	assert.Nil(t, NewTwilio(twilioConfig("AC1", "tok", ""), log))
	assert.Nil(t, NewTwilio(twilioConfig("XX1", "tok", "+1"), log))
	assert.NotNil(t, NewTwilio(twilioConfig("AC1", "tok", "+1"), log))
}

func TestTwilio_SendSMS(t *testing.T) {
	stub := &senderStub{}
	tw := newTwilio(stub, 5, logging.NewNop())

	r, err := tw.SendSMS(context.Background(), "+1555", "hello")
	require.NoError(t, err)
	assert.Equal(t, Receipt{SID: "SM123", Status: "queued"}, r)
	assert.Equal(t, []string{"+1555|hello"}, stub.sent)
}

func TestTwilio_PlaceCall(t *testing.T) {
	stub := &senderStub{}
	tw := newTwilio(stub, 5, logging.NewNop())

	r, err := tw.PlaceCall(context.Background(), "+1911", "<Response/>")
	require.NoError(t, err)
	assert.Equal(t, "CA123", r.SID)
	assert.Len(t, stub.calls, 1)
}

func TestTwilio_ProviderErrorIsSingleAttempt(t *testing.T) {
	stub := &senderStub{err: errors.New("21211 invalid 'To' number")}
	tw := newTwilio(stub, 5, logging.NewNop())

	_, err := tw.SendSMS(context.Background(), "bogus", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Len(t, stub.sent, 1)
}

func TestTwilio_CancelledContext(t *testing.T) {
	stub := &senderStub{}
	tw := newTwilio(stub, 1, logging.NewNop())
	// drain the single burst token
	_, err := tw.SendSMS(context.Background(), "+1", "a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tw.SendSMS(ctx, "+1", "b")
	assert.Error(t, err)
	assert.Len(t, stub.sent, 1)
}
