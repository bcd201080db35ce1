package sms

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Client sends text messages and places voice calls through Twilio.
type Client struct {
	rest *twilio.RestClient
	from string
}

func New(accountSID, authToken, fromNumber string) *Client {
	return &Client{
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: fromNumber,
	}
}

// Send returns the message SID and status reported by Twilio.
func (c *Client) Send(toNumber, body string) (string, string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(c.from)
	params.SetBody(body)

	msg, err := c.rest.Api.CreateMessage(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to send SMS to %s: %w", toNumber, err)
	}
	return deref(msg.Sid), deref(msg.Status), nil
}

// Call dials toNumber and plays the given TwiML document.
func (c *Client) Call(toNumber, twiml string) (string, string, error) {
	params := &twilioApi.CreateCallParams{}
	params.SetTo(toNumber)
	params.SetFrom(c.from)
	params.SetTwiml(twiml)

	call, err := c.rest.Api.CreateCall(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to call %s: %w", toNumber, err)
	}
	return deref(call.Sid), deref(call.Status), nil
}

// Say builds a TwiML response that reads text aloud.
func Say(text string) string {
	var buf bytes.Buffer
	buf.WriteString("<Response><Say>")
	_ = xml.EscapeText(&buf, []byte(text))
	buf.WriteString("</Say></Response>")
	return buf.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
