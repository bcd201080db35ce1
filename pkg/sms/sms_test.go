package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSay(t *testing.T) {
	assert.Equal(t,
		"<Response><Say>Emergency: FALL detected with confidence 0.97.</Say></Response>",
		Say("Emergency: FALL detected with confidence 0.97."))
}

func TestSay_EscapesMarkup(t *testing.T) {
	assert.Equal(t,
		"<Response><Say>a &lt;Hangup/&gt; &amp; b</Say></Response>",
		Say("a <Hangup/> & b"))
}
