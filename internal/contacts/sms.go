package contacts

import (
	"fmt"
	"strings"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"dispatch-service/internal/models"
)

// sendSMS texts the contact's phone through Twilio. Numbers must be E.164.
func (n *Notifier) sendSMS(c models.EmergencyContact, subject, body string) error {
	if !strings.HasPrefix(c.Phone, "+") {
		return fmt.Errorf("contact %s has invalid phone number %q", c.Name, c.Phone)
	}

	to := c.Phone
	from := n.cfg.SMS.FromNumber
	text := fmt.Sprintf("%s\n%s", subject, body)
	return n.withRetry(channelSMS, c.Phone, func() error {
		params := &twilioApi.CreateMessageParams{
			To:   &to,
			From: &from,
			Body: &text,
		}
		if _, err := n.sms.Api.CreateMessage(params); err != nil {
			return fmt.Errorf("failed to send SMS to %s: %w", c.Phone, err)
		}
		return nil
	})
}
