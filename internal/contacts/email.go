package contacts

import (
	"fmt"
	"net/smtp"
	"strings"

	"dispatch-service/internal/models"
)

// sendEmail mails the contact over plain SMTP.
func (n *Notifier) sendEmail(c models.EmergencyContact, subject, body string) error {
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("contact %s has invalid email address %q", c.Name, c.Email)
	}

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", c.Email, subject, body))
	addr := fmt.Sprintf("%s:%d", n.cfg.Email.SMTPServer, n.cfg.Email.SMTPPort)
	auth := smtp.PlainAuth("", n.cfg.Email.Username, n.cfg.Email.Password, n.cfg.Email.SMTPServer)
	return n.withRetry(channelEmail, c.Email, func() error {
		return smtp.SendMail(addr, auth, n.cfg.Email.Username, []string{c.Email}, msg)
	})
}
