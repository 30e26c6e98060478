package contacts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	"golang.org/x/time/rate"

	"dispatch-service/internal/config"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/models"
)

// task is one contact notification awaiting delivery.
type task struct {
	alert   models.Alert
	contact models.EmergencyContact
}

// channel names the medium a contact is reached on.
type channel string

const (
	channelTelegram channel = "telegram"
	channelSMS      channel = "sms"
	channelEmail    channel = "email"
	channelNone     channel = ""
)

// sendAttempts is how often one delivery is retried before giving up.
const sendAttempts = 3

// Notifier delivers new-alert notifications to emergency contacts over
// whatever channel each contact registered: telegram, SMS, then email.
// Delivery is queued and handled by a worker pool so alert creation never
// waits on a provider.
type Notifier struct {
	cfg     config.Config
	logger  *logging.Logger
	tasks   chan task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
	limiter *rate.Limiter
	sms     *twilio.RestClient
}

func NewNotifier(cfg config.Config, logger *logging.Logger) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		cfg:     cfg,
		logger:  logger,
		tasks:   make(chan task, cfg.Contacts.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Telegram.RatePerSecond)), cfg.Telegram.RatePerSecond),
	}
	if cfg.SMS.AccountSID != "" {
		n.sms = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.SMS.AccountSID,
			Password: cfg.SMS.AuthToken,
		})
	}
	return n
}

// Start launches the worker pool.
func (n *Notifier) Start(wg *sync.WaitGroup) {
	n.wg = wg
	for i := 0; i < n.cfg.Contacts.MaxWorkers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}
}

// Stop drains the workers.
func (n *Notifier) Stop() {
	n.cancel()
}

// NotifyNewAlert enqueues one delivery per contact. A full queue drops the
// task; the in-app push already happened and contact channels are best-effort.
func (n *Notifier) NotifyNewAlert(alert models.Alert, cs []models.EmergencyContact) {
	for _, c := range cs {
		select {
		case n.tasks <- task{alert: alert, contact: c}:
		default:
			n.logger.Errorf("Contact queue full, dropping notification for %s on alert %s", c.Name, alert.Code)
		}
	}
}

func (n *Notifier) worker(id int) {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			n.logger.Infof("Contact worker %d stopped", id)
			return
		case t := <-n.tasks:
			n.handle(t)
		}
	}
}

// channelFor picks the contact's channel, preferring telegram over SMS over
// email, skipping channels the deployment has not configured.
func (n *Notifier) channelFor(c models.EmergencyContact) channel {
	switch {
	case c.ChatID != 0 && n.cfg.Telegram.BotToken != "":
		return channelTelegram
	case c.Phone != "" && n.cfg.SMS.AccountSID != "":
		return channelSMS
	case c.Email != "" && n.cfg.Email.SMTPServer != "":
		return channelEmail
	}
	return channelNone
}

func (n *Notifier) handle(t task) {
	subject, body := composeMessage(t.alert)

	var err error
	switch n.channelFor(t.contact) {
	case channelTelegram:
		err = n.sendTelegram(t.contact, subject, body)
	case channelSMS:
		err = n.sendSMS(t.contact, subject, body)
	case channelEmail:
		err = n.sendEmail(t.contact, subject, body)
	default:
		n.logger.Warnf("Contact %s has no reachable channel for alert %s", t.contact.Name, t.alert.Code)
		return
	}

	if err != nil {
		n.logger.Errorf("Failed to notify contact %s for alert %s: %v", t.contact.Name, t.alert.Code, err)
		return
	}
	n.logger.Infof("Notified contact %s for alert %s", t.contact.Name, t.alert.Code)
}

// withRetry runs one delivery up to sendAttempts times.
func (n *Notifier) withRetry(ch channel, target string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		n.logger.Errorf("%s delivery to %s failed (attempt %d/%d): %v", ch, target, attempt, sendAttempts, lastErr)
		if attempt < sendAttempts {
			time.Sleep(time.Second)
		}
	}
	return fmt.Errorf("%s delivery to %s failed after %d attempts: %w", ch, target, sendAttempts, lastErr)
}

func composeMessage(a models.Alert) (string, string) {
	subject := fmt.Sprintf("Emergency alert %s: %s", a.Code, a.Title)
	reporter := a.ReporterID
	if a.Anonymous {
		reporter = "an anonymous reporter"
	}
	body := fmt.Sprintf(
		"An emergency was reported by %s.\nType: %s\nSeverity: %s\nLocation: %s",
		reporter, a.Type, a.Severity, describeLocation(a.Location))
	if a.Description != "" {
		body += "\n\n" + a.Description
	}
	return subject, body
}

func describeLocation(loc models.Location) string {
	if loc.Address != "" {
		return loc.Address
	}
	if loc.Landmark != "" {
		return loc.Landmark
	}
	return fmt.Sprintf("%.5f, %.5f", loc.Latitude, loc.Longitude)
}
