package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/skymarket/skymarket-backend/internal/config"
	"github.com/skymarket/skymarket-backend/internal/models"
	"gopkg.in/gomail.v2"
)

// EmailService sends transactional email over SMTP. Send failures are logged
// by callers and never fail the triggering request.
type EmailService struct {
	cfg    config.EmailConfig
	logger *logrus.Logger
}

// NewEmailService creates a new EmailService
func NewEmailService(cfg config.EmailConfig, logger *logrus.Logger) *EmailService {
	return &EmailService{cfg: cfg, logger: logger}
}

// IsConfigured returns true when an SMTP host is set. In development the
// service runs unconfigured and sends are skipped.
func (s *EmailService) IsConfigured() bool {
	return s.cfg.Host != ""
}

// SendBookingCreated notifies a provider about a new booking request
func (s *EmailService) SendBookingCreated(to string, booking *models.Booking) error {
	subject := "New booking request on SkyMarket"
	body := fmt.Sprintf(
		"You have a new booking request.\n\nBooking: %s\nScheduled: %s\nPickup: %s\nTotal: %s\n\nOpen your dashboard to accept or decline.",
		booking.ID, booking.ScheduledAt.Format("Mon, 02 Jan 2006 15:04"),
		booking.PickupAddress, booking.PriceTotal.StringFixed(2),
	)
	return s.send(to, subject, body)
}

// SendBookingCompleted sends the consumer a completion receipt
func (s *EmailService) SendBookingCompleted(to string, booking *models.Booking) error {
	subject := "Your SkyMarket booking is complete"
	body := fmt.Sprintf(
		"Your booking %s has been completed.\n\nTotal charged: %s\n\nThank you for using SkyMarket.",
		booking.ID, booking.PriceTotal.StringFixed(2),
	)
	return s.send(to, subject, body)
}

func (s *EmailService) send(to, subject, body string) error {
	if !s.IsConfigured() {
		s.logger.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("SMTP not configured, skipping email")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromAddress)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
