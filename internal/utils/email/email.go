package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Dan9191/vehicle-valuation/internal/config"
	"github.com/Dan9191/vehicle-valuation/internal/utils"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// SendFunc delivers a prepared message to an SMTP relay
type SendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   SendFunc
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// WithSendFunc replaces the SMTP transport
func (s *Sender) WithSendFunc(fn SendFunc) *Sender {
	s.send = fn
	return s
}

// Enabled reports whether both the relay and the review desk address are configured
func (s *Sender) Enabled() bool {
	return s.cfg.SMTPHost != "" && s.cfg.ReviewEmail != ""
}

// SendReviewRequired notifies the underwriting desk that an IDV needs manual review
func (s *Sender) SendReviewRequired(res *valuation.IDVResult) error {
	e := s.newReviewEmail(res)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send review notification for %s: %v", res.RegistrationNumber, err)
		return fmt.Errorf("failed to send review notification: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.ReviewEmail, e.Subject)
	return nil
}

func (s *Sender) newReviewEmail(res *valuation.IDVResult) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.ReviewEmail}

	rc := res.RegistrationNumber
	if rc == "" {
		rc = "unregistered vehicle"
	}
	e.Subject = fmt.Sprintf("IDV Manual Review Required: %s", rc)

	body := fmt.Sprintf("An IDV calculation for %s needs manual review.\n\n", rc)
	body += fmt.Sprintf(
		"Policy: %s\n"+
			"Vehicle age: %d months\n"+
			"Calculated IDV: %s\n"+
			"Validation: %s\n"+
			"Confidence: %.0f\n",
		res.Policy, res.AgeMonths, utils.FormatINR(res.IDV), res.ValidationStatus, res.ConfidenceScore,
	)
	if res.MarketMedian != nil && res.DifferencePercent != nil {
		body += fmt.Sprintf("Market median: %s (difference %.1f%%)\n",
			utils.FormatINR(int64(*res.MarketMedian)), *res.DifferencePercent)
	}
	if len(res.BreakdownLog) > 0 {
		body += "\nCalculation steps:\n- " + strings.Join(res.BreakdownLog, "\n- ") + "\n"
	}
	body += "\nBest regards,\nVehicle Valuation Service"
	e.Text = []byte(body)
	return e
}
