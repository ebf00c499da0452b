package mailer

import "github.com/voyago/flight-bookings/pkg/logger"

// DevMailer prints emails to the logs instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (m *DevMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	logger.Info("DEV MAILER: email",
		"to", toEmail,
		"subject", subject,
		"text", text,
	)
	return "dev-mode", nil
}

func (m *DevMailer) SendBookingConfirmation(c BookingConfirmation) error {
	logger.Info("DEV MAILER: booking confirmation",
		"to", c.Email,
		"reference", c.Reference,
		"pnr", c.PNR,
		"amount", c.Amount,
		"currency", c.Currency,
		"flight", c.FlightNo,
	)
	return nil
}
