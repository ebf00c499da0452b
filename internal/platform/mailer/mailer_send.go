package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type Mailer struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	Enabled bool
}

func NewMailer(apiKey, fromName, fromEmail string) *Mailer {
	m := &Mailer{
		Enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if m.Enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *Mailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	if !m.Enabled {
		return "", errors.New("mailer disabled (missing MAILERSEND_API_KEY or MAIL_FROM_EMAIL)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	// MailerSend uses X-Message-Id
	return res.Header.Get("X-Message-Id"), nil
}

func (m *Mailer) SendBookingConfirmation(c BookingConfirmation) error {
	subject := fmt.Sprintf("Booking confirmed - %s", c.Reference)
	text := fmt.Sprintf(
		"Hi %s,\n\nYour flight booking %s is confirmed.\nAirline reference (PNR): %s\nFlight: %s %s departing %s\nAmount due: %s %s\n\nComplete payment before the deadline to receive your tickets.",
		c.Name, c.Reference, c.PNR, c.FlightNo, c.Route, c.DepartureAt, c.Amount, c.Currency,
	)
	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your flight booking <b>%s</b> is confirmed.</p><p>Airline reference (PNR): <b>%s</b><br>Flight: %s %s departing %s<br>Amount due: <b>%s %s</b></p><p>Complete payment before the deadline to receive your tickets.</p>`,
		c.Name, c.Reference, c.PNR, c.FlightNo, c.Route, c.DepartureAt, c.Amount, c.Currency,
	)
	_, err := m.Send(c.Email, c.Name, subject, text, html)
	return err
}
