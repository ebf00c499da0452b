package mailer

// BookingConfirmation is the fire-and-forget "booking confirmed" message.
type BookingConfirmation struct {
	Email       string
	Name        string
	Reference   string
	PNR         string
	Amount      string
	Currency    string
	Route       string
	FlightNo    string
	DepartureAt string
}

type Service interface {
	Send(toEmail, toName, subject, text, html string) (string, error)
	SendBookingConfirmation(c BookingConfirmation) error
}
