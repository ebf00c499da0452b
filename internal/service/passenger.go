package service

import (
	"strings"
	"time"

	"github.com/voyago/flight-bookings/internal/domain"
	"github.com/voyago/flight-bookings/internal/duffel"
)

// derivedTitle recomputes the passenger title from gender and age at
// booking time. A persisted title is never trusted; stale gender/title
// combinations get rejected by airlines.
func derivedTitle(gender, bornOn string, now time.Time) string {
	if strings.EqualFold(gender, "m") || strings.EqualFold(gender, "male") {
		return "mr"
	}
	if ageAt(bornOn, now) < 12 {
		return "miss"
	}
	return "ms"
}

func ageAt(bornOn string, now time.Time) int {
	dob, err := time.Parse("2006-01-02", bornOn)
	if err != nil {
		return 0
	}
	years := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		years--
	}
	return years
}

// normalizePhone strips whitespace and hyphens and keeps only plausible
// lengths (10-17 characters, leading + included). Anything else is
// dropped rather than forwarded invalid.
func normalizePhone(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		}
		return r
	}, raw)
	if len(cleaned) < 10 || len(cleaned) > 17 {
		return ""
	}
	return cleaned
}

// buildOrderPassengers maps booking passengers to the provider order
// payload. Offer passenger ids are assigned in the offer's declared order
// and the nth lap infant is attached to the nth adult.
func buildOrderPassengers(passengers []domain.Passenger, offerPassengers []duffel.OfferPassenger, contact domain.Contact, now time.Time) []duffel.OrderPassenger {
	ids := make(map[domain.PassengerType][]string)
	for _, op := range offerPassengers {
		t := domain.PassengerType(op.Type)
		if op.Type == "infant_without_seat" {
			t = domain.PassengerInfant
		}
		ids[t] = append(ids[t], op.ID)
	}

	out := make([]duffel.OrderPassenger, 0, len(passengers))
	var adultIdx []int
	var infantIDs []string
	taken := make(map[domain.PassengerType]int)

	for _, p := range passengers {
		var id string
		if pool := ids[p.Type]; taken[p.Type] < len(pool) {
			id = pool[taken[p.Type]]
			taken[p.Type]++
		}

		email := p.Email
		if email == "" {
			email = contact.Email
		}
		phone := normalizePhone(p.Phone)
		if phone == "" {
			phone = normalizePhone(contact.Phone)
		}

		op := duffel.OrderPassenger{
			ID:          id,
			Type:        string(p.Type),
			Title:       derivedTitle(p.Gender, p.BornOn, now),
			GivenName:   p.GivenName,
			FamilyName:  p.FamilyName,
			Gender:      p.Gender,
			BornOn:      p.BornOn,
			Email:       email,
			PhoneNumber: phone,
		}

		switch p.Type {
		case domain.PassengerAdult:
			adultIdx = append(adultIdx, len(out))
		case domain.PassengerInfant:
			infantIDs = append(infantIDs, id)
		}
		out = append(out, op)
	}

	// nth infant rides on the nth adult's lap
	for i, infantID := range infantIDs {
		if i < len(adultIdx) {
			out[adultIdx[i]].InfantPassengerID = infantID
		}
	}

	return out
}
