package service

import (
	"fmt"
	"strconv"
	"strings"
)

// Amounts travel as decimal strings in the provider's style. Markup math
// happens in integer cents so 500.00 - 430.00 is 70.00, not 69.99999.
func parseCents(amount string) (int64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(amount), ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	negative := strings.HasPrefix(whole, "-")
	cents := n * 100

	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", amount)
		}
		if negative {
			cents -= f
		} else {
			cents += f
		}
	}
	return cents, nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// computeMarkup is customerTotal - providerBase as a decimal string.
func computeMarkup(customerTotal, providerBase string) (string, error) {
	total, err := parseCents(customerTotal)
	if err != nil {
		return "", err
	}
	base, err := parseCents(providerBase)
	if err != nil {
		return "", err
	}
	return formatCents(total - base), nil
}
