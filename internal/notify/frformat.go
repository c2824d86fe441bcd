package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The platform's audience is francophone; rendered dates and amounts follow
// French conventions.

var frWeekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

var frMonths = [...]string{"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre"}

// formatDateFR renders a long French date, e.g. "lundi 12 janvier 2026".
func formatDateFR(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d", frWeekdays[t.Weekday()], t.Day(), frMonths[t.Month()-1], t.Year())
}

// formatTimeFR renders a 24-hour clock time, e.g. "14:30".
func formatTimeFR(t time.Time) string {
	return t.Format("15:04")
}

// groupThousandsFR inserts French thousand separators: 1234567 -> "1 234 567".
func groupThousandsFR(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if neg {
		return "-" + out
	}
	return out
}

// formatPrice renders an amount in its currency. Guinean francs carry no
// decimals; other currencies keep two.
func formatPrice(amount float64, currency string) string {
	if currency == "" || currency == "GNF" {
		return groupThousandsFR(int64(amount)) + " GNF"
	}
	whole := int64(amount)
	cents := int64((amount - float64(whole)) * 100)
	if cents < 0 {
		cents = -cents
	}
	return fmt.Sprintf("%s,%02d %s", groupThousandsFR(whole), cents, currency)
}
