package utils

import (
	"log"
	"time"
)

// DefaultDateFormat matches models.TradeDateFormat; kept here so callers
// that only deal in display dates avoid importing models.
const DefaultDateFormat = "1/2/06"

// ParseDate parses a display date string using the default format.
// Logs and returns zero time if parsing fails.
func ParseDate(dateStr string) time.Time {
	t, err := time.Parse(DefaultDateFormat, dateStr)
	if err != nil {
		log.Printf("Error parsing date '%s' with format '%s': %v. Returning zero time.", dateStr, DefaultDateFormat, err)
		return time.Time{}
	}
	return t
}

// FormatTradeDate renders an execution time as a display date.
func FormatTradeDate(t time.Time) string {
	return t.Format(DefaultDateFormat)
}
