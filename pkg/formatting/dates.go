package formatting

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the dd/MM/yyyy format the portal renders everywhere.
const DateLayout = "02/01/2006"

// ErrInvalidDate is returned when a string cannot be parsed as a portal date.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses a dd/MM/yyyy string. Trailing time-of-day tokens are
// ignored: list views render "dd/MM/yyyy HH:mm" while detail views render
// the bare date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders a date in the portal's dd/MM/yyyy format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateWindow returns the reference date and the (days-1) preceding calendar
// days, formatted with DateLayout. The list view and the detail docket do
// not always record the same date for one event, so detail scraping matches
// against this tolerance window instead of a single date.
func DateWindow(ref time.Time, days int) []string {
	if days < 1 {
		days = 1
	}

	window := make([]string, 0, days)
	for d := range days {
		window = append(window, FormatDate(ref.AddDate(0, 0, -d)))
	}
	return window
}
