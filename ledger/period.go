package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Months lists the twelve month names in calendar order, as shown to users.
var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Period selects a single calendar month of a single year.
type Period struct {
	Month time.Month
	Year  int
}

// ParsePeriod builds a Period from a month name and a four digit year.
// Month matching is case-insensitive and accepts full English names,
// three-letter abbreviations and the numbers 1 through 12.
func ParsePeriod(month, year string) (Period, error) {
	m, err := ParseMonth(month)
	if err != nil {
		return Period{}, err
	}

	year = strings.TrimSpace(year)
	if len(year) != 4 {
		return Period{}, fmt.Errorf("invalid year %q, expected 4 digits", year)
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 {
		return Period{}, fmt.Errorf("invalid year %q, expected 4 digits", year)
	}

	return Period{Month: m, Year: y}, nil
}

// ParseMonth resolves a month name, abbreviation or number.
func ParseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("month is required")
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("invalid month %q", s)
		}
		return time.Month(n), nil
	}

	for i, name := range Months {
		if strings.EqualFold(s, name) || (len(s) == 3 && strings.EqualFold(s, name[:3])) {
			return time.Month(i + 1), nil
		}
	}

	return 0, fmt.Errorf("invalid month %q", s)
}

// Contains reports whether t falls inside the period. Only the calendar
// date as written in the ledger matters, so t's location is not converted.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// Previous returns the period of the month before p.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Month: time.December, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

// IsZero reports whether the period was never set.
func (p Period) IsZero() bool {
	return p.Month == 0 && p.Year == 0
}

// MonthName returns the full English month name.
func (p Period) MonthName() string {
	return p.Month.String()
}

// YearString returns the year as a four digit string.
func (p Period) YearString() string {
	return fmt.Sprintf("%04d", p.Year)
}

// String returns "March 2024".
func (p Period) String() string {
	return fmt.Sprintf("%s %04d", p.Month, p.Year)
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Month: t.Month(), Year: t.Year()}
}
