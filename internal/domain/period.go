package domain

import (
	"fmt"
	"strings"
	"time"
)

const periodLayout = "2006-01"

// ValidatePeriod checks a processing period of the form YYYY-MM and returns it trimmed.
func ValidatePeriod(period string) (string, error) {
	period = strings.TrimSpace(period)
	if _, err := time.Parse(periodLayout, period); err != nil {
		return "", fmt.Errorf("%w: %q (expected YYYY-MM)", ErrInvalidPeriod, period)
	}
	return period, nil
}

// PreviousPeriod returns the calendar month before period.
func PreviousPeriod(period string) (string, error) {
	t, err := time.Parse(periodLayout, strings.TrimSpace(period))
	if err != nil {
		return "", fmt.Errorf("%w: %q (expected YYYY-MM)", ErrInvalidPeriod, period)
	}
	return t.AddDate(0, -1, 0).Format(periodLayout), nil
}
