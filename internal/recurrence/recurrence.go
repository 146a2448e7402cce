// Package recurrence holds calendar rules for installment schedules and
// recurring entries. All dates are compared at day granularity in UTC.
package recurrence

import (
	"fmt"
	"time"

	"caixa/backend/internal/domain"
)

func day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a time.Time, b time.Time) int {
	return int(day(b).Sub(day(a)).Hours() / 24)
}

// ShouldGenerate reports whether entry is due on today.
func ShouldGenerate(entry domain.RecurringEntry, today time.Time) bool {
	today = day(today)
	last := entry.StartDate
	if entry.LastGenerated != nil {
		last = *entry.LastGenerated
	}
	last = day(last)

	switch entry.Frequency {
	case domain.FrequencyDaily:
		return DaysBetween(last, today) >= 1
	case domain.FrequencyWeekly:
		return DaysBetween(last, today) >= 7
	case domain.FrequencyMonthly:
		if today.Year() != last.Year() {
			return today.Year() > last.Year()
		}
		return today.Month() > last.Month()
	case domain.FrequencyYearly:
		return today.Year() > last.Year()
	}
	return false
}

// IsCandidate filters entries before the frequency rule runs.
func IsCandidate(entry domain.RecurringEntry, today time.Time) bool {
	today = day(today)
	if !entry.Active {
		return false
	}
	if day(entry.StartDate).After(today) {
		return false
	}
	if entry.EndDate != nil && day(*entry.EndDate).Before(today) {
		return false
	}
	return entry.LastGenerated == nil || day(*entry.LastGenerated).Before(today)
}

func ValidFrequency(freq string) bool {
	switch freq {
	case domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly, domain.FrequencyYearly:
		return true
	}
	return false
}

// Schedule splits total into n amounts due monthly from start. The last
// installment absorbs the division remainder so the amounts sum to total.
// Month overflow follows time.AddDate normalisation (Jan 31 + 1 month = Mar 3).
func Schedule(total int64, n int, start time.Time) ([]int64, []time.Time) {
	if n < 1 {
		return nil, nil
	}
	base := total / int64(n)
	amounts := make([]int64, n)
	dates := make([]time.Time, n)
	start = day(start)
	for i := 0; i < n; i++ {
		amounts[i] = base
		dates[i] = start.AddDate(0, i, 0)
	}
	amounts[n-1] += total - base*int64(n)
	return amounts, dates
}

func InstallmentLabel(description string, i int, n int) string {
	return fmt.Sprintf("%s - installment %d/%d", description, i, n)
}

// MonthKey formats t as "2006-01".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// OccurrencesInMonth counts how many times entry would fire inside the
// calendar month that contains monthStart, honouring start and end dates.
func OccurrencesInMonth(entry domain.RecurringEntry, monthStart time.Time) int {
	first := time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	from := day(entry.StartDate)
	if from.Before(first) {
		from = first
	}
	to := last
	if entry.EndDate != nil && day(*entry.EndDate).Before(to) {
		to = day(*entry.EndDate)
	}
	if to.Before(from) {
		return 0
	}
	switch entry.Frequency {
	case domain.FrequencyDaily:
		return DaysBetween(from, to) + 1
	case domain.FrequencyWeekly:
		if offset := DaysBetween(entry.StartDate, from) % 7; offset > 0 {
			from = from.AddDate(0, 0, 7-offset)
		}
		if to.Before(from) {
			return 0
		}
		return DaysBetween(from, to)/7 + 1
	case domain.FrequencyMonthly:
		return 1
	case domain.FrequencyYearly:
		if day(entry.StartDate).Month() == first.Month() {
			return 1
		}
	}
	return 0
}
