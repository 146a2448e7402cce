package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestShouldGenerate(t *testing.T) {
	tests := []struct {
		name  string
		entry domain.RecurringEntry
		today time.Time
		want  bool
	}{
		{"daily same day", domain.RecurringEntry{Frequency: domain.FrequencyDaily, StartDate: date(2025, 1, 1), LastGenerated: ptr(date(2025, 1, 5))}, date(2025, 1, 5), false},
		{"daily next day", domain.RecurringEntry{Frequency: domain.FrequencyDaily, StartDate: date(2025, 1, 1), LastGenerated: ptr(date(2025, 1, 5))}, date(2025, 1, 6), true},
		{"daily never generated uses start", domain.RecurringEntry{Frequency: domain.FrequencyDaily, StartDate: date(2025, 1, 1)}, date(2025, 1, 2), true},
		{"weekly six days", domain.RecurringEntry{Frequency: domain.FrequencyWeekly, StartDate: date(2025, 1, 1), LastGenerated: ptr(date(2025, 1, 1))}, date(2025, 1, 7), false},
		{"weekly seven days", domain.RecurringEntry{Frequency: domain.FrequencyWeekly, StartDate: date(2025, 1, 1), LastGenerated: ptr(date(2025, 1, 1))}, date(2025, 1, 8), true},
		{"monthly same month", domain.RecurringEntry{Frequency: domain.FrequencyMonthly, StartDate: date(2025, 1, 1), LastGenerated: ptr(date(2025, 3, 2))}, date(2025, 3, 31), false},
		{"monthly next month", domain.RecurringEntry{Frequency: domain.FrequencyMonthly, StartDate: date(2025, 1, 1), LastGenerated: ptr(date(2025, 3, 31))}, date(2025, 4, 1), true},
		{"monthly across year", domain.RecurringEntry{Frequency: domain.FrequencyMonthly, StartDate: date(2024, 1, 1), LastGenerated: ptr(date(2024, 12, 15))}, date(2025, 1, 2), true},
		{"monthly earlier month later year", domain.RecurringEntry{Frequency: domain.FrequencyMonthly, StartDate: date(2024, 1, 1), LastGenerated: ptr(date(2024, 11, 15))}, date(2025, 2, 2), true},
		{"yearly same year", domain.RecurringEntry{Frequency: domain.FrequencyYearly, StartDate: date(2025, 1, 1), LastGenerated: ptr(date(2025, 1, 1))}, date(2025, 12, 31), false},
		{"yearly next year", domain.RecurringEntry{Frequency: domain.FrequencyYearly, StartDate: date(2025, 1, 1), LastGenerated: ptr(date(2025, 12, 31))}, date(2026, 1, 1), true},
		{"unknown frequency", domain.RecurringEntry{Frequency: "hourly", StartDate: date(2025, 1, 1)}, date(2026, 1, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldGenerate(tt.entry, tt.today))
		})
	}
}

func TestIsCandidate(t *testing.T) {
	today := date(2025, 6, 10)
	base := domain.RecurringEntry{Active: true, Frequency: domain.FrequencyDaily, StartDate: date(2025, 1, 1)}

	assert.True(t, IsCandidate(base, today))

	inactive := base
	inactive.Active = false
	assert.False(t, IsCandidate(inactive, today))

	future := base
	future.StartDate = date(2025, 6, 11)
	assert.False(t, IsCandidate(future, today))

	ended := base
	ended.EndDate = ptr(date(2025, 6, 9))
	assert.False(t, IsCandidate(ended, today))

	endsToday := base
	endsToday.EndDate = ptr(today)
	assert.True(t, IsCandidate(endsToday, today))

	generatedToday := base
	generatedToday.LastGenerated = ptr(today.Add(15 * time.Hour))
	assert.False(t, IsCandidate(generatedToday, today))
}

func TestScheduleEvenSplit(t *testing.T) {
	amounts, dates := Schedule(30000, 3, date(2025, 1, 15))

	assert.Equal(t, []int64{10000, 10000, 10000}, amounts)
	assert.Equal(t, []time.Time{date(2025, 1, 15), date(2025, 2, 15), date(2025, 3, 15)}, dates)
}

func TestScheduleRemainderGoesToLastInstallment(t *testing.T) {
	amounts, _ := Schedule(10000, 3, date(2025, 1, 1))

	require.Len(t, amounts, 3)
	assert.Equal(t, []int64{3333, 3333, 3334}, amounts)
	var sum int64
	for _, a := range amounts {
		sum += a
	}
	assert.Equal(t, int64(10000), sum)
}

func TestScheduleMonthOverflowNormalises(t *testing.T) {
	_, dates := Schedule(200, 2, date(2025, 1, 31))
	assert.Equal(t, date(2025, 3, 3), dates[1])
}

func TestOccurrencesInMonth(t *testing.T) {
	monthly := domain.RecurringEntry{Frequency: domain.FrequencyMonthly, StartDate: date(2025, 1, 10)}
	assert.Equal(t, 1, OccurrencesInMonth(monthly, date(2025, 3, 1)))
	assert.Equal(t, 0, OccurrencesInMonth(monthly, date(2024, 12, 1)))

	weekly := domain.RecurringEntry{Frequency: domain.FrequencyWeekly, StartDate: date(2025, 1, 1)}
	// Wednesdays in March 2025: 5, 12, 19, 26.
	assert.Equal(t, 4, OccurrencesInMonth(weekly, date(2025, 3, 1)))

	daily := domain.RecurringEntry{Frequency: domain.FrequencyDaily, StartDate: date(2025, 2, 20), EndDate: ptr(date(2025, 2, 24))}
	assert.Equal(t, 5, OccurrencesInMonth(daily, date(2025, 2, 1)))

	yearly := domain.RecurringEntry{Frequency: domain.FrequencyYearly, StartDate: date(2024, 5, 1)}
	assert.Equal(t, 1, OccurrencesInMonth(yearly, date(2025, 5, 1)))
	assert.Equal(t, 0, OccurrencesInMonth(yearly, date(2025, 6, 1)))
}
