package loan

import "time"

// FixedDueDates places the first installment firstOffset days after base and steps
// by freq for the rest. Monthly steps keep the first due date's day of month,
// clamped to the end of shorter months.
func FixedDueDates(base time.Time, firstOffset, count int, freq Frequency) []time.Time {
	first := dateOf(base).AddDate(0, 0, firstOffset)
	dates := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		var due time.Time
		switch freq {
		case FrequencyDaily:
			due = first.AddDate(0, 0, i)
		case FrequencyWeekly:
			due = first.AddDate(0, 0, 7*i)
		case FrequencyBiweekly:
			due = first.AddDate(0, 0, 14*i)
		default:
			due = addMonthsClamped(first, i, first.Day())
		}
		dates = append(dates, due)
	}
	return dates
}

// SalaryDueDates anchors installments to the borrower's salary day. The first due
// date is the next salary day on or after base unless it is closer than minTenor
// days, in which case the following month's salary day is used.
func SalaryDueDates(base time.Time, salaryDay, minTenor, count int) []time.Time {
	base = dateOf(base)
	first := salaryDateIn(base.Year(), base.Month(), salaryDay)
	if first.Before(base) {
		first = nextSalaryDate(first, salaryDay)
	}
	if daysBetween(base, first) < minTenor {
		first = nextSalaryDate(first, salaryDay)
	}

	dates := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		dates = append(dates, addMonthsClamped(first, i, salaryDay))
	}
	return dates
}

func nextSalaryDate(from time.Time, salaryDay int) time.Time {
	return addMonthsClamped(from, 1, salaryDay)
}

func salaryDateIn(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, clampDay(year, month, day), 0, 0, 0, 0, time.UTC)
}

// addMonthsClamped moves t by n calendar months and lands on day, or on the last day
// of the target month when it is shorter. time.AddDate would overflow into the next month.
func addMonthsClamped(t time.Time, n, day int) time.Time {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return salaryDateIn(firstOfMonth.Year(), firstOfMonth.Month(), day)
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}
