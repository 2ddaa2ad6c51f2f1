package ledger

import (
	"time"

	"cloud.google.com/go/civil"
)

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay builds a date in year/month using day, or the last day of the
// month when day does not exist in it.
func ClampDay(year int, month time.Month, day int) civil.Date {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

// InstallmentDate returns the due date of the installment offset months
// after start. The month carries into the year explicitly and the start day
// is clamped to the target month.
func InstallmentDate(start civil.Date, offset int) civil.Date {
	year := start.Year
	month := int(start.Month) + offset
	for month > 12 {
		month -= 12
		year++
	}
	return ClampDay(year, time.Month(month), start.Day)
}

// MonthBounds returns the first and last day of a month.
func MonthBounds(year int, month time.Month) (civil.Date, civil.Date) {
	return civil.Date{Year: year, Month: month, Day: 1}, ClampDay(year, month, 31)
}

// PreviousMonth returns the month before year/month.
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}
