package budget

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

var (
	daysPerYear = decimal.RequireFromString("365.25")
	// 365.25/12 rounded to two places.
	daysPerMonth = decimal.RequireFromString("30.44")

	periodDays = map[models.Period]decimal.Decimal{
		models.PeriodDaily:   decimal.NewFromInt(1),
		models.PeriodWeekly:  decimal.NewFromInt(7),
		models.PeriodMonthly: daysPerMonth,
		models.PeriodYearly:  daysPerYear,
	}
)

// Days returns the canonical day count of p.
func Days(p models.Period) (decimal.Decimal, error) {
	d, ok := periodDays[p]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
	return d, nil
}

// PeriodRange returns the calendar interval [start, end) of period that
// contains date, in date's location. Weeks run Monday to Sunday.
func PeriodRange(period models.Period, date time.Time) (time.Time, time.Time, error) {
	y, m, d := date.Date()
	loc := date.Location()

	switch period {
	case models.PeriodDaily:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1), nil
	case models.PeriodWeekly:
		offset := (int(date.Weekday()) + 6) % 7
		start := time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 7), nil
	case models.PeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	case models.PeriodYearly:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
}

// ConvertAmount projects an amount expressed per from-period onto to-period
// using fixed day counts.
func ConvertAmount(amount decimal.Decimal, from, to models.Period) (decimal.Decimal, error) {
	fromDays, err := Days(from)
	if err != nil {
		return decimal.Zero, err
	}
	toDays, err := Days(to)
	if err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return amount, nil
	}
	return amount.Mul(toDays).Div(fromDays), nil
}
