package delivery

import (
	"errors"
	"fmt"
	"time"

	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
)

var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive range of UTC days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DefaultRange covers the last days up to today.
func DefaultRange(now time.Time, days int) DateRange {
	end := day(now)
	return DateRange{Start: end.AddDate(0, 0, -days), End: end}
}

// ParseRange reads YYYY-MM-DD bounds. An empty end is today and an empty
// start is days before the end.
func ParseRange(start, end string, now time.Time, days int) (DateRange, error) {
	r := DefaultRange(now, days)
	if end != "" {
		t, err := time.Parse(dataset.DateLayout, end)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end date %q: %v", ErrInvalidRange, end, err)
		}
		r.End = t
	}
	r.Start = r.End.AddDate(0, 0, -days)
	if start != "" {
		t, err := time.Parse(dataset.DateLayout, start)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start date %q: %v", ErrInvalidRange, start, err)
		}
		r.Start = t
	}
	if err := r.Validate(now); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

func (r DateRange) Validate(now time.Time) error {
	if !day(r.Start).Before(day(r.End)) {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidRange, r.Start.Format(dataset.DateLayout), r.End.Format(dataset.DateLayout))
	}
	if day(r.End).After(day(now)) {
		return fmt.Errorf("%w: end %s is in the future", ErrInvalidRange, r.End.Format(dataset.DateLayout))
	}
	return nil
}

func (r DateRange) String() string {
	return r.Start.Format(dataset.DateLayout) + "_" + r.End.Format(dataset.DateLayout)
}
