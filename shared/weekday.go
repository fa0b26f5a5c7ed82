package shared

import (
	"fmt"
	"time"
)

// Weekday represents a calendar day of the week.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// String stringifies the provided weekday.
func (d Weekday) String() string {
	switch d {
	case Sunday:
		return "Sunday"
	case Monday:
		return "Monday"
	case Tuesday:
		return "Tuesday"
	case Wednesday:
		return "Wednesday"
	case Thursday:
		return "Thursday"
	case Friday:
		return "Friday"
	case Saturday:
		return "Saturday"
	default:
		return "unknown"
	}
}

// Previous returns the calendar day preceding the provided weekday.
func (d Weekday) Previous() Weekday {
	return (d + 6) % 7
}

// ParseWeekday parses a weekday from the provided string.
func ParseWeekday(day string) (Weekday, error) {
	switch day {
	case "Sunday":
		return Sunday, nil
	case "Monday":
		return Monday, nil
	case "Tuesday":
		return Tuesday, nil
	case "Wednesday":
		return Wednesday, nil
	case "Thursday":
		return Thursday, nil
	case "Friday":
		return Friday, nil
	case "Saturday":
		return Saturday, nil
	default:
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidArgument, day)
	}
}

// WeekdayFromTime returns the weekday of the provided time.
func WeekdayFromTime(t time.Time) Weekday {
	return Weekday(t.Weekday())
}
