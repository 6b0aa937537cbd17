package core

import (
	"errors"
	"fmt"
	"iter"
)

const (
	RecurrenceNone             RecurrenceType = "none"
	RecurrenceFifthBusinessDay RecurrenceType = "fifth_business_day"
	RecurrenceDay15            RecurrenceType = "day_15"
	RecurrenceLastDay          RecurrenceType = "last_day"
	RecurrenceCustom           RecurrenceType = "custom"
)

// LastDayOfMonth is the anchor of RecurrenceLastDay. Occurrence dates clamp
// it to the real length of each month.
const LastDayOfMonth = 31

var (
	ErrInvalidRule  = errors.New("invalid recurrence rule")
	ErrInactiveRule = errors.New("recurrence rule is inactive")
)

type (
	RecurrenceType string

	// RecurrenceRule is the recurrence part of a transaction. Day is only
	// meaningful for custom rules, Months caps the number of occurrences.
	RecurrenceRule struct {
		Type   RecurrenceType
		Day    *int
		Months *int
	}
)

// ParseRecurrenceType maps a wire value to a RecurrenceType. The empty string
// maps to RecurrenceNone.
func ParseRecurrenceType(s string) (RecurrenceType, error) {
	t := RecurrenceType(s)
	switch t {
	case "":
		return RecurrenceNone, nil
	case RecurrenceNone, RecurrenceFifthBusinessDay, RecurrenceDay15, RecurrenceLastDay, RecurrenceCustom:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown recurrence type %q", ErrInvalidRule, s)
}

func (t RecurrenceType) String() string {
	if t == "" {
		return string(RecurrenceNone)
	}
	return string(t)
}

// Active reports whether the rule produces occurrences at all.
func (r RecurrenceRule) Active() bool {
	return r.Type != "" && r.Type != RecurrenceNone
}

// ResolveDueDay returns the anchor day of month for the rule.
// Inactive rules fail with ErrInactiveRule; a custom rule without a day in
// 1..31 or an unknown type fails with ErrInvalidRule.
func ResolveDueDay(r RecurrenceRule) (int, error) {
	switch r.Type {
	case "", RecurrenceNone:
		return 0, ErrInactiveRule
	case RecurrenceFifthBusinessDay:
		// fixed day 5, not a business-day calendar
		return 5, nil
	case RecurrenceDay15:
		return 15, nil
	case RecurrenceLastDay:
		return LastDayOfMonth, nil
	case RecurrenceCustom:
		if r.Day == nil {
			return 0, fmt.Errorf("%w: custom recurrence requires recurring_day", ErrInvalidRule)
		}
		if *r.Day < 1 || *r.Day > 31 {
			return 0, fmt.Errorf("%w: recurring_day %d out of range 1-31", ErrInvalidRule, *r.Day)
		}
		return *r.Day, nil
	}
	return 0, fmt.Errorf("%w: unknown recurrence type %q", ErrInvalidRule, r.Type)
}

// OccurrenceIn returns the occurrence date of the rule in the given month,
// with the anchor day clamped to the month's last day.
func OccurrenceIn(r RecurrenceRule, year, month int) (Date, error) {
	day, err := ResolveDueDay(r)
	if err != nil {
		return Date{}, err
	}
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day), nil
}

// NextOccurrences lazily yields the rule's occurrence dates starting with
// the month of from. An occurrence falling before from is skipped. When the
// rule carries a month cap the sequence ends after that many dates;
// otherwise it is unbounded. Inactive or invalid rules yield nothing.
func NextOccurrences(r RecurrenceRule, from Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		if _, err := ResolveDueDay(r); err != nil {
			return
		}
		limit := -1
		if r.Months != nil {
			limit = max(*r.Months, 0)
		}
		year, month := from.Year(), from.Month()
		for n := 0; limit < 0 || n < limit; {
			d, _ := OccurrenceIn(r, year, month)
			month++
			if month > 12 {
				month = 1
				year++
			}
			if d.Before(from) {
				continue
			}
			if !yield(d) {
				return
			}
			n++
		}
	}
}

// TakeOccurrences collects at most count dates from NextOccurrences.
func TakeOccurrences(r RecurrenceRule, from Date, count int) []Date {
	out := make([]Date, 0, max(count, 0))
	if count <= 0 {
		return out
	}
	for d := range NextOccurrences(r, from) {
		out = append(out, d)
		if len(out) == count {
			break
		}
	}
	return out
}

// DisableRecurrence returns the rule a transaction carries once its
// recurring flag is turned off: every field null.
func DisableRecurrence() RecurrenceRule {
	return RecurrenceRule{}
}

// SetRecurring applies a toggle of the recurring flag to r.
// Turning it off clears the rule. Turning it on without a type defaults to
// day_15; named types carry their anchor day, custom keeps the given day.
func SetRecurring(r RecurrenceRule, on bool) RecurrenceRule {
	if !on {
		return DisableRecurrence()
	}
	if !r.Active() {
		r.Type = RecurrenceDay15
	}
	return SelectRecurrenceType(r, r.Type)
}

// SelectRecurrenceType switches the rule to t, setting the anchor day the
// way a type selection does.
func SelectRecurrenceType(r RecurrenceRule, t RecurrenceType) RecurrenceRule {
	r.Type = t
	switch t {
	case RecurrenceFifthBusinessDay, RecurrenceDay15, RecurrenceLastDay:
		day, _ := ResolveDueDay(r)
		r.Day = &day
	case "", RecurrenceNone:
		return DisableRecurrence()
	}
	return r
}

// Fields returns the nullable column values of the rule.
func (r RecurrenceRule) Fields() (*RecurrenceType, *int, *int) {
	if !r.Active() {
		return nil, nil, nil
	}
	t := r.Type
	return &t, copyInt(r.Day), copyInt(r.Months)
}

func ruleFrom(isRecurring bool, t *RecurrenceType, day, months *int) RecurrenceRule {
	if !isRecurring {
		return RecurrenceRule{Type: RecurrenceNone}
	}
	r := RecurrenceRule{Day: copyInt(day), Months: copyInt(months)}
	if t != nil {
		r.Type = *t
	}
	return r
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
