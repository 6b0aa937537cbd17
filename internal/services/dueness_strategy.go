// Package services provides business logic and orchestration services.
//
// This file holds the strategies that decide whether a generated occurrence
// of a recurring transaction should be materialized yet. Each recurrence
// type maps to a checker; the worker can swap in a lead-time checker to
// create upcoming bills a few days early.

package services

import (
	"fmt"
	"sync"
	"time"

	"finance/internal/core"
)

// DuenessChecker decides whether an occurrence is due at now.
type DuenessChecker interface {
	IsDue(occurrence core.Date, now time.Time) bool
}

// OnOrAfterChecker makes an occurrence due on its own date.
type OnOrAfterChecker struct{}

func (OnOrAfterChecker) IsDue(occurrence core.Date, now time.Time) bool {
	return !core.DateOf(now).Before(occurrence)
}

// LeadTimeChecker makes an occurrence due Days days before its date.
type LeadTimeChecker struct {
	Days int
}

func (c LeadTimeChecker) IsDue(occurrence core.Date, now time.Time) bool {
	horizon := core.DateOf(now.AddDate(0, 0, max(c.Days, 0)))
	return !horizon.Before(occurrence)
}

var (
	duenessMu         sync.RWMutex
	duenessStrategies = map[core.RecurrenceType]DuenessChecker{
		core.RecurrenceFifthBusinessDay: OnOrAfterChecker{},
		core.RecurrenceDay15:            OnOrAfterChecker{},
		core.RecurrenceLastDay:          OnOrAfterChecker{},
		core.RecurrenceCustom:           OnOrAfterChecker{},
	}
)

// GetDuenessChecker returns the checker registered for a recurrence type.
func GetDuenessChecker(t core.RecurrenceType) (DuenessChecker, error) {
	duenessMu.RLock()
	defer duenessMu.RUnlock()
	checker, ok := duenessStrategies[t]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence type: %s", t)
	}
	return checker, nil
}

// RegisterDuenessChecker installs checker for t, replacing any previous one.
func RegisterDuenessChecker(t core.RecurrenceType, checker DuenessChecker) {
	duenessMu.Lock()
	defer duenessMu.Unlock()
	duenessStrategies[t] = checker
}

// RegisterLeadTime installs a LeadTimeChecker for every active recurrence type.
func RegisterLeadTime(days int) {
	for _, t := range []core.RecurrenceType{
		core.RecurrenceFifthBusinessDay,
		core.RecurrenceDay15,
		core.RecurrenceLastDay,
		core.RecurrenceCustom,
	} {
		RegisterDuenessChecker(t, LeadTimeChecker{Days: days})
	}
}
