// Package schedule holds the date rules that decide which medications and
// routines belong to a given day. Both the dashboard and the schedule view go
// through DueOn so they always agree.
package schedule

import (
	"sort"
	"time"

	"github.com/jwalitptl/caregiver-api/internal/model"
)

// Clock reports the current time in the caregiver time zone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a wall clock in loc. A nil loc means UTC.
func NewClock(loc *time.Location) *Clock {
	return NewClockAt(loc, time.Now)
}

// NewClockAt is NewClock with an injectable time source.
func NewClockAt(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: now}
}

func (c *Clock) Location() *time.Location { return c.loc }

func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

func (c *Clock) Today() model.Date { return model.DateOf(c.Now()) }

// Day returns the calendar day of t in the clock's zone.
func (c *Clock) Day(t time.Time) model.Date { return model.DateOf(t.In(c.loc)) }

// Active reports whether day lies within the medication's start and end dates, inclusive.
func Active(m *model.Medication, day model.Date) bool {
	if m.StartDate.IsZero() || m.EndDate.IsZero() {
		return false
	}
	return !day.Before(m.StartDate) && !day.After(m.EndDate)
}

// DueOn reports whether a dose of m is scheduled on day.
func DueOn(m *model.Medication, day model.Date) bool {
	if !Active(m, day) {
		return false
	}
	switch model.NormalizeFrequency(string(m.FrequencyType)) {
	case model.FrequencyDaily:
		return true
	case model.FrequencyWeekly:
		return m.SelectedDays.Contains(day.Weekday())
	default:
		return false
	}
}

// Due filters meds to those due on day, ordered by scheduled time then name.
func Due(meds []*model.Medication, day model.Date) []*model.Medication {
	out := make([]*model.Medication, 0, len(meds))
	for _, m := range meds {
		if DueOn(m, day) {
			out = append(out, m)
		}
	}
	SortMedications(out)
	return out
}

// Upcoming returns at most limit medications due today whose time of day is not before now.
func Upcoming(meds []*model.Medication, now time.Time, limit int) []*model.Medication {
	today := model.DateOf(now)
	at := model.TimeOfDayOf(now.Truncate(time.Minute))
	var out []*model.Medication
	for _, m := range Due(meds, today) {
		if m.ScheduledTime.Before(at) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func SortMedications(meds []*model.Medication) {
	sort.SliceStable(meds, func(i, j int) bool {
		if c := meds[i].ScheduledTime.Compare(meds[j].ScheduledTime); c != 0 {
			return c < 0
		}
		return meds[i].Name < meds[j].Name
	})
}

// RoutinesOn keeps routines whose scheduled_at falls on day in loc, ordered by time.
func RoutinesOn(routines []*model.Routine, day model.Date, loc *time.Location) []*model.Routine {
	var out []*model.Routine
	for _, r := range routines {
		if model.DateOf(r.ScheduledAt.In(loc)).Equal(day) {
			out = append(out, r)
		}
	}
	SortRoutines(out)
	return out
}

// UpcomingRoutines returns at most limit routines later today than now.
func UpcomingRoutines(routines []*model.Routine, now time.Time, limit int) []*model.Routine {
	var out []*model.Routine
	for _, r := range RoutinesOn(routines, model.DateOf(now), now.Location()) {
		if r.ScheduledAt.Before(now.Truncate(time.Minute)) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func SortRoutines(routines []*model.Routine) {
	sort.SliceStable(routines, func(i, j int) bool {
		if !routines[i].ScheduledAt.Equal(routines[j].ScheduledAt) {
			return routines[i].ScheduledAt.Before(routines[j].ScheduledAt)
		}
		return routines[i].ActivityName < routines[j].ActivityName
	})
}
