package service

import (
	"time"

	"github.com/unclebandit/dripleopard-backend/internal/model"
)

// CandidateSendTime computes the raw send time for a step: the delay counted
// from enrollment or from the previous step's actual send, per the step flag.
func CandidateSendTime(step model.Step, enrolledAt time.Time, prevSentAt *time.Time) time.Time {
	base := enrolledAt
	if !step.DelayFromEnrollment && prevSentAt != nil {
		base = *prevSentAt
	}
	return base.AddDate(0, 0, step.DelayDays)
}

// NextAllowed pushes t forward past the campaign's quiet-hours window and
// skipped weekend days, evaluated in the contact's timezone. Quiet hours and
// weekends are hard constraints; the returned instant is never inside either.
func NextAllowed(t time.Time, c *model.Campaign, loc *time.Location) time.Time {
	lt := t.In(loc)

	// Each iteration moves at least to the next day or to the quiet-window
	// end, so a two-week bound always terminates.
	for i := 0; i < 20; i++ {
		if c.SkipWeekends && isWeekend(lt) {
			lt = nextMorning(lt)
			continue
		}
		if end, quiet := quietUntil(lt, c.QuietHoursStart, c.QuietHoursEnd); quiet {
			lt = end
			continue
		}
		return lt
	}
	return lt
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// nextMorning returns midnight of the following day, same location.
func nextMorning(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, t.Location())
}

// quietUntil reports whether t falls inside the [start, end) quiet window and,
// if so, when the window ends. The window may wrap midnight ("21:00"–"08:00").
func quietUntil(t time.Time, start, end string) (time.Time, bool) {
	startMin, ok1 := parseClock(start)
	endMin, ok2 := parseClock(end)
	if !ok1 || !ok2 || startMin == endMin {
		return time.Time{}, false
	}

	cur := t.Hour()*60 + t.Minute()
	endToday := time.Date(t.Year(), t.Month(), t.Day(), endMin/60, endMin%60, 0, 0, t.Location())

	if startMin < endMin {
		// same-day window, e.g. 01:00–06:00
		if cur >= startMin && cur < endMin {
			return endToday, true
		}
		return time.Time{}, false
	}

	// wrapping window, e.g. 21:00–08:00
	if cur >= startMin {
		return endToday.AddDate(0, 0, 1), true
	}
	if cur < endMin {
		return endToday, true
	}
	return time.Time{}, false
}

func parseClock(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// ContactLocation resolves the timezone a campaign's constraints apply in:
// the contact's zone when set, the campaign's otherwise, UTC as a last resort.
func ContactLocation(contact *model.Contact, campaign *model.Campaign) *time.Location {
	name := ""
	if contact != nil && contact.Timezone != "" {
		name = contact.Timezone
	} else if campaign.Timezone != "" {
		name = campaign.Timezone
	}
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
