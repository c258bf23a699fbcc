package booking

import (
	"sort"
	"time"
)

// Partition splits appointments into upcoming (start >= now, soonest first)
// and past (start < now, most recent first). Entries whose date and time do
// not parse are treated as past and sort after the parseable ones.
func Partition(appts []*Appointment, now time.Time, loc *time.Location) (upcoming, past []*Appointment) {
	upcoming = []*Appointment{}
	past = []*Appointment{}

	starts := make(map[*Appointment]time.Time, len(appts))
	var unparsed []*Appointment
	for _, a := range appts {
		t, ok := a.StartsAt(loc)
		if !ok {
			unparsed = append(unparsed, a)
			continue
		}
		starts[a] = t
		if t.Before(now) {
			past = append(past, a)
		} else {
			upcoming = append(upcoming, a)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool { return starts[upcoming[i]].Before(starts[upcoming[j]]) })
	sort.SliceStable(past, func(i, j int) bool { return starts[past[i]].After(starts[past[j]]) })
	past = append(past, unparsed...)
	return upcoming, past
}
