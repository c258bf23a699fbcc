package booking

// defaultSlots is the half-hour slot vocabulary offered by the booking page.
var defaultSlots = []string{
	"09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM",
	"02:00 PM", "02:30 PM", "03:00 PM", "03:30 PM", "04:00 PM", "04:30 PM",
}

// Slots returns the slot labels in display order.
func Slots() []string {
	out := make([]string, len(defaultSlots))
	copy(out, defaultSlots)
	return out
}

// availability marks which of the slot labels appear in booked.
func availability(booked []string) []SlotAvailability {
	taken := make(map[string]bool, len(booked))
	for _, t := range booked {
		taken[t] = true
	}
	out := make([]SlotAvailability, 0, len(defaultSlots))
	for _, label := range defaultSlots {
		out = append(out, SlotAvailability{Time: label, Booked: taken[label]})
	}
	return out
}
