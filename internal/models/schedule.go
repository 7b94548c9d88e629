package models

// ScheduledEvent is a time-boxed broadcast slot belonging to one channel's
// program. Events in the same program never overlap.
type ScheduledEvent struct {
	Start    int64        `json:"start_ms"`
	Duration int64        `json:"duration_ms"`
	Item     PlayableItem `json:"item"`
}

// End returns the exclusive end millisecond of the event's interval.
func (e ScheduledEvent) End() int64 {
	return e.Start + e.Duration
}

// Overlaps reports whether two event intervals intersect. Touching intervals
// (one ends exactly where the other starts) do not overlap.
func (e ScheduledEvent) Overlaps(other ScheduledEvent) bool {
	return e.Start < other.End() && other.Start < e.End()
}
