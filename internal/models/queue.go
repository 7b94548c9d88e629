package models

// QueueEntry is one (owner, item) pair waiting in a channel's queue.
type QueueEntry struct {
	Owner string       `json:"owner"`
	Item  PlayableItem `json:"item"`
}

// PlayingEntry is a queue entry that has been promoted to the playing slot,
// stamped with the wall-clock millisecond at which it started.
type PlayingEntry struct {
	QueueEntry
	StartedAt int64 `json:"started_at_ms"`
}

// CursorMS returns the elapsed playback position at the given wall-clock
// millisecond, including the item's intrinsic start offset.
func (p PlayingEntry) CursorMS(nowMS int64) int64 {
	return nowMS - p.StartedAt + p.Item.StartOffset
}

// EndsAt returns the wall-clock millisecond at which the item runs out, or 0
// for indefinite items.
func (p PlayingEntry) EndsAt() int64 {
	if p.Item.Indefinite() {
		return 0
	}
	return p.StartedAt + p.Item.Duration - p.Item.StartOffset
}
