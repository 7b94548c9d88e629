package models

// ChannelSnapshot is the sanitized, serializable form of one channel. It is
// both the persistence document and the per-channel portion of the channel
// list broadcast. Feeding a snapshot back through channel reconstruction
// reproduces an equivalent queue and schedule.
type ChannelSnapshot struct {
	ID       int              `json:"id"`
	Name     string           `json:"name"`
	Queue    []QueueEntry     `json:"queue"`
	Current  *PlayingEntry    `json:"current,omitempty"`
	Locked   bool             `json:"locked"`
	Schedule []ScheduledEvent `json:"schedule"`
}
