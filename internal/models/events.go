package models

// Event names pushed to connected viewers.
const (
	EventChannelList   = "channel-list"
	EventPlaybackSync  = "playback-sync"
	EventViewerChannel = "viewer-channel"
)

// PlaybackSync is the payload sent to a channel's members whenever its
// playback state changes, and to a single viewer when it joins.
type PlaybackSync struct {
	Current  *PlayingEntry `json:"current"`
	Queue    []QueueEntry  `json:"queue"`
	CursorMS int64         `json:"cursor_ms"`
}

// CurrentMedia summarizes what a channel is playing for the channel list.
type CurrentMedia struct {
	Owner string `json:"owner"`
	Title string `json:"title"`
}

// ChannelInfo is one entry of the channel-list broadcast.
type ChannelInfo struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Playing      bool             `json:"playing"`
	CurrentMedia *CurrentMedia    `json:"current_media,omitempty"`
	Schedule     []ScheduledEvent `json:"schedule"`
}
