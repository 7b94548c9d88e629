package models

// PlayableItem is a fully resolved piece of media. Items are immutable once
// resolved; resolution itself (link lookup, search) happens outside this
// service.
type PlayableItem struct {
	SourceKind  string `json:"source_kind"`
	SourceID    string `json:"source_id"`
	Duration    int64  `json:"duration_ms"`
	StartOffset int64  `json:"start_offset_ms,omitempty"`
	Title       string `json:"title"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// Indefinite reports whether the item plays forever (live streams). Indefinite
// items never auto-advance.
func (i PlayableItem) Indefinite() bool {
	return i.Duration == 0
}

// SameSource reports whether two items refer to the same underlying media.
func (i PlayableItem) SameSource(other PlayableItem) bool {
	return i.SourceKind == other.SourceKind && i.SourceID == other.SourceID
}
