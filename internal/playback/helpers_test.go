package playback

import (
	"context"
	"sync"
	"time"

	"github.com/skychatorg/skyplayer/internal/models"
)

// fakeClock is a controllable wall clock for timing-sensitive tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordedEvent is one broadcast captured by the fake broadcaster.
type recordedEvent struct {
	Target  string // identity, or "*" for all
	Event   string
	Payload any
}

// fakeBroadcaster records every delivery for assertions.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) ToViewer(identity, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Target: identity, Event: event, Payload: payload})
}

func (b *fakeBroadcaster) ToViewers(identities []string, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range identities {
		b.events = append(b.events, recordedEvent{Target: id, Event: event, Payload: payload})
	}
}

func (b *fakeBroadcaster) ToAll(event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Target: "*", Event: event, Payload: payload})
}

func (b *fakeBroadcaster) recorded(event string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// fakeAuth elevates only the listed identities.
type fakeAuth struct {
	elevated map[string]bool
}

func (a *fakeAuth) HasElevatedPrivilege(identity string) bool { return a.elevated[identity] }
func (a *fakeAuth) CanAddMedia(string) bool                   { return true }
func (a *fakeAuth) CanManageSchedule(string) bool             { return true }

// fakePresence reports the listed identities as connected.
type fakePresence struct {
	mu        sync.Mutex
	connected map[string]bool
}

func (p *fakePresence) Connected(identity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected[identity]
}

func (p *fakePresence) set(identity string, online bool) {
	p.mu.Lock()
	if p.connected == nil {
		p.connected = make(map[string]bool)
	}
	p.connected[identity] = online
	p.mu.Unlock()
}

// fakeStore captures snapshot saves.
type fakeStore struct {
	mu    sync.Mutex
	saved [][]models.ChannelSnapshot
}

func (s *fakeStore) Save(_ context.Context, snapshots []models.ChannelSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snapshots)
	return nil
}

func (s *fakeStore) Load(context.Context) ([]models.ChannelSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil, nil
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func item(kind, id, title string, durationMS int64) models.PlayableItem {
	return models.PlayableItem{
		SourceKind: kind,
		SourceID:   id,
		Title:      title,
		Duration:   durationMS,
	}
}
