package playback

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skychatorg/skyplayer/internal/logger"
	"github.com/skychatorg/skyplayer/internal/models"
)

// Registry owns the channel set, the viewer-to-channel membership map, and
// the periodic schedule tick. It is the composition root's single handle on
// shared playback; nothing here is process-global.
type Registry struct {
	mu       sync.Mutex
	channels map[int]*Channel
	viewers  map[string]int
	deps     Deps
	store    SnapshotStore
	opts     Options
	tick     time.Duration

	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}
	started  bool
}

// NewRegistry creates an empty registry. store may be nil when persistence is
// not wanted (tests); tickPeriod <= 0 falls back to the default.
func NewRegistry(deps Deps, store SnapshotStore, opts Options, tickPeriod time.Duration) *Registry {
	if tickPeriod <= 0 {
		tickPeriod = defaultScheduleTickPeriod
	}
	return &Registry{
		channels: make(map[int]*Channel),
		viewers:  make(map[string]int),
		deps:     deps,
		store:    store,
		opts:     opts,
		tick:     tickPeriod,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the schedule tick loop.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.ticker = time.NewTicker(r.tick)
	go r.runTickLoop()

	logger.Log.Info().
		Dur("tick_period", r.tick).
		Msg("Channel registry started")
}

// Stop halts the tick loop and cancels every channel's advance timer.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	close(r.stopChan)
	<-r.done
	r.ticker.Stop()

	r.mu.Lock()
	for _, ch := range r.channels {
		ch.Close()
	}
	r.mu.Unlock()

	logger.Log.Info().Msg("Channel registry stopped")
}

func (r *Registry) runTickLoop() {
	defer close(r.done)
	for {
		select {
		case <-r.ticker.C:
			for _, ch := range r.channelList() {
				ch.TickSchedule()
			}
		case <-r.stopChan:
			return
		}
	}
}

func (r *Registry) channelList() []*Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// CreateChannel creates a channel under the next unused positive id.
func (r *Registry) CreateChannel(name string) (*Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("failed to create channel: %w", ErrInvalidName)
	}

	r.mu.Lock()
	id := 1
	for existing := range r.channels {
		if existing >= id {
			id = existing + 1
		}
	}
	ch := NewChannel(id, name, r.deps, r.opts)
	r.channels[id] = ch
	r.changedLocked()
	r.mu.Unlock()

	logger.Log.Info().
		Int("channel_id", id).
		Str("name", name).
		Msg("Channel created")

	return ch, nil
}

// RenameChannel updates a channel's display name.
func (r *Registry) RenameChannel(id int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("failed to rename channel: %w", ErrInvalidName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		return fmt.Errorf("failed to rename channel %d: %w", id, ErrChannelNotFound)
	}
	ch.setName(name)
	r.changedLocked()

	logger.Log.Info().
		Int("channel_id", id).
		Str("name", name).
		Msg("Channel renamed")

	return nil
}

// DeleteChannel evicts every member (each eviction is an ordinary leave, with
// the usual notifications) and removes the channel.
func (r *Registry) DeleteChannel(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[id]
	if !ok {
		return fmt.Errorf("failed to delete channel %d: %w", id, ErrChannelNotFound)
	}

	for viewer, channelID := range r.viewers {
		if channelID == id {
			r.leaveLocked(viewer)
		}
	}

	ch.Close()
	delete(r.channels, id)
	r.changedLocked()

	logger.Log.Info().
		Int("channel_id", id).
		Msg("Channel deleted")

	return nil
}

// JoinChannel moves a viewer into a channel, implicitly leaving any previous
// one, then synchronizes the viewer with the channel's playback snapshot.
// Joining the channel the viewer is already in is a no-op.
func (r *Registry) JoinChannel(identity string, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.viewers[identity]; ok && current == id {
		return nil
	}

	ch, ok := r.channels[id]
	if !ok {
		return fmt.Errorf("failed to join channel %d: %w", id, ErrChannelNotFound)
	}

	if previous, ok := r.viewers[identity]; ok {
		if prevCh, ok := r.channels[previous]; ok {
			prevCh.removeMember(identity)
		}
	}

	r.viewers[identity] = id
	ch.addMember(identity)
	ch.SyncViewer(identity)
	if r.deps.Broadcaster != nil {
		r.deps.Broadcaster.ToViewer(identity, models.EventViewerChannel, id)
	}

	logger.Log.Debug().
		Str("viewer", identity).
		Int("channel_id", id).
		Msg("Viewer joined channel")

	return nil
}

// LeaveChannel removes a viewer from its current channel, if any, and tells
// it that it is in no channel with a neutral playback snapshot.
func (r *Registry) LeaveChannel(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(identity)
}

func (r *Registry) leaveLocked(identity string) {
	if id, ok := r.viewers[identity]; ok {
		if ch, ok := r.channels[id]; ok {
			ch.removeMember(identity)
		}
		delete(r.viewers, identity)
	}
	if r.deps.Broadcaster != nil {
		r.deps.Broadcaster.ToViewer(identity, models.EventViewerChannel, nil)
		r.deps.Broadcaster.ToViewer(identity, models.EventPlaybackSync, models.PlaybackSync{Queue: []models.QueueEntry{}})
	}
}

// Get returns the channel with the given id.
func (r *Registry) Get(id int) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		return nil, fmt.Errorf("channel %d: %w", id, ErrChannelNotFound)
	}
	return ch, nil
}

// ChannelOf returns the channel a viewer is currently in.
func (r *Registry) ChannelOf(identity string) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.viewers[identity]
	if !ok {
		return nil, fmt.Errorf("viewer %q: %w", identity, ErrNoChannel)
	}
	ch, ok := r.channels[id]
	if !ok {
		return nil, fmt.Errorf("viewer %q: %w", identity, ErrNoChannel)
	}
	return ch, nil
}

// NotifyChanged re-runs the post-mutation hook. Callers use it after mutating
// a channel in a way that alters its sanitized form (schedule changes).
func (r *Registry) NotifyChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changedLocked()
}

// changedLocked is the explicit post-mutation hook: persist the sanitized
// channel set, then broadcast the channel list to all connected parties.
func (r *Registry) changedLocked() {
	snapshots := r.snapshotLocked()

	if r.store != nil {
		if err := r.store.Save(context.Background(), snapshots); err != nil {
			logger.Log.Error().
				Err(err).
				Msg("Failed to persist channel snapshots")
		}
	}

	if r.deps.Broadcaster != nil {
		infos := make([]models.ChannelInfo, 0, len(r.channels))
		for _, snap := range snapshots {
			ch := r.channels[snap.ID]
			infos = append(infos, ch.Info())
		}
		r.deps.Broadcaster.ToAll(models.EventChannelList, infos)
	}
}

func (r *Registry) snapshotLocked() []models.ChannelSnapshot {
	ids := make([]int, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	// Stable order keeps persisted documents and broadcasts deterministic.
	sort.Ints(ids)
	snapshots := make([]models.ChannelSnapshot, 0, len(ids))
	for _, id := range ids {
		snapshots = append(snapshots, r.channels[id].Sanitized())
	}
	return snapshots
}

// Snapshot returns the sanitized form of every channel, ascending by id.
func (r *Registry) Snapshot() []models.ChannelSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// List returns the channel-list entries, ascending by id.
func (r *Registry) List() []models.ChannelInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]models.ChannelInfo, 0, len(r.channels))
	for _, snap := range r.snapshotLocked() {
		infos = append(infos, r.channels[snap.ID].Info())
	}
	return infos
}

// Restore rebuilds the channel set from persisted snapshots, typically once
// at startup before Start.
func (r *Registry) Restore(snapshots []models.ChannelSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range snapshots {
		if snap.ID <= 0 {
			logger.Log.Warn().
				Int("channel_id", snap.ID).
				Msg("Skipping snapshot with invalid id")
			continue
		}
		if _, exists := r.channels[snap.ID]; exists {
			continue
		}
		r.channels[snap.ID] = RestoreChannel(snap, r.deps, r.opts)
	}

	logger.Log.Info().
		Int("count", len(r.channels)).
		Msg("Channels restored from snapshot")
}
