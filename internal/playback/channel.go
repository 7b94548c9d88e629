package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/skychatorg/skyplayer/internal/logger"
	"github.com/skychatorg/skyplayer/internal/models"
)

// ProgramOwner is the owner identity stamped on entries injected by the
// schedule. No real viewer can claim it.
const ProgramOwner = "@program"

const (
	defaultAdvanceMargin      = 2 * time.Second
	defaultHistoryLimit       = 200
	defaultSlotDuration       = 2 * time.Hour
	defaultScheduleTickPeriod = 5 * time.Second
)

// Options tunes a channel's timing behavior. Zero values fall back to the
// defaults above.
type Options struct {
	// AdvanceMargin is added on top of the remaining play time before the
	// advance timer fires, absorbing minor client-server clock skew.
	AdvanceMargin time.Duration

	// HistoryLimit bounds the played-items history; oldest entries drop first.
	HistoryLimit int

	// DefaultSlotDuration is the scheduled-slot length for items with no
	// intrinsic duration (live streams).
	DefaultSlotDuration time.Duration

	// Now supplies the wall clock. Tests override it.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.AdvanceMargin <= 0 {
		o.AdvanceMargin = defaultAdvanceMargin
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = defaultHistoryLimit
	}
	if o.DefaultSlotDuration <= 0 {
		o.DefaultSlotDuration = defaultSlotDuration
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Channel owns one media queue, the currently playing entry, and the single
// advance timer that moves playback forward. All mutations are serialized by
// one mutex; the timer handle is owned by the channel and replaced atomically
// on every rearm, so at most one live timer exists per channel.
type Channel struct {
	mu         sync.Mutex
	id         int
	name       string
	members    map[string]struct{}
	queue      []models.QueueEntry
	current    *models.PlayingEntry
	locked     bool
	lastPlayed map[string]int64
	history    []models.QueueEntry
	program    *program
	timer      *time.Timer
	timerGen   uint64
	opts       Options
	deps       Deps
}

// NewChannel creates an empty channel with the given id and display name.
func NewChannel(id int, name string, deps Deps, opts Options) *Channel {
	return &Channel{
		id:         id,
		name:       name,
		members:    make(map[string]struct{}),
		lastPlayed: make(map[string]int64),
		program:    newProgram(),
		opts:       opts.withDefaults(),
		deps:       deps,
	}
}

// RestoreChannel rebuilds a channel from a sanitized snapshot. The queue,
// current item, and schedule come back in the same order; the advance timer is
// rearmed against the restored state.
func RestoreChannel(snap models.ChannelSnapshot, deps Deps, opts Options) *Channel {
	c := NewChannel(snap.ID, snap.Name, deps, opts)
	c.queue = append(c.queue, snap.Queue...)
	c.locked = snap.Locked
	if snap.Current != nil {
		cur := *snap.Current
		c.current = &cur
	}
	c.program.restore(snap.Schedule, c.nowMS())
	c.mu.Lock()
	c.armLocked()
	c.mu.Unlock()
	return c
}

// ID returns the channel's unique positive id.
func (c *Channel) ID() int { return c.id }

// Name returns the channel's display name.
func (c *Channel) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Channel) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// Locked reports whether a scheduled event is currently authoritative.
func (c *Channel) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

func (c *Channel) nowMS() int64 {
	return c.opts.Now().UnixMilli()
}

// addMember and removeMember are called by the registry, which is the single
// source of truth for membership.
func (c *Channel) addMember(identity string) {
	c.mu.Lock()
	c.members[identity] = struct{}{}
	c.mu.Unlock()
}

func (c *Channel) removeMember(identity string) {
	c.mu.Lock()
	delete(c.members, identity)
	c.mu.Unlock()
}

func (c *Channel) memberListLocked() []string {
	out := make([]string, 0, len(c.members))
	for m := range c.members {
		out = append(out, m)
	}
	return out
}

// Add appends resolved items to the queue under the given owner. An item that
// is already playing or queued (same source kind and id) is rejected; with
// allowPartial set, duplicates are skipped instead and the count of newly
// added entries is returned. A non-empty add triggers a fairness reorder and
// rearms the advance timer when nothing is playing.
func (c *Channel) Add(items []models.PlayableItem, owner string, allowPartial bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !allowPartial {
		// Validate the whole batch before committing anything.
		staged := make([]models.PlayableItem, 0, len(items))
		for _, item := range items {
			if c.hasItemLocked(item) || containsSource(staged, item) {
				return 0, fmt.Errorf("failed to add %q: %w", item.Title, ErrDuplicateItem)
			}
			staged = append(staged, item)
		}
	}

	added := 0
	for _, item := range items {
		if c.hasItemLocked(item) {
			continue
		}
		c.queue = append(c.queue, models.QueueEntry{Owner: owner, Item: item})
		added++
	}
	if added == 0 {
		return 0, nil
	}

	c.queue = fairOrder(c.queue, c.lastPlayed)
	if c.current == nil {
		c.armLocked()
	}
	c.syncMembersLocked()

	logger.Log.Info().
		Int("channel_id", c.id).
		Str("owner", owner).
		Int("added", added).
		Int("queue_len", len(c.queue)).
		Msg("Items added to queue")

	return added, nil
}

func (c *Channel) hasItemLocked(item models.PlayableItem) bool {
	if c.current != nil && c.current.Item.SameSource(item) {
		return true
	}
	for _, e := range c.queue {
		if e.Item.SameSource(item) {
			return true
		}
	}
	return false
}

func containsSource(items []models.PlayableItem, item models.PlayableItem) bool {
	for _, it := range items {
		if it.SameSource(item) {
			return true
		}
	}
	return false
}

// PlayNext advances playback: the current entry (if any) moves to the bounded
// history, the queue head becomes the playing entry stamped with the current
// wall clock, the owner's last-play time is recorded, and the advance timer is
// rearmed. With an empty queue the playing slot is simply cleared.
func (c *Channel) PlayNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playNextLocked()
}

func (c *Channel) playNextLocked() {
	now := c.nowMS()

	if c.current != nil {
		c.history = append(c.history, c.current.QueueEntry)
		if len(c.history) > c.opts.HistoryLimit {
			c.history = c.history[len(c.history)-c.opts.HistoryLimit:]
		}
		c.current = nil
	}

	if len(c.queue) == 0 {
		c.armLocked()
		c.syncMembersLocked()
		return
	}

	head := c.queue[0]
	c.queue = c.queue[1:]
	c.current = &models.PlayingEntry{QueueEntry: head, StartedAt: now}
	c.lastPlayed[head.Owner] = now

	c.armLocked()
	c.syncMembersLocked()

	logger.Log.Debug().
		Int("channel_id", c.id).
		Str("owner", head.Owner).
		Str("title", head.Item.Title).
		Msg("Playback advanced")
}

// armLocked cancels any pending advance timer and arms a fresh one when state
// calls for it: immediately when idle with a non-empty queue, at remaining
// time plus the advance margin when a finite item is playing, never for
// indefinite items. Callers must hold the mutex.
func (c *Channel) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++

	var delay time.Duration
	switch {
	case c.current == nil && len(c.queue) > 0:
		delay = 0
	case c.current != nil && !c.current.Item.Indefinite():
		remaining := time.Duration(c.current.EndsAt()-c.nowMS()) * time.Millisecond
		if remaining < 0 {
			remaining = 0
		}
		delay = remaining + c.opts.AdvanceMargin
	default:
		return
	}

	gen := c.timerGen
	c.timer = time.AfterFunc(delay, func() { c.advance(gen) })
}

// advance is the timer callback. A fire that arrives after its timer was
// superseded finds a stale generation and degrades silently; no caller waits
// on its result.
func (c *Channel) advance(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.timerGen {
		return
	}
	c.playNextLocked()
}

// Skip advances immediately, bypassing the scheduled end time.
func (c *Channel) Skip() {
	c.PlayNext()
}

// MoveCursor shifts the recorded start time of the current item, rewinding
// (negative delta) or fast-forwarding (positive delta) playback for every
// member, then rearms the advance timer. Fails when nothing is playing.
func (c *Channel) MoveCursor(deltaMS int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return fmt.Errorf("failed to move cursor: %w", ErrNothingPlaying)
	}

	c.current.StartedAt -= deltaMS
	c.armLocked()
	c.syncMembersLocked()

	logger.Log.Debug().
		Int("channel_id", c.id).
		Int64("delta_ms", deltaMS).
		Msg("Cursor moved")

	return nil
}

// FlushQueue empties the queue without touching the currently playing item.
func (c *Channel) FlushQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
	c.armLocked()
	c.syncMembersLocked()
}

// FairShuffle reorders the queue round-robin by owner. Owners who played
// least recently (or never) get the front slots.
func (c *Channel) FairShuffle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = fairOrder(c.queue, c.lastPlayed)
	c.syncMembersLocked()
}

// HasPlayPermission reports whether a viewer may alter playback: elevated
// viewers always may; nobody else may while the channel is locked by the
// schedule; otherwise the owner of the playing item may, and so may anyone
// once that owner has disconnected.
func (c *Channel) HasPlayPermission(identity string) bool {
	if c.deps.Auth != nil && c.deps.Auth.HasElevatedPrivilege(identity) {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked {
		return false
	}
	if c.current == nil {
		return true
	}
	if c.current.Owner == identity {
		return true
	}
	return c.deps.Presence == nil || !c.deps.Presence.Connected(c.current.Owner)
}

// History returns a copy of the played-entries history, oldest first.
func (c *Channel) History() []models.QueueEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.QueueEntry(nil), c.history...)
}

// Queue returns a copy of the pending entries in play order.
func (c *Channel) Queue() []models.QueueEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.QueueEntry(nil), c.queue...)
}

// Current returns a copy of the playing entry, or nil.
func (c *Channel) Current() *models.PlayingEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cur := *c.current
	return &cur
}

// SyncViewer pushes the current playback snapshot to a single viewer,
// typically right after it joins.
func (c *Channel) SyncViewer(identity string) {
	c.mu.Lock()
	payload := c.syncPayloadLocked()
	c.mu.Unlock()
	if c.deps.Broadcaster != nil {
		c.deps.Broadcaster.ToViewer(identity, models.EventPlaybackSync, payload)
	}
}

func (c *Channel) syncPayloadLocked() models.PlaybackSync {
	sync := models.PlaybackSync{
		Queue: append([]models.QueueEntry{}, c.queue...),
	}
	if c.current != nil {
		cur := *c.current
		sync.Current = &cur
		sync.CursorMS = cur.CursorMS(c.nowMS())
	}
	return sync
}

func (c *Channel) syncMembersLocked() {
	if c.deps.Broadcaster == nil || len(c.members) == 0 {
		return
	}
	c.deps.Broadcaster.ToViewers(c.memberListLocked(), models.EventPlaybackSync, c.syncPayloadLocked())
}

// Sanitized returns the serializable form of the channel: queue, playing
// entry, lock state, and full schedule.
func (c *Channel) Sanitized() models.ChannelSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := models.ChannelSnapshot{
		ID:       c.id,
		Name:     c.name,
		Queue:    append([]models.QueueEntry{}, c.queue...),
		Locked:   c.locked,
		Schedule: c.program.events(),
	}
	if c.current != nil {
		cur := *c.current
		snap.Current = &cur
	}
	return snap
}

// Info returns the channel-list entry for this channel.
func (c *Channel) Info() models.ChannelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := models.ChannelInfo{
		ID:       c.id,
		Name:     c.name,
		Playing:  c.current != nil,
		Schedule: c.program.events(),
	}
	if c.current != nil {
		info.CurrentMedia = &models.CurrentMedia{
			Owner: c.current.Owner,
			Title: c.current.Item.Title,
		}
	}
	return info
}

// Close cancels the advance timer. The channel must not be used afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
