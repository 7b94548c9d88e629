package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skychatorg/skyplayer/internal/models"
)

func testChannel(t *testing.T, clock *fakeClock) (*Channel, *fakeBroadcaster) {
	t.Helper()
	broadcaster := &fakeBroadcaster{}
	deps := Deps{Broadcaster: broadcaster}
	opts := Options{}
	if clock != nil {
		opts.Now = clock.Now
	}
	ch := NewChannel(1, "lounge", deps, opts)
	t.Cleanup(ch.Close)
	return ch, broadcaster
}

// waitPlaying blocks until the immediate advance timer has promoted a queue
// head into the playing slot.
func waitPlaying(t *testing.T, ch *Channel) models.PlayingEntry {
	t.Helper()
	require.Eventually(t, func() bool {
		return ch.Current() != nil
	}, time.Second, 2*time.Millisecond)
	return *ch.Current()
}

func TestAdd_StartsPlaybackWhenIdle(t *testing.T) {
	ch, _ := testChannel(t, nil)

	added, err := ch.Add([]models.PlayableItem{item("yt", "x", "X", 60_000)}, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	// The advance timer is armed immediately when nothing is playing.
	current := waitPlaying(t, ch)
	assert.Equal(t, "alice", current.Owner)
	assert.Equal(t, "X", current.Item.Title)
	assert.Empty(t, ch.Queue())
}

func TestAdd_RejectsDuplicate(t *testing.T) {
	ch, _ := testChannel(t, nil)

	_, err := ch.Add([]models.PlayableItem{item("yt", "x", "X", 60_000)}, "alice", false)
	require.NoError(t, err)

	_, err = ch.Add([]models.PlayableItem{item("yt", "x", "X again", 60_000)}, "bob", false)
	require.Error(t, err)
	assert.True(t, IsDuplicateItem(err))
}

func TestAdd_StrictBatchCommitsNothingOnDuplicate(t *testing.T) {
	ch, _ := testChannel(t, nil)

	_, err := ch.Add([]models.PlayableItem{item("yt", "x", "X", 60_000)}, "alice", false)
	require.NoError(t, err)
	waitPlaying(t, ch)
	queueBefore := len(ch.Queue())

	added, err := ch.Add([]models.PlayableItem{
		item("yt", "y", "Y", 60_000),
		item("yt", "x", "X", 60_000),
	}, "bob", false)
	require.Error(t, err)
	assert.Equal(t, 0, added)
	assert.Len(t, ch.Queue(), queueBefore)
}

func TestAdd_PartialSkipsDuplicates(t *testing.T) {
	ch, _ := testChannel(t, nil)

	_, err := ch.Add([]models.PlayableItem{item("yt", "x", "X", 60_000)}, "alice", false)
	require.NoError(t, err)

	added, err := ch.Add([]models.PlayableItem{
		item("yt", "x", "X", 60_000),
		item("yt", "y", "Y", 60_000),
		item("yt", "z", "Z", 60_000),
	}, "bob", true)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
}

func TestPlayNext_PopsHeadAndRecordsHistory(t *testing.T) {
	clock := newFakeClock()
	ch, _ := testChannel(t, clock)

	_, err := ch.Add([]models.PlayableItem{
		item("yt", "x", "X", 60_000),
		item("yt", "y", "Y", 30_000),
	}, "alice", false)
	require.NoError(t, err)

	current := waitPlaying(t, ch)
	assert.Equal(t, "X", current.Item.Title)
	assert.Equal(t, clock.Now().UnixMilli(), current.StartedAt)
	assert.Len(t, ch.Queue(), 1)

	ch.PlayNext()
	require.NotNil(t, ch.Current())
	assert.Equal(t, "Y", ch.Current().Item.Title)

	history := ch.History()
	require.Len(t, history, 1)
	assert.Equal(t, "X", history[0].Item.Title)
}

func TestPlayNext_EmptyQueueClearsPlaying(t *testing.T) {
	ch, _ := testChannel(t, nil)

	_, err := ch.Add([]models.PlayableItem{item("yt", "x", "X", 60_000)}, "alice", false)
	require.NoError(t, err)
	waitPlaying(t, ch)

	ch.PlayNext()
	assert.Nil(t, ch.Current())
	history := ch.History()
	require.Len(t, history, 1)
	assert.Equal(t, "X", history[0].Item.Title)
}

func TestPlayNext_HistoryIsBounded(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	ch := NewChannel(1, "lounge", Deps{Broadcaster: broadcaster}, Options{HistoryLimit: 3})
	t.Cleanup(ch.Close)

	for i := 0; i < 6; i++ {
		_, err := ch.Add([]models.PlayableItem{
			item("yt", string(rune('a'+i)), string(rune('A'+i)), 60_000),
		}, "alice", false)
		require.NoError(t, err)
		waitPlaying(t, ch)
		ch.PlayNext()
	}

	history := ch.History()
	require.Len(t, history, 3)
	assert.Equal(t, "D", history[0].Item.Title)
	assert.Equal(t, "E", history[1].Item.Title)
	assert.Equal(t, "F", history[2].Item.Title)
}

func TestAdvanceTimer_FiresAfterDurationPlusMargin(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	ch := NewChannel(1, "lounge", Deps{Broadcaster: broadcaster}, Options{
		AdvanceMargin: 10 * time.Millisecond,
	})
	t.Cleanup(ch.Close)

	_, err := ch.Add([]models.PlayableItem{
		item("yt", "x", "X", 40),
		item("yt", "y", "Y", 60_000),
	}, "alice", false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cur := ch.Current()
		return cur != nil && cur.Item.Title == "Y"
	}, 2*time.Second, 5*time.Millisecond)

	history := ch.History()
	require.Len(t, history, 1)
	assert.Equal(t, "X", history[0].Item.Title)
}

func TestAdvanceTimer_IndefiniteItemNeverAdvances(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	ch := NewChannel(1, "lounge", Deps{Broadcaster: broadcaster}, Options{
		AdvanceMargin: time.Millisecond,
	})
	t.Cleanup(ch.Close)

	_, err := ch.Add([]models.PlayableItem{item("live", "stream", "Live", 0)}, "alice", false)
	require.NoError(t, err)
	waitPlaying(t, ch)

	time.Sleep(50 * time.Millisecond)
	cur := ch.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "Live", cur.Item.Title)
	assert.Empty(t, ch.History())
}

func TestMoveCursor_NothingPlaying(t *testing.T) {
	ch, _ := testChannel(t, nil)

	err := ch.MoveCursor(30_000)
	require.Error(t, err)
	assert.True(t, IsNothingPlaying(err))
	assert.Nil(t, ch.Current())
	assert.Empty(t, ch.Queue())
}

func TestMoveCursor_ShiftsStart(t *testing.T) {
	clock := newFakeClock()
	ch, _ := testChannel(t, clock)

	_, err := ch.Add([]models.PlayableItem{item("yt", "x", "X", 600_000)}, "alice", false)
	require.NoError(t, err)
	started := waitPlaying(t, ch).StartedAt

	require.NoError(t, ch.MoveCursor(30_000))
	assert.Equal(t, started-30_000, ch.Current().StartedAt)

	require.NoError(t, ch.MoveCursor(-30_000))
	assert.Equal(t, started, ch.Current().StartedAt)
}

func TestFlushQueue_KeepsCurrentItem(t *testing.T) {
	ch, _ := testChannel(t, nil)

	_, err := ch.Add([]models.PlayableItem{
		item("yt", "x", "X", 600_000),
		item("yt", "y", "Y", 600_000),
	}, "alice", false)
	require.NoError(t, err)
	waitPlaying(t, ch)

	ch.FlushQueue()
	assert.Empty(t, ch.Queue())
	require.NotNil(t, ch.Current())
	assert.Equal(t, "X", ch.Current().Item.Title)
}

func TestSkip_AdvancesImmediately(t *testing.T) {
	ch, _ := testChannel(t, nil)

	_, err := ch.Add([]models.PlayableItem{
		item("yt", "x", "X", 600_000),
		item("yt", "y", "Y", 600_000),
	}, "alice", false)
	require.NoError(t, err)
	waitPlaying(t, ch)

	ch.Skip()
	require.NotNil(t, ch.Current())
	assert.Equal(t, "Y", ch.Current().Item.Title)
}

func TestHasPlayPermission(t *testing.T) {
	auth := &fakeAuth{elevated: map[string]bool{"op": true}}
	presence := &fakePresence{}
	broadcaster := &fakeBroadcaster{}
	ch := NewChannel(1, "lounge", Deps{Broadcaster: broadcaster, Auth: auth, Presence: presence}, Options{})
	t.Cleanup(ch.Close)

	// Nothing playing: anyone may act.
	assert.True(t, ch.HasPlayPermission("alice"))

	_, err := ch.Add([]models.PlayableItem{item("yt", "x", "X", 600_000)}, "alice", false)
	require.NoError(t, err)
	waitPlaying(t, ch)
	presence.set("alice", true)

	assert.True(t, ch.HasPlayPermission("alice"), "owner may act")
	assert.False(t, ch.HasPlayPermission("bob"), "non-owner may not act while owner is connected")
	assert.True(t, ch.HasPlayPermission("op"), "elevated viewer always may act")

	presence.set("alice", false)
	assert.True(t, ch.HasPlayPermission("bob"), "anyone may act once the owner disconnects")
}

func TestHasPlayPermission_LockedChannel(t *testing.T) {
	auth := &fakeAuth{elevated: map[string]bool{"op": true}}
	clock := newFakeClock()
	broadcaster := &fakeBroadcaster{}
	ch := NewChannel(1, "lounge", Deps{Broadcaster: broadcaster, Auth: auth}, Options{Now: clock.Now})
	t.Cleanup(ch.Close)

	_, err := ch.ScheduleEvent(item("yt", "z", "Z", 60_000), clock.Now().UnixMilli()+1_000, 0)
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	ch.TickSchedule()
	require.True(t, ch.Locked())

	assert.False(t, ch.HasPlayPermission("alice"))
	assert.True(t, ch.HasPlayPermission("op"))
}

func TestSanitizedRestore_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	ch, _ := testChannel(t, clock)

	_, err := ch.Add([]models.PlayableItem{
		item("yt", "x", "X", 600_000),
		item("yt", "y", "Y", 600_000),
		item("yt", "z", "Z", 600_000),
	}, "alice", false)
	require.NoError(t, err)
	waitPlaying(t, ch)

	_, err = ch.ScheduleEvent(item("yt", "s", "Show", 0), clock.Now().UnixMilli()+60_000, 30_000)
	require.NoError(t, err)

	snap := ch.Sanitized()
	restored := RestoreChannel(snap, Deps{}, Options{Now: clock.Now})
	t.Cleanup(restored.Close)

	got := restored.Sanitized()
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, snap.Name, got.Name)
	assert.Equal(t, snap.Queue, got.Queue)
	assert.Equal(t, snap.Current, got.Current)
	assert.Equal(t, snap.Locked, got.Locked)
	assert.Equal(t, snap.Schedule, got.Schedule)
}

func TestBroadcast_SyncSentToMembersOnMutation(t *testing.T) {
	ch, broadcaster := testChannel(t, nil)
	ch.addMember("alice")
	ch.addMember("bob")

	_, err := ch.Add([]models.PlayableItem{item("yt", "x", "X", 600_000)}, "alice", false)
	require.NoError(t, err)

	events := broadcaster.recorded(models.EventPlaybackSync)
	require.NotEmpty(t, events)
	targets := map[string]bool{}
	for _, e := range events {
		targets[e.Target] = true
	}
	assert.True(t, targets["alice"])
	assert.True(t, targets["bob"])
}
