package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skychatorg/skyplayer/internal/models"
)

func scheduleChannel(t *testing.T) (*Channel, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	broadcaster := &fakeBroadcaster{}
	ch := NewChannel(1, "lounge", Deps{Broadcaster: broadcaster}, Options{Now: clock.Now})
	t.Cleanup(ch.Close)
	return ch, clock
}

func TestScheduleEvent_RejectsOverlaps(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	_, err := ch.ScheduleEvent(item("yt", "a", "A", 0), base+10_000, 60_000)
	require.NoError(t, err)

	cases := []struct {
		name  string
		start int64
		dur   int64
	}{
		{"identical interval", base + 10_000, 60_000},
		{"starts inside", base + 30_000, 60_000},
		{"ends inside", base + 5_000, 10_000},
		{"contains existing", base + 5_000, 120_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ch.ScheduleEvent(item("yt", "b", "B", 0), tc.start, tc.dur)
			require.Error(t, err)
			assert.True(t, IsScheduleConflict(err))
		})
	}
}

func TestScheduleEvent_BackToBackIsAllowed(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	_, err := ch.ScheduleEvent(item("yt", "a", "A", 0), base+10_000, 60_000)
	require.NoError(t, err)

	// Touching intervals do not conflict: the next event may start exactly
	// where the previous one ends.
	_, err = ch.ScheduleEvent(item("yt", "b", "B", 0), base+70_000, 60_000)
	require.NoError(t, err)
}

func TestScheduleEvent_RejectsPastStart(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	_, err := ch.ScheduleEvent(item("yt", "a", "A", 0), base-1_000, 60_000)
	require.Error(t, err)
	assert.True(t, IsInvalidTimeRange(err))
}

func TestScheduleEvent_DurationFallbacks(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	// Explicit duration wins over the item's own.
	ev, err := ch.ScheduleEvent(item("yt", "a", "A", 30_000), base+10_000, 45_000)
	require.NoError(t, err)
	assert.Equal(t, int64(45_000), ev.Duration)

	// No explicit duration: the item's own length is used.
	ev, err = ch.ScheduleEvent(item("yt", "b", "B", 30_000), base+100_000, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(30_000), ev.Duration)

	// Indefinite item with no explicit duration gets the default slot length.
	ev, err = ch.ScheduleEvent(item("live", "c", "C", 0), base+200_000, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultSlotDuration.Milliseconds(), ev.Duration)
}

func TestUnscheduleEvent_FreesTheSlot(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	_, err := ch.ScheduleEvent(item("yt", "a", "A", 0), base+10_000, 60_000)
	require.NoError(t, err)

	require.NoError(t, ch.UnscheduleEvent(base+10_000))
	assert.Empty(t, ch.ScheduleEvents())

	// The interval is reusable once the event is gone.
	_, err = ch.ScheduleEvent(item("yt", "b", "B", 0), base+10_000, 60_000)
	require.NoError(t, err)
}

func TestUnscheduleEvent_UnknownStart(t *testing.T) {
	ch, clock := scheduleChannel(t)

	err := ch.UnscheduleEvent(clock.Now().UnixMilli() + 999)
	require.Error(t, err)
	assert.True(t, IsEventNotFound(err))
}

func TestTickSchedule_TakesOverAndLocks(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	_, err := ch.Add([]models.PlayableItem{
		item("yt", "x", "X", 600_000),
		item("yt", "y", "Y", 600_000),
	}, "alice", false)
	require.NoError(t, err)
	waitPlaying(t, ch)

	_, err = ch.ScheduleEvent(item("yt", "show", "Show", 60_000), base+5_000, 0)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	ch.TickSchedule()

	require.True(t, ch.Locked())
	assert.Empty(t, ch.Queue(), "queued entries are dropped at takeover")

	cur := ch.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "Show", cur.Item.Title)
	assert.Equal(t, ProgramOwner, cur.Owner)
	assert.Equal(t, base+5_000, cur.StartedAt, "playback is stamped at the event start so late joiners land mid-program")

	history := ch.History()
	require.NotEmpty(t, history)
	assert.Equal(t, "X", history[len(history)-1].Item.Title, "the interrupted item is retired to history")
}

func TestTickSchedule_NoOpWhenEventAlreadyPlaying(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	_, err := ch.ScheduleEvent(item("yt", "show", "Show", 60_000), base+5_000, 0)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	ch.TickSchedule()
	require.True(t, ch.Locked())
	started := ch.Current().StartedAt

	// A second tick inside the same event leaves the playing slot alone.
	clock.Advance(5 * time.Second)
	ch.TickSchedule()
	assert.Equal(t, started, ch.Current().StartedAt)
	assert.True(t, ch.Locked())
}

func TestTickSchedule_UnlocksAfterEventEnds(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	_, err := ch.ScheduleEvent(item("yt", "show", "Show", 60_000), base+5_000, 0)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	ch.TickSchedule()
	require.True(t, ch.Locked())

	clock.Advance(2 * time.Minute)
	ch.TickSchedule()

	assert.False(t, ch.Locked())
	assert.Nil(t, ch.Current())
	assert.Empty(t, ch.Queue())
}

func TestTickSchedule_BackToBackEventsHandOver(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	_, err := ch.ScheduleEvent(item("yt", "first", "First", 60_000), base+5_000, 0)
	require.NoError(t, err)
	_, err = ch.ScheduleEvent(item("yt", "second", "Second", 60_000), base+65_000, 0)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	ch.TickSchedule()
	require.Equal(t, "First", ch.Current().Item.Title)

	clock.Advance(60 * time.Second)
	ch.TickSchedule()
	require.NotNil(t, ch.Current())
	assert.Equal(t, "Second", ch.Current().Item.Title)
	assert.True(t, ch.Locked())
}

func TestScheduleEvents_ListsPastAndPending(t *testing.T) {
	ch, clock := scheduleChannel(t)
	base := clock.Now().UnixMilli()

	_, err := ch.ScheduleEvent(item("yt", "a", "A", 10_000), base+1_000, 0)
	require.NoError(t, err)
	_, err = ch.ScheduleEvent(item("yt", "b", "B", 10_000), base+60_000, 0)
	require.NoError(t, err)

	// Let the first event finish and migrate to the past list.
	clock.Advance(30 * time.Second)
	ch.TickSchedule()

	events := ch.ScheduleEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].Item.Title)
	assert.Equal(t, "B", events[1].Item.Title)
}
