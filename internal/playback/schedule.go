package playback

import (
	"fmt"
	"sort"

	"github.com/skychatorg/skyplayer/internal/logger"
	"github.com/skychatorg/skyplayer/internal/models"
)

// pastEventRetention bounds how many finished events the program keeps around
// for the schedule listing before they age out.
const pastEventRetention = 100

// program holds one channel's conflict-free, time-boxed broadcast events.
// Events live in a future list (ascending start) until their end time is
// reached by a tick, then migrate to a past list (ascending end), never the
// reverse. The owning channel's mutex guards all access.
type program struct {
	future []models.ScheduledEvent
	past   []models.ScheduledEvent
}

func newProgram() *program {
	return &program{}
}

// add validates and inserts an event. The interval must not lie in the past
// and must not intersect any pending event; intervals that merely touch are
// fine.
func (p *program) add(ev models.ScheduledEvent, nowMS int64) error {
	if ev.Start < nowMS || ev.End() <= nowMS {
		return fmt.Errorf("event at %d: %w", ev.Start, ErrInvalidTimeRange)
	}
	for _, existing := range p.future {
		if ev.Overlaps(existing) {
			return fmt.Errorf("event at %d overlaps event at %d: %w", ev.Start, existing.Start, ErrScheduleConflict)
		}
	}

	p.future = insertSorted(p.future, ev, func(a, b models.ScheduledEvent) bool { return a.Start < b.Start })
	return nil
}

// remove deletes the event with the exact start time from whichever list
// holds it.
func (p *program) remove(startMS int64) error {
	for i, ev := range p.future {
		if ev.Start == startMS {
			p.future = append(p.future[:i], p.future[i+1:]...)
			return nil
		}
	}
	for i, ev := range p.past {
		if ev.Start == startMS {
			p.past = append(p.past[:i], p.past[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no event starts at %d: %w", startMS, ErrEventNotFound)
}

// current migrates ended head events to the past list and returns the event
// whose interval contains now, if any.
func (p *program) current(nowMS int64) *models.ScheduledEvent {
	for len(p.future) > 0 {
		head := p.future[0]
		if head.Start > nowMS {
			return nil
		}
		if head.End() <= nowMS {
			p.future = p.future[1:]
			p.past = append(p.past, head)
			if len(p.past) > pastEventRetention {
				p.past = p.past[len(p.past)-pastEventRetention:]
			}
			continue
		}
		ev := head
		return &ev
	}
	return nil
}

// events returns past then pending events as one slice, for sanitizing.
func (p *program) events() []models.ScheduledEvent {
	out := make([]models.ScheduledEvent, 0, len(p.past)+len(p.future))
	out = append(out, p.past...)
	out = append(out, p.future...)
	return out
}

// restore repartitions a flat event list against the current clock.
func (p *program) restore(events []models.ScheduledEvent, nowMS int64) {
	p.future = nil
	p.past = nil
	for _, ev := range events {
		if ev.End() <= nowMS {
			p.past = append(p.past, ev)
		} else {
			p.future = append(p.future, ev)
		}
	}
	sort.SliceStable(p.past, func(i, j int) bool { return p.past[i].End() < p.past[j].End() })
	sort.SliceStable(p.future, func(i, j int) bool { return p.future[i].Start < p.future[j].Start })
}

func insertSorted(events []models.ScheduledEvent, ev models.ScheduledEvent, less func(a, b models.ScheduledEvent) bool) []models.ScheduledEvent {
	i := sort.Search(len(events), func(i int) bool { return less(ev, events[i]) })
	events = append(events, models.ScheduledEvent{})
	copy(events[i+1:], events[i:])
	events[i] = ev
	return events
}

// ScheduleEvent adds a time-boxed slot to the channel's program. The
// effective duration is the explicit value if given, else the item's own
// duration, else the configured default slot length for sources with no
// intrinsic length.
func (c *Channel) ScheduleEvent(item models.PlayableItem, startMS, durationMS int64) (models.ScheduledEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := durationMS
	if duration <= 0 {
		duration = item.Duration
	}
	if duration <= 0 {
		duration = c.opts.DefaultSlotDuration.Milliseconds()
	}

	ev := models.ScheduledEvent{Start: startMS, Duration: duration, Item: item}
	if err := c.program.add(ev, c.nowMS()); err != nil {
		logger.Log.Warn().
			Int("channel_id", c.id).
			Int64("start_ms", startMS).
			Err(err).
			Msg("Schedule request rejected")
		return models.ScheduledEvent{}, err
	}

	logger.Log.Info().
		Int("channel_id", c.id).
		Int64("start_ms", ev.Start).
		Int64("duration_ms", ev.Duration).
		Str("title", item.Title).
		Msg("Event scheduled")

	return ev, nil
}

// UnscheduleEvent removes the event with the given start time. Removing the
// currently authoritative event takes effect on the next tick.
func (c *Channel) UnscheduleEvent(startMS int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.program.remove(startMS)
}

// ScheduleEvents lists the channel's retained and pending events.
func (c *Channel) ScheduleEvents() []models.ScheduledEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.program.events()
}

// TickSchedule reconciles the channel against its program. When an event is
// due and the channel is not already playing exactly that item, the schedule
// locks the channel, drops the queue, and forces the scheduled item into the
// playing slot stamped at the event's start so late joiners land mid-program.
// When no event is due but the channel is still locked from a previous one,
// the leftover scheduled item is retired and normal queue playback resumes.
// Reconciling per tick rather than arming one-shot timers per event tolerates
// clock drift, missed ticks, and mid-flight add/remove of events.
func (c *Channel) TickSchedule() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowMS()
	ev := c.program.current(now)

	switch {
	case ev != nil:
		if c.current != nil && c.current.Item.SameSource(ev.Item) {
			return
		}
		c.locked = true
		c.queue = nil
		if c.current != nil {
			c.history = append(c.history, c.current.QueueEntry)
			if len(c.history) > c.opts.HistoryLimit {
				c.history = c.history[len(c.history)-c.opts.HistoryLimit:]
			}
		}
		c.current = &models.PlayingEntry{
			QueueEntry: models.QueueEntry{Owner: ProgramOwner, Item: ev.Item},
			StartedAt:  ev.Start,
		}
		c.armLocked()
		c.syncMembersLocked()

		logger.Log.Info().
			Int("channel_id", c.id).
			Str("title", ev.Item.Title).
			Msg("Scheduled event took over channel")

	case c.locked:
		c.queue = nil
		c.locked = false
		c.playNextLocked()

		logger.Log.Info().
			Int("channel_id", c.id).
			Msg("Scheduled event ended, channel unlocked")
	}
}
