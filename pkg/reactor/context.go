package reactor

import "time"

// Context is the per-tag dispatch handle every TriggerFunc receives. It
// exposes the current tag and collects whatever the reaction schedules
// (future events, a shutdown request) so the scheduler can fold them into
// the event loop after the whole level's batch finishes. A reaction never
// mutates the EventQueue directly, which is what keeps same-level
// parallel dispatch race-free.
type Context struct {
	tag       Tag
	startTime time.Time
	graph     *ReactionGraph

	pending       []*ScheduledEvent
	shutdown      bool
	shutdownDelay time.Duration
}

func newContext(tag Tag, startTime time.Time, graph *ReactionGraph) *Context {
	return &Context{tag: tag, startTime: startTime, graph: graph}
}

// Tag returns the logical tag this reaction is firing at.
func (c *Context) Tag() Tag { return c.tag }

// Elapsed returns the wall-clock duration since the scheduler started,
// independent of the logical tag. Used by reactions that want to read
// real time without scheduling anything.
func (c *Context) Elapsed() time.Duration { return time.Since(c.startTime) }

// RequestShutdown marks this tag's batch as wanting a terminal event
// scheduled at current_tag.Delay(extraDelay) once the batch completes.
// extraDelay of zero terminates at the tag's next microstep. Idempotent
// within a batch.
func (c *Context) RequestShutdown(extraDelay time.Duration) {
	c.shutdown = true
	c.shutdownDelay = extraDelay
}

// shutdownRequested reports whether RequestShutdown was called during
// this dispatch batch.
func (c *Context) shutdownRequested() bool { return c.shutdown }

// shutdownDelayRequested returns the extraDelay passed to RequestShutdown.
func (c *Context) shutdownDelayRequested() time.Duration { return c.shutdownDelay }

// drainPending returns and clears the events scheduled during this
// context's lifetime, for the scheduler to push onto the EventQueue after
// the batch at c.tag finishes.
func (c *Context) drainPending() []*ScheduledEvent {
	out := c.pending
	c.pending = nil
	return out
}

// ScheduleLogical records value as pending at
// ctx.Tag().Delay(a.MinDelay()+delay) and schedules a into the event
// queue's next batch at that tag. This is the only legal way a reaction
// advances logical time.
func ScheduleLogical[T any](ctx *Context, a *LogicalAction[T], delay time.Duration, value T) Tag {
	tag := ctx.tag.Delay(a.MinDelay() + delay)
	a.Store.Push(tag, value)
	ctx.pending = append(ctx.pending, &ScheduledEvent{
		Tag:       tag,
		Reactions: ctx.graph.DownstreamOfAction(a.Key()),
	})
	return tag
}

// ScheduleTimer records the timer's next firing at ctx.Tag().Delay(by),
// where by is the timer's configured Period. Used by the timer's own
// reaction to reschedule itself; callers never need the
// returned tag but it mirrors ScheduleLogical's signature for symmetry.
func ScheduleTimer(ctx *Context, a *TimerAction, by time.Duration) Tag {
	tag := ctx.tag.Delay(by)
	a.Store.Push(tag, struct{}{})
	ctx.pending = append(ctx.pending, &ScheduledEvent{
		Tag:       tag,
		Reactions: ctx.graph.DownstreamOfAction(a.Key()),
	})
	return tag
}

// SendContext is the thread-safe handle physical-action producers use
// from outside the scheduler goroutine. Unlike Context it never touches
// the EventQueue directly: it goes through the AsyncChannel, which is the
// only structure shared across goroutines in the entire runtime.
type SendContext struct {
	startTime time.Time
	graph     *ReactionGraph
	async     *AsyncChannel
}

// NewSendContext constructs a SendContext bound to one scheduler run. It
// is safe to share across any number of producer goroutines and to hold
// past that run's shutdown (later sends are simply dropped by the closed
// AsyncChannel).
func NewSendContext(startTime time.Time, graph *ReactionGraph, async *AsyncChannel) *SendContext {
	return &SendContext{startTime: startTime, graph: graph, async: async}
}

// physicalTag computes the wall-clock-derived tag a physical event lands
// at: (time since start) + the action's declared delay, always at
// microstep 0 since it has no logical predecessor tag to cascade from
//.
func (s *SendContext) physicalTag(minDelay, delay time.Duration) Tag {
	return Tag{Offset: time.Since(s.startTime) + minDelay + delay, Microstep: 0}
}

// SchedulePhysical pushes value into a's store at the computed wall-clock
// tag and enqueues its downstream reactions via the AsyncChannel. Safe to
// call concurrently from any number of goroutines and concurrently with
// the scheduler itself.
func SchedulePhysical[T any](s *SendContext, a *PhysicalAction[T], delay time.Duration, value T) Tag {
	tag := s.physicalTag(a.MinDelay(), delay)
	a.Store.Push(tag, value)
	s.async.Send(&ScheduledEvent{
		Tag:       tag,
		Reactions: s.graph.DownstreamOfAction(a.Key()),
	})
	return tag
}

// RequestShutdown enqueues a terminal event at the current wall-clock tag
// plus extraDelay via the AsyncChannel, for use by signal handlers and
// other code running outside any reaction.
func (s *SendContext) RequestShutdown(extraDelay time.Duration) {
	s.async.Send(&ScheduledEvent{
		Tag:       Tag{Offset: time.Since(s.startTime) + extraDelay, Microstep: 0},
		Reactions: s.graph.ShutdownReactions,
		Terminal:  true,
	})
}
