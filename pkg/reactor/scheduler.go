package reactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Tracer is the optional per-tag instrumentation hook the scheduler calls
// through. It is never required for correctness: a nil Tracer (the
// zero-value NoopTracer) is a valid scheduler configuration, but it lets
// pkg/observability attach OpenTelemetry spans around each tag's dispatch
// without the scheduling core importing otel directly.
type Tracer interface {
	TagStart(tag Tag)
	TagEnd(tag Tag)
	ReactionPanic(reactionName string, tag Tag, recovered any)
}

// NoopTracer discards every call. It is the scheduler's default Tracer.
type NoopTracer struct{}

func (NoopTracer) TagStart(Tag)                  {}
func (NoopTracer) TagEnd(Tag)                     {}
func (NoopTracer) ReactionPanic(string, Tag, any) {}

// Scheduler drives the reactor model's deterministic event loop: drain the AsyncChannel, pop the earliest tag, dispatch its
// reaction set level by level with same-level reactions run concurrently,
// fold newly scheduled events back in, clean up ports, and repeat until
// the terminal event or an empty queue with keep_alive disabled.
type Scheduler struct {
	env         *Environment
	queue       *EventQueue
	async       *AsyncChannel
	startTime   time.Time
	logger      *slog.Logger
	tracer      Tracer
	keepAlive   bool
	fastForward bool
	timeout     time.Duration // <=0 means unset
}

// SchedulerOption configures optional Scheduler behavior.
type SchedulerOption func(*Scheduler)

// WithLogger overrides the scheduler's structured logger (default:
// slog.Default()).
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithTracer attaches an instrumentation hook (default: NoopTracer{}).
func WithTracer(t Tracer) SchedulerOption {
	return func(s *Scheduler) {
		if t == nil {
			t = NoopTracer{}
		}
		s.tracer = t
	}
}

// WithKeepAlive keeps the event loop alive on an empty queue instead of
// shutting down, so externally-scheduled physical actions arriving later
// are still honored.
func WithKeepAlive(keepAlive bool) SchedulerOption {
	return func(s *Scheduler) { s.keepAlive = keepAlive }
}

// WithFastForward skips wall-clock waits entirely: the scheduler
// processes every tag as soon as it is the earliest queued, regardless of
// how far its logical offset sits in the future. Useful for tests and deterministic replay.
func WithFastForward(fastForward bool) SchedulerOption {
	return func(s *Scheduler) { s.fastForward = fastForward }
}

// WithTimeout preloads a shutdown event at logical tag (d, 0), so the run
// terminates no later than d regardless of what the reaction graph itself
// schedules. d<=0 leaves no timeout set.
func WithTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.timeout = d }
}

// NewScheduler constructs a scheduler over env. env.Validate() must have
// already succeeded; NewScheduler itself re-validates defensively since a
// caller might mutate env.Graph() after building but before running.
func NewScheduler(env *Environment, opts ...SchedulerOption) (*Scheduler, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		env:    env,
		queue:  NewEventQueue(),
		async:  NewAsyncChannel(),
		logger: slog.Default(),
		tracer: NoopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AsyncChannel exposes the scheduler's intake channel so callers can build
// a SendContext bound to it before Run starts.
func (s *Scheduler) AsyncChannel() *AsyncChannel { return s.async }

// SendContext returns a SendContext bound to this scheduler's clock and
// graph, valid for the lifetime of the run in progress.
// Must be called after Run has set the start time; callers typically call
// it from inside a Startup reaction or hand it to a goroutine launched by
// one.
func (s *Scheduler) SendContext() *SendContext {
	return NewSendContext(s.startTime, s.env.Graph(), s.async)
}

// Run executes the event loop to completion: from Tag{} through startup,
// every scheduled tag in order, and finally shutdown, returning when the
// terminal event is processed, the queue runs dry with keep_alive
// disabled (shutdown reactions then run one microstep after the last
// processed tag), or ctx is cancelled (no shutdown reactions run).
func (s *Scheduler) Run(ctx context.Context) error {
	s.startTime = time.Now()
	s.logger.Info("reactor scheduler starting", "num_reactions", s.env.NumReactions(), "max_level", s.env.Graph().MaxLevel)

	s.queue.Push(&ScheduledEvent{Tag: ZeroTag, Reactions: s.env.Graph().StartupReactions})
	s.scheduleTimerOffsets()
	if s.timeout > 0 {
		s.queue.Push(&ScheduledEvent{
			Tag:       Tag{Offset: s.timeout},
			Reactions: s.env.Graph().ShutdownReactions,
			Terminal:  true,
		})
	}

	var lastTag Tag
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reactor scheduler stopping: context cancelled")
			return ctx.Err()
		default:
		}

		s.async.DrainInto(s.queue)

		evt := s.queue.Peek()
		if evt == nil {
			if !s.keepAlive {
				s.logger.Info("reactor scheduler stopping: queue empty")
				return s.processTag(&ScheduledEvent{
					Tag:       lastTag.Delay(0),
					Reactions: s.env.Graph().ShutdownReactions,
					Terminal:  true,
				})
			}
			s.async.WaitSignal(ctx, 50*time.Millisecond)
			continue
		}

		if err := s.waitForTag(ctx, evt.Tag); err != nil {
			return err
		}
		if s.queue.Peek() != evt {
			continue // an earlier event arrived during the wait; process it first
		}

		s.queue.Pop()
		if err := s.processTag(evt); err != nil {
			return err
		}
		lastTag = evt.Tag

		if evt.Terminal {
			s.logger.Info("reactor scheduler stopping: terminal event processed", "tag", evt.Tag.String())
			return nil
		}
	}
}

// scheduleTimerOffsets pre-schedules the first firing of every registered
// TimerAction at logical tag (Offset, 0), mirroring the push ScheduleTimer
// performs from inside a running reaction. A timer with Offset == 0 lands
// at ZeroTag, where its event merges with the startup event, so it fires
// as part of the initial reaction set.
func (s *Scheduler) scheduleTimerOffsets() {
	for i := 0; i < s.env.NumActions(); i++ {
		timer, ok := s.env.Action(ActionKey(i)).(*TimerAction)
		if !ok || timer.Offset < 0 {
			continue
		}
		tag := Tag{Offset: timer.Offset}
		timer.Store.Push(tag, struct{}{})
		s.queue.Push(&ScheduledEvent{
			Tag:       tag,
			Reactions: s.env.Graph().DownstreamOfAction(timer.Key()),
		})
	}
}

// waitForTag blocks until wall-clock time has caught up to tag's logical
// offset from start, or a higher-priority async event arrives and should
// be merged in first, or ctx is cancelled.
func (s *Scheduler) waitForTag(ctx context.Context, tag Tag) error {
	if s.fastForward {
		return nil
	}
	for {
		remaining := tag.Offset - time.Since(s.startTime)
		if remaining <= 0 {
			return nil
		}
		woke := s.async.WaitSignal(ctx, remaining)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !woke {
			return nil // timer elapsed exactly at tag
		}
		// Something arrived on the async channel; drain it and re-check
		// whether it's earlier than the tag we're waiting for.
		s.async.DrainInto(s.queue)
		head := s.queue.Peek()
		if head != nil && head.Tag.Before(tag) {
			return nil // let the main loop re-peek and process the earlier tag
		}
	}
}

// processTag dispatches every reaction in evt level by level via a
// KeySet, folding newly scheduled events and any shutdown request back
// into the queue once the whole batch completes. Ports
// written mid-batch feed back into the same KeySet through ExtendAbove,
// which is what lets one reaction's effect trigger another reaction later
// in the same tag without a second pass over the EventQueue.
func (s *Scheduler) processTag(evt *ScheduledEvent) error {
	s.tracer.TagStart(evt.Tag)
	defer s.tracer.TagEnd(evt.Tag)

	ks := KeySetFromPairs(evt.Reactions...)
	var pending []*ScheduledEvent
	shutdownRequested := false
	var shutdownDelay time.Duration

	for {
		level, keys, ok := ks.Next()
		if !ok {
			break
		}

		results := make([]*Context, len(keys))
		errs := make([]error, len(keys))

		var wg sync.WaitGroup
		for i, rk := range keys {
			wg.Add(1)
			go func(i int, rk ReactionKey) {
				defer wg.Done()
				results[i], errs[i] = s.dispatchOne(evt.Tag, rk)
			}(i, rk)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				return err
			}
			rk := keys[i]
			pending = append(pending, results[i].drainPending()...)
			if results[i].shutdownRequested() {
				shutdownRequested = true
				shutdownDelay = results[i].shutdownDelayRequested()
			}
			for _, portKey := range s.env.Reaction(rk).EffectPorts() {
				if s.env.Port(portKey).IsSet() {
					ks.ExtendAbove(level, s.env.Graph().DownstreamOfPort(portKey)...)
				}
			}
		}
	}

	s.env.CleanupPorts()
	s.env.PruneActionStores(evt.Tag)
	s.queue.PushAll(pending)
	if shutdownRequested {
		s.queue.Push(&ScheduledEvent{
			Tag:       evt.Tag.Delay(shutdownDelay),
			Reactions: s.env.Graph().ShutdownReactions,
			Terminal:  true,
		})
	}
	return nil
}

// dispatchOne runs a single reaction's trigger function with panic
// recovery, turning any panic into a fatal dispatch Error rather than
// crashing the scheduler goroutine pool.
func (s *Scheduler) dispatchOne(tag Tag, rk ReactionKey) (ctx *Context, err error) {
	r := s.env.Reaction(rk)
	ctx = newContext(tag, s.startTime, s.env.Graph())

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("reaction panicked", "reaction", r.Name(), "tag", tag.String(), "recovered", rec)
			s.tracer.ReactionPanic(r.Name(), tag, rec)
			recErr, ok := rec.(error)
			if !ok {
				recErr = fmt.Errorf("%v", rec)
			}
			err = newPanicError(r.Name(), recErr)
		}
	}()

	reactorState := s.env.ReactorState(r.ReactorKey())
	uses := s.env.GatherUses(r)
	effects := s.env.GatherEffects(r)
	actions := s.env.GatherActions(r)
	triggerFunc := r.trigger
	triggerFunc(ctx, reactorState, uses, effects, actions)
	return ctx, nil
}

