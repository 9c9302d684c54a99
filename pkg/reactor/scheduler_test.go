package reactor_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

// --- Scenario 1: Ping-Pong ------------------------------------------------
//
// A Ping reactor and a Pong reactor connected ping.out -> pong.in and
// pong.out -> ping.in. Startup seeds pings_left = N and schedules a
// logical "serve" action. Each round trip runs within one tag via the
// same-tag port-feedback path (serve writes ping->pong, pong echoes back
// pong->ping, ping observes and either reschedules serve at a later tag or
// signals finished, which a top-level reaction turns into a shutdown
// request.
func TestPingPongScenario(t *testing.T) {
	const n = 5

	type pingState struct {
		pingsLeft  int
		roundTrips int
	}
	type pongState struct {
		echoCount int
	}

	env := reactor.NewEnvironment()
	pingKey := env.AddReactor("ping", &pingState{})
	pongKey := env.AddReactor("pong", &pongState{})

	pingToPong := reactor.NewPort[int]("ping_to_pong", 0)
	pongToPing := reactor.NewPort[int]("pong_to_ping", 0)
	finished := reactor.NewPort[struct{}]("finished", 0)
	p0 := env.AddPort(pingToPong)
	p1 := env.AddPort(pongToPing)
	p2 := env.AddPort(finished)

	serveAction := reactor.NewLogicalAction[struct{}]("serve", 0, 0)
	a0 := env.AddAction(serveAction)

	g := env.Graph()

	rStart := env.AddReaction(reactor.NewReaction("ping.in_start", env.NextReactionKey(), pingKey,
		func(ctx *reactor.Context, state any, uses, effects, actions []any) {
			ps := state.(*pingState)
			ps.pingsLeft = n
			act := reactor.PartitionLogicalAction[struct{}](actions[0])
			reactor.ScheduleLogical(ctx, act, 0, struct{}{})
		}, nil, nil, []reactor.ActionKey{a0}))
	g.StartupReactions = []reactor.LevelKey{reactor.Pair(0, rStart)}

	rServe := env.AddReaction(reactor.NewReaction("ping.serve", env.NextReactionKey(), pingKey,
		func(ctx *reactor.Context, state any, uses, effects, actions []any) {
			reactor.PartitionPort[int](effects[0]).Set(1)
		}, nil, []reactor.PortKey{p0}, nil))
	g.ActionTriggers[a0] = []reactor.LevelKey{reactor.Pair(0, rServe)}

	rEcho := env.AddReaction(reactor.NewReaction("pong.echo", env.NextReactionKey(), pongKey,
		func(ctx *reactor.Context, state any, uses, effects, actions []any) {
			pg := state.(*pongState)
			pg.echoCount++
			v, _ := reactor.PartitionPort[int](uses[0]).Get()
			reactor.PartitionPort[int](effects[0]).Set(v)
		}, []reactor.PortKey{p0}, []reactor.PortKey{p1}, nil))
	g.PortTriggers[p0] = []reactor.LevelKey{reactor.Pair(1, rEcho)}

	rReceive := env.AddReaction(reactor.NewReaction("ping.receive", env.NextReactionKey(), pingKey,
		func(ctx *reactor.Context, state any, uses, effects, actions []any) {
			ps := state.(*pingState)
			ps.roundTrips++
			ps.pingsLeft--
			if ps.pingsLeft > 0 {
				act := reactor.PartitionLogicalAction[struct{}](actions[0])
				reactor.ScheduleLogical(ctx, act, time.Millisecond, struct{}{})
			} else {
				reactor.PartitionPort[struct{}](effects[0]).Set(struct{}{})
			}
		}, []reactor.PortKey{p1}, []reactor.PortKey{p2}, []reactor.ActionKey{a0}))
	g.PortTriggers[p1] = []reactor.LevelKey{reactor.Pair(2, rReceive)}

	rShutdown := env.AddReaction(reactor.NewReaction("ping.request_shutdown", env.NextReactionKey(), pingKey,
		func(ctx *reactor.Context, state any, uses, effects, actions []any) {
			ctx.RequestShutdown(0)
		}, []reactor.PortKey{p2}, nil, nil))
	g.PortTriggers[p2] = []reactor.LevelKey{reactor.Pair(3, rShutdown)}

	for key, level := range map[reactor.ReactionKey]reactor.Level{
		rStart: 0, rServe: 0, rEcho: 1, rReceive: 2, rShutdown: 3,
	} {
		env.Reaction(key).SetLevel(level)
	}
	g.MaxLevel = 3
	g.ReactionReactors[rStart] = pingKey
	g.ReactionReactors[rServe] = pingKey
	g.ReactionReactors[rEcho] = pongKey
	g.ReactionReactors[rReceive] = pingKey
	g.ReactionReactors[rShutdown] = pingKey

	sched, err := reactor.NewScheduler(env, reactor.WithLogger(testLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sched.Run(ctx))

	ps := env.ReactorState(pingKey).(*pingState)
	pg := env.ReactorState(pongKey).(*pongState)
	require.Equal(t, n, ps.roundTrips)
	require.Equal(t, n, pg.echoCount)
	require.Equal(t, 0, ps.pingsLeft)
}

// --- Scenario 2: 100ms action delay ---------------------------------------
func TestActionDelayScenario(t *testing.T) {
	type state struct {
		observedTag reactor.Tag
		triggered   bool
	}
	env := reactor.NewEnvironment()
	rk := env.AddReactor("delay", &state{})

	delayed := reactor.NewLogicalAction[struct{}]("delayed", 0, 100*time.Millisecond)
	a0 := env.AddAction(delayed)

	g := env.Graph()
	rStart := env.AddReaction(reactor.NewReaction("source", env.NextReactionKey(), rk,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			act := reactor.PartitionLogicalAction[struct{}](actions[0])
			reactor.ScheduleLogical(ctx, act, 0, struct{}{})
		}, nil, nil, []reactor.ActionKey{a0}))
	g.StartupReactions = []reactor.LevelKey{reactor.Pair(0, rStart)}

	rSink := env.AddReaction(reactor.NewReaction("sink", env.NextReactionKey(), rk,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			st := s.(*state)
			st.observedTag = ctx.Tag()
			st.triggered = true
		}, nil, nil, nil))
	g.ActionTriggers[a0] = []reactor.LevelKey{reactor.Pair(0, rSink)}

	env.Reaction(rStart).SetLevel(0)
	env.Reaction(rSink).SetLevel(0)
	g.MaxLevel = 0
	g.ReactionReactors[rStart] = rk
	g.ReactionReactors[rSink] = rk

	sched, err := reactor.NewScheduler(env, reactor.WithLogger(testLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Run(ctx))

	st := env.ReactorState(rk).(*state)
	require.True(t, st.triggered)
	require.Equal(t, 100*time.Millisecond, st.observedTag.Offset)
}

// --- Scenario 3: Periodic timer -------------------------------------------
func TestPeriodicTimerScenario(t *testing.T) {
	const period = 20 * time.Millisecond
	const n = 3 // N additional firings beyond t=0

	type state struct {
		count int32
	}
	env := reactor.NewEnvironment()
	rk := env.AddReactor("timed", &state{})

	timer := reactor.NewTimerAction("timer", 0, 0, period)
	a0 := env.AddAction(timer)
	g := env.Graph()

	rTick := env.AddReaction(reactor.NewReaction("tick", env.NextReactionKey(), rk,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			st := s.(*state)
			atomic.AddInt32(&st.count, 1)
			act := reactor.PartitionTimerAction(actions[0])
			if !act.OneShot() && int(atomic.LoadInt32(&st.count)) <= n {
				reactor.ScheduleTimer(ctx, act, act.Period)
			}
		}, nil, nil, []reactor.ActionKey{a0}))
	g.ActionTriggers[a0] = []reactor.LevelKey{reactor.Pair(0, rTick)}
	g.StartupReactions = []reactor.LevelKey{reactor.Pair(0, rTick)}

	env.Reaction(rTick).SetLevel(0)
	g.MaxLevel = 0
	g.ReactionReactors[rTick] = rk

	sched, err := reactor.NewScheduler(env, reactor.WithLogger(testLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(n+1)*period+500*time.Millisecond)
	defer cancel()
	require.NoError(t, sched.Run(ctx))

	st := env.ReactorState(rk).(*state)
	require.Equal(t, int32(n+1), atomic.LoadInt32(&st.count))
}

// TestTimerOffsetSchedulesFirstFiring verifies a timer with Offset > 0 and
// no entry in StartupReactions still fires once, at tag (Offset, 0),
// purely from Scheduler.Run's own startup pre-scheduling.
func TestTimerOffsetSchedulesFirstFiring(t *testing.T) {
	const offset = 30 * time.Millisecond

	type state struct {
		observedTag reactor.Tag
		fired       int32
	}
	env := reactor.NewEnvironment()
	rk := env.AddReactor("delayed", &state{})

	timer := reactor.NewTimerAction("warmup", 0, offset, 0)
	a0 := env.AddAction(timer)
	g := env.Graph()

	rTick := env.AddReaction(reactor.NewReaction("fire", env.NextReactionKey(), rk,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			st := s.(*state)
			atomic.AddInt32(&st.fired, 1)
			st.observedTag = ctx.Tag()
		}, nil, nil, []reactor.ActionKey{a0}))
	g.ActionTriggers[a0] = []reactor.LevelKey{reactor.Pair(0, rTick)}

	env.Reaction(rTick).SetLevel(0)
	g.MaxLevel = 0
	g.ReactionReactors[rTick] = rk

	sched, err := reactor.NewScheduler(env, reactor.WithLogger(testLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Run(ctx))

	st := env.ReactorState(rk).(*state)
	require.Equal(t, int32(1), atomic.LoadInt32(&st.fired))
	require.Equal(t, offset, st.observedTag.Offset)
}

// --- Scenario 4: Multiport broadcast ---------------------------------------
func TestMultiportBroadcastScenario(t *testing.T) {
	const w = 6
	const v = 7

	type srcState struct{}
	type dstState struct {
		sum int
	}

	env := reactor.NewEnvironment()
	srcKey := env.AddReactor("src", &srcState{})
	dstKey := env.AddReactor("dst", &dstState{})

	ports := make([]reactor.PortKey, w)
	for i := 0; i < w; i++ {
		ports[i] = env.AddPort(reactor.NewPort[int](fmt.Sprintf("bank[%d]", i), reactor.PortKey(i)))
	}
	g := env.Graph()

	effects := append([]reactor.PortKey(nil), ports...)
	rBroadcast := env.AddReaction(reactor.NewReaction("broadcast", env.NextReactionKey(), srcKey,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			for _, slot := range effects {
				reactor.PartitionPort[int](slot).Set(v)
			}
		}, nil, effects, nil))
	g.StartupReactions = []reactor.LevelKey{reactor.Pair(0, rBroadcast)}

	var mu sync.Mutex
	uses := append([]reactor.PortKey(nil), ports...)
	rCollect := env.AddReaction(reactor.NewReaction("collect", env.NextReactionKey(), dstKey,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			st := s.(*dstState)
			total := 0
			for _, slot := range uses {
				val, ok := reactor.PartitionPort[int](slot).Get()
				if ok {
					total += val
				}
			}
			mu.Lock()
			st.sum += total
			mu.Unlock()
		}, uses, nil, nil))
	for _, p := range ports {
		g.PortTriggers[p] = append(g.PortTriggers[p], reactor.Pair(1, rCollect))
	}

	env.Reaction(rBroadcast).SetLevel(0)
	env.Reaction(rCollect).SetLevel(1)
	g.MaxLevel = 1
	g.ReactionReactors[rBroadcast] = srcKey
	g.ReactionReactors[rCollect] = dstKey

	sched, err := reactor.NewScheduler(env, reactor.WithLogger(testLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Run(ctx))

	st := env.ReactorState(dstKey).(*dstState)
	require.Equal(t, w*v, st.sum)
}

// --- Scenario 5: Physical action wake-up -----------------------------------
func TestPhysicalActionWakeupScenario(t *testing.T) {
	type state struct {
		observed int32
		tag      reactor.Tag
	}
	env := reactor.NewEnvironment()
	rk := env.AddReactor("wake", &state{})

	act := reactor.NewPhysicalAction[int32]("wake", 0, 0)
	a0 := env.AddAction(act)
	g := env.Graph()

	rWake := env.AddReaction(reactor.NewReaction("on_wake", env.NextReactionKey(), rk,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			pa := reactor.PartitionPhysicalAction[int32](actions[0])
			v, ok := pa.Store.GetCurrent(ctx.Tag())
			if ok {
				st := s.(*state)
				atomic.StoreInt32(&st.observed, v)
				st.tag = ctx.Tag()
			}
		}, nil, nil, []reactor.ActionKey{a0}))
	g.ActionTriggers[a0] = []reactor.LevelKey{reactor.Pair(0, rWake)}
	env.Reaction(rWake).SetLevel(0)
	g.MaxLevel = 0
	g.ReactionReactors[rWake] = rk

	sched, err := reactor.NewScheduler(env, reactor.WithLogger(testLogger()), reactor.WithKeepAlive(true))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var runErr error
	done := make(chan struct{})
	go func() {
		runErr = sched.Run(ctx)
		close(done)
	}()

	// Give the scheduler a moment to start, then fire the physical action
	// from another goroutine shortly after, to keep the test fast without
	// changing the mechanism under test.
	time.Sleep(20 * time.Millisecond)
	sendCtx := sched.SendContext()
	go func() {
		time.Sleep(100 * time.Millisecond)
		reactor.SchedulePhysical(sendCtx, act, 0, int32(42))
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&env.ReactorState(rk).(*state).observed) == 42
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	_ = runErr
}

// --- Scenario 6: Shutdown event ordering -----------------------------------
func TestShutdownEventOrderingScenario(t *testing.T) {
	type state struct {
		order []string
	}
	env := reactor.NewEnvironment()
	rk := env.AddReactor("order", &state{})
	g := env.Graph()

	rRegular := env.AddReaction(reactor.NewReaction("regular", env.NextReactionKey(), rk,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			st := s.(*state)
			st.order = append(st.order, "regular")
		}, nil, nil, nil))
	rShutdown := env.AddReaction(reactor.NewReaction("shutdown", env.NextReactionKey(), rk,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			st := s.(*state)
			st.order = append(st.order, "shutdown")
		}, nil, nil, nil))

	g.StartupReactions = []reactor.LevelKey{reactor.Pair(0, rRegular)}
	g.ShutdownReactions = []reactor.LevelKey{reactor.Pair(0, rShutdown)}

	env.Reaction(rRegular).SetLevel(0)
	env.Reaction(rShutdown).SetLevel(0)
	g.MaxLevel = 0
	g.ReactionReactors[rRegular] = rk
	g.ReactionReactors[rShutdown] = rk

	sched, err := reactor.NewScheduler(env, reactor.WithLogger(testLogger()))
	require.NoError(t, err)

	// The regular reaction fires from the startup event at ZeroTag; seed
	// a terminal event at the same tag via the scheduler's async intake,
	// so the queue must order the two events at that tag correctly.
	sched.AsyncChannel().Send(&reactor.ScheduledEvent{Tag: reactor.ZeroTag, Reactions: g.ShutdownReactions, Terminal: true})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Run(ctx))

	st := env.ReactorState(rk).(*state)
	require.Equal(t, []string{"regular", "shutdown"}, st.order)
}

// TestRequestShutdownExtraDelayDefersTerminalTag verifies a reaction's
// RequestShutdown(extraDelay) lands the terminal event at
// current_tag.Delay(extraDelay) rather than terminating immediately.
func TestRequestShutdownExtraDelayDefersTerminalTag(t *testing.T) {
	const extraDelay = 50 * time.Millisecond

	type state struct {
		shutdownTag reactor.Tag
		fired       bool
	}
	env := reactor.NewEnvironment()
	rk := env.AddReactor("deferred", &state{})
	g := env.Graph()

	rStart := env.AddReaction(reactor.NewReaction("request", env.NextReactionKey(), rk,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			ctx.RequestShutdown(extraDelay)
		}, nil, nil, nil))
	rShutdown := env.AddReaction(reactor.NewReaction("observe", env.NextReactionKey(), rk,
		func(ctx *reactor.Context, s any, uses, effects, actions []any) {
			st := s.(*state)
			st.fired = true
			st.shutdownTag = ctx.Tag()
		}, nil, nil, nil))

	g.StartupReactions = []reactor.LevelKey{reactor.Pair(0, rStart)}
	g.ShutdownReactions = []reactor.LevelKey{reactor.Pair(0, rShutdown)}

	env.Reaction(rStart).SetLevel(0)
	env.Reaction(rShutdown).SetLevel(0)
	g.MaxLevel = 0
	g.ReactionReactors[rStart] = rk
	g.ReactionReactors[rShutdown] = rk

	sched, err := reactor.NewScheduler(env, reactor.WithLogger(testLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Run(ctx))

	st := env.ReactorState(rk).(*state)
	require.True(t, st.fired)
	require.Equal(t, extraDelay, st.shutdownTag.Offset)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
