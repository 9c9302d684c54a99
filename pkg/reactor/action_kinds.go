package reactor

import "time"

// StartupAction is the singleton virtual action that triggers startup
// reactions at Tag{}.
type StartupAction struct {
	key ActionKey
}

func NewStartupAction(key ActionKey) *StartupAction { return &StartupAction{key: key} }

func (a *StartupAction) Name() string          { return "startup" }
func (a *StartupAction) Key() ActionKey        { return a.key }
func (a *StartupAction) Kind() ActionKind      { return ActionStartup }
func (a *StartupAction) MinDelay() time.Duration { return 0 }

// ShutdownAction is the singleton virtual action that triggers shutdown
// reactions at the terminal tag.
type ShutdownAction struct {
	key ActionKey
}

func NewShutdownAction(key ActionKey) *ShutdownAction { return &ShutdownAction{key: key} }

func (a *ShutdownAction) Name() string          { return "shutdown" }
func (a *ShutdownAction) Key() ActionKey        { return a.key }
func (a *ShutdownAction) Kind() ActionKind      { return ActionShutdown }
func (a *ShutdownAction) MinDelay() time.Duration { return 0 }

// LogicalAction is scheduled from inside a reaction at
// current_tag.delay(min_delay + user_delay). Its store is unlocked: it is
// only ever touched from the scheduler thread.
type LogicalAction[T any] struct {
	name     string
	key      ActionKey
	minDelay time.Duration
	Store    *ActionStore[T]
}

func NewLogicalAction[T any](name string, key ActionKey, minDelay time.Duration) *LogicalAction[T] {
	return &LogicalAction[T]{name: name, key: key, minDelay: minDelay, Store: NewActionStore[T](false)}
}

func (a *LogicalAction[T]) Name() string           { return a.name }
func (a *LogicalAction[T]) Key() ActionKey         { return a.key }
func (a *LogicalAction[T]) Kind() ActionKind       { return ActionLogical }
func (a *LogicalAction[T]) MinDelay() time.Duration { return a.minDelay }

// ClearOlderThan forwards to the store so Environment.PruneActionStores
// reaches it.
func (a *LogicalAction[T]) ClearOlderThan(tag Tag) { a.Store.ClearOlderThan(tag) }

// PhysicalAction is scheduled from any thread via a SendContext at
// (now - start_time + min_delay + user_delay, 0). Its store is mutex
// protected because producers may call Push concurrently with the
// scheduler reading it.
type PhysicalAction[T any] struct {
	name     string
	key      ActionKey
	minDelay time.Duration
	Store    *ActionStore[T]
}

func NewPhysicalAction[T any](name string, key ActionKey, minDelay time.Duration) *PhysicalAction[T] {
	return &PhysicalAction[T]{name: name, key: key, minDelay: minDelay, Store: NewActionStore[T](true)}
}

func (a *PhysicalAction[T]) Name() string           { return a.name }
func (a *PhysicalAction[T]) Key() ActionKey         { return a.key }
func (a *PhysicalAction[T]) Kind() ActionKind       { return ActionPhysical }
func (a *PhysicalAction[T]) MinDelay() time.Duration { return a.minDelay }

// ClearOlderThan forwards to the store so Environment.PruneActionStores
// reaches it.
func (a *PhysicalAction[T]) ClearOlderThan(tag Tag) { a.Store.ClearOlderThan(tag) }

// TimerAction is a derived logical action: at startup, if Offset > 0 it is
// scheduled once with delay Offset; at Offset == 0 it joins the initial
// reaction set. Its reaction reschedules it at delay Period unless Period
// is zero, in which case it is one-shot.
type TimerAction struct {
	name   string
	key    ActionKey
	Offset time.Duration
	Period time.Duration
	Store  *ActionStore[struct{}]
}

func NewTimerAction(name string, key ActionKey, offset, period time.Duration) *TimerAction {
	return &TimerAction{name: name, key: key, Offset: offset, Period: period, Store: NewActionStore[struct{}](false)}
}

func (a *TimerAction) Name() string           { return a.name }
func (a *TimerAction) Key() ActionKey         { return a.key }
func (a *TimerAction) Kind() ActionKind       { return ActionTimer }
func (a *TimerAction) MinDelay() time.Duration { return 0 }

// ClearOlderThan forwards to the store so Environment.PruneActionStores
// reaches it.
func (a *TimerAction) ClearOlderThan(tag Tag) { a.Store.ClearOlderThan(tag) }

// OneShot reports whether the timer never reschedules itself.
func (a *TimerAction) OneShot() bool { return a.Period == 0 }
