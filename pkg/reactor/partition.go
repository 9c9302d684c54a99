package reactor

import "fmt"

// Partitioning lets a reaction receive typed references to its
// declared ports/actions without a runtime hash lookup: the Environment
// gathers the reaction's key lists into ordered, type-erased slices at
// dispatch time, and the reaction's own trigger closure peels them back
// off in declaration order using the helpers below. A mismatch means the
// builder wired the wrong key into the wrong slot, a builder bug rather
// than a runtime condition, so these panic with a dispatch *Error, which
// the scheduler's batch recovery turns back into a returned error.

// PartitionPort downcasts slot (an erasedPort from the reaction's ordered
// use/effect slice) to *Port[T].
func PartitionPort[T any](slot any) *Port[T] {
	p, ok := slot.(*Port[T])
	if !ok {
		panic(newDispatchError(ErrCodeTypeMismatch, fmt.Sprintf("expected *Port[%T], got %T", *new(T), slot)))
	}
	return p
}

// PartitionLogicalAction downcasts slot to *LogicalAction[T].
func PartitionLogicalAction[T any](slot any) *LogicalAction[T] {
	a, ok := slot.(*LogicalAction[T])
	if !ok {
		panic(newDispatchError(ErrCodeTypeMismatch, fmt.Sprintf("expected *LogicalAction[%T], got %T", *new(T), slot)))
	}
	return a
}

// PartitionPhysicalAction downcasts slot to *PhysicalAction[T].
func PartitionPhysicalAction[T any](slot any) *PhysicalAction[T] {
	a, ok := slot.(*PhysicalAction[T])
	if !ok {
		panic(newDispatchError(ErrCodeTypeMismatch, fmt.Sprintf("expected *PhysicalAction[%T], got %T", *new(T), slot)))
	}
	return a
}

// PartitionTimerAction downcasts slot to *TimerAction.
func PartitionTimerAction(slot any) *TimerAction {
	a, ok := slot.(*TimerAction)
	if !ok {
		panic(newDispatchError(ErrCodeTypeMismatch, fmt.Sprintf("expected *TimerAction, got %T", slot)))
	}
	return a
}
