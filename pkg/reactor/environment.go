package reactor

import "fmt"

// Environment owns every reactor, action, port, and reaction in four flat
// tables keyed by dense integer keys assigned at registration time. Keys
// are stable for the environment's lifetime. Tables are never
// structurally mutated once NewEnvironment's caller hands the result to a
// Scheduler: only port values and action stores change per tag, and
// those are always accessed by index into disjoint slices, never through
// a shared map, so concurrent reactions in one dispatch batch can hold
// distinct mutable references into the same tables safely.
type Environment struct {
	reactorStates []any
	reactorNames  []string
	actions       []Action
	ports         []erasedPort
	reactions     []*Reaction
	graph         *ReactionGraph
}

// NewEnvironment constructs an empty environment.
func NewEnvironment() *Environment {
	return &Environment{graph: NewReactionGraph()}
}

// AddReactor registers a reactor's mutable state object and returns its
// key. state is typically a pointer to a user-defined struct; reactions
// receive it back via dispatch as `any` and type-assert to their known
// reactor type.
func (e *Environment) AddReactor(name string, state any) ReactorKey {
	e.reactorNames = append(e.reactorNames, name)
	e.reactorStates = append(e.reactorStates, state)
	return ReactorKey(len(e.reactorStates) - 1)
}

// AddAction registers an action and returns its key.
func (e *Environment) AddAction(a Action) ActionKey {
	e.actions = append(e.actions, a)
	return ActionKey(len(e.actions) - 1)
}

// AddPort registers a port and returns its key.
func (e *Environment) AddPort(p erasedPort) PortKey {
	e.ports = append(e.ports, p)
	return PortKey(len(e.ports) - 1)
}

// AddReaction registers a reaction and returns its key.
func (e *Environment) AddReaction(r *Reaction) ReactionKey {
	e.reactions = append(e.reactions, r)
	return ReactionKey(len(e.reactions) - 1)
}

// NextReactionKey previews the key AddReaction will assign to the next
// reaction registered, so builders can construct a Reaction (which needs
// its own key up front for diagnostics) before calling AddReaction.
func (e *Environment) NextReactionKey() ReactionKey { return ReactionKey(len(e.reactions)) }

// Graph returns the environment's static reaction graph, mutable until
// the environment is handed to a Scheduler.
func (e *Environment) Graph() *ReactionGraph { return e.graph }

// ReactorState returns the mutable state object for key.
func (e *Environment) ReactorState(key ReactorKey) any {
	return e.reactorStates[key]
}

// ReactorName returns the declared name for key, used in diagnostics.
func (e *Environment) ReactorName(key ReactorKey) string {
	return e.reactorNames[key]
}

// Reaction returns the reaction registered at key.
func (e *Environment) Reaction(key ReactionKey) *Reaction {
	return e.reactions[key]
}

// NumReactions, NumPorts, NumActions report flat-table sizes, used by
// graph validation and by the scheduler's startup bounds check.
func (e *Environment) NumReactions() int { return len(e.reactions) }
func (e *Environment) NumPorts() int     { return len(e.ports) }
func (e *Environment) NumActions() int   { return len(e.actions) }

// Port returns the type-erased port at key (for cleanup iteration).
func (e *Environment) Port(key PortKey) erasedPort { return e.ports[key] }

// Action returns the action at key.
func (e *Environment) Action(key ActionKey) Action { return e.actions[key] }

// GatherUses builds the ordered, type-erased slice of a reaction's used
// ports, the slice its TriggerFunc's `uses` parameter receives.
func (e *Environment) GatherUses(r *Reaction) []any {
	out := make([]any, len(r.UsePorts()))
	for i, key := range r.UsePorts() {
		out[i] = e.port(key, r.Name())
	}
	return out
}

// GatherEffects builds the ordered, type-erased slice of a reaction's
// effected ports.
func (e *Environment) GatherEffects(r *Reaction) []any {
	out := make([]any, len(r.EffectPorts()))
	for i, key := range r.EffectPorts() {
		out[i] = e.port(key, r.Name())
	}
	return out
}

// GatherActions builds the ordered, type-erased slice of a reaction's
// touched actions.
func (e *Environment) GatherActions(r *Reaction) []any {
	out := make([]any, len(r.Actions()))
	for i, key := range r.Actions() {
		out[i] = e.action(key, r.Name())
	}
	return out
}

// port looks up a port by key, panicking with a dispatch Error if the key
// falls outside the flat table: Validate should have caught a dangling
// key before the loop ever started, so reaching this at trigger time means
// a builder assembled the graph after validating it, or bypassed Validate
// entirely. The panic is recovered by the scheduler's per-reaction
// dispatch, same as a PartitionPort type mismatch.
func (e *Environment) port(key PortKey, reactionName string) erasedPort {
	if int(key) < 0 || int(key) >= len(e.ports) {
		panic(newDispatchError(ErrCodeMissingPort, fmt.Sprintf("reaction %q references unknown port key %d", reactionName, key)))
	}
	return e.ports[key]
}

// action looks up an action by key with the same missing-key handling as port.
func (e *Environment) action(key ActionKey, reactionName string) Action {
	if int(key) < 0 || int(key) >= len(e.actions) {
		panic(newDispatchError(ErrCodeMissingAction, fmt.Sprintf("reaction %q references unknown action key %d", reactionName, key)))
	}
	return e.actions[key]
}

// CleanupPorts resets every port to unset. The scheduler calls this
// exactly once per tag after the reaction set is exhausted.
func (e *Environment) CleanupPorts() {
	for _, p := range e.ports {
		p.Cleanup()
	}
}

// PruneActionStores evicts entries older than tag from every action whose
// store supports pruning (Logical/Physical/Timer; Startup/Shutdown carry
// no store).
func (e *Environment) PruneActionStores(tag Tag) {
	for _, a := range e.actions {
		if s, ok := a.(erasedStore); ok {
			s.ClearOlderThan(tag)
		}
	}
}

// Validate runs the structural checks required before the event
// loop starts: reactor, reaction, port and action names must be unique,
// the graph must pass ReactionGraph.Validate (which bounds every level by
// graph.MaxLevel), and every reaction and port key in ReactionUsePorts
// must exist in the flat tables. Keys in ReactionEffectPorts and
// ReactionActions, and the reactor keys in ReactionReactors, are not
// checked against the flat tables.
func (e *Environment) Validate() error {
	if err := checkDuplicateNames(e.reactorNames, "reactor"); err != nil {
		return err
	}
	if err := checkDuplicateNames(namesOf(e.reactions, func(r *Reaction) string { return r.Name() }), "reaction"); err != nil {
		return err
	}
	if err := checkDuplicateNames(namesOf(e.ports, func(p erasedPort) string { return p.Name() }), "port"); err != nil {
		return err
	}
	if err := checkDuplicateNames(namesOf(e.actions, func(a Action) string { return a.Name() }), "action"); err != nil {
		return err
	}

	levels := make(map[ReactionKey]Level, len(e.reactions))
	for i, r := range e.reactions {
		levels[ReactionKey(i)] = r.Level()
	}
	if err := e.graph.Validate(levels, len(e.ports), len(e.actions)); err != nil {
		return err
	}
	for key, pairs := range e.graph.ReactionUsePorts {
		if int(key) < 0 || int(key) >= len(e.reactions) {
			return newGraphError(ErrCodeDanglingKey, fmt.Sprintf("reaction_use_ports references unknown reaction %d", key))
		}
		for _, p := range pairs {
			if int(p) < 0 || int(p) >= len(e.ports) {
				return newGraphError(ErrCodeDanglingKey, "reaction_use_ports references unknown port")
			}
		}
	}
	return nil
}

// namesOf extracts a name from each element of items via get, for
// checkDuplicateNames to scan.
func namesOf[T any](items []T, get func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = get(item)
	}
	return out
}

// checkDuplicateNames fails validation if any two entries in a single
// table (reactors, reactions, ports, or actions) share a name: the
// scheduler's diagnostics and pkg/replay's snapshots both identify things
// by name within a table, and a collision there would make either silently
// ambiguous.
func checkDuplicateNames(names []string, kind string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			return newGraphError(ErrCodeDuplicateName, fmt.Sprintf("duplicate %s name %q", kind, name))
		}
		seen[name] = struct{}{}
	}
	return nil
}
