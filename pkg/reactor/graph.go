package reactor

import "fmt"

// ReactionGraph is the static, built-once representation the scheduler
// dispatches against. Every map here is immutable once the
// runtime starts: all per-tag mutation is confined to port values and
// action stores.
type ReactionGraph struct {
	// ActionTriggers maps an action to the (level, reaction) pairs it
	// triggers when it fires.
	ActionTriggers map[ActionKey][]LevelKey
	// PortTriggers maps a port to the (level, reaction) pairs that
	// trigger on it being written (as opposed to merely used/read).
	PortTriggers map[PortKey][]LevelKey

	StartupReactions  []LevelKey
	ShutdownReactions []LevelKey

	ReactionUsePorts    map[ReactionKey][]PortKey
	ReactionEffectPorts map[ReactionKey][]PortKey
	ReactionActions     map[ReactionKey][]ActionKey
	ReactionReactors    map[ReactionKey]ReactorKey

	MaxLevel      Level
	NumReactions  int
}

// NewReactionGraph constructs an empty graph; callers populate it (or use
// pkg/builder, which does so from a higher-level declaration).
func NewReactionGraph() *ReactionGraph {
	return &ReactionGraph{
		ActionTriggers:      make(map[ActionKey][]LevelKey),
		PortTriggers:        make(map[PortKey][]LevelKey),
		ReactionUsePorts:    make(map[ReactionKey][]PortKey),
		ReactionEffectPorts: make(map[ReactionKey][]PortKey),
		ReactionActions:     make(map[ReactionKey][]ActionKey),
		ReactionReactors:    make(map[ReactionKey]ReactorKey),
	}
}

// DownstreamOfAction returns the precomputed (level, reaction) pairs that
// trigger when action fires. Used by ScheduleLogical, ScheduleTimer,
// SchedulePhysical and the scheduler's timer-offset seeding to build the
// ScheduledEvent's reaction set
// without a runtime graph walk.
func (g *ReactionGraph) DownstreamOfAction(action ActionKey) []LevelKey {
	return g.ActionTriggers[action]
}

// DownstreamOfPort returns the precomputed (level, reaction) pairs that
// trigger when port is written within the current tag.
func (g *ReactionGraph) DownstreamOfPort(port PortKey) []LevelKey {
	return g.PortTriggers[port]
}

// Validate checks the structural invariants the runtime must enforce
// before the event loop starts: every action and port key in the trigger
// maps must exist in the corresponding table, every (level, reaction)
// pair in the trigger maps and the startup/shutdown lists must name a
// known reaction at its registered level, MaxLevel must bound every
// reaction's assigned level, and every reaction must have an entry in
// ReactionReactors. It does not check ReactionUsePorts,
// ReactionEffectPorts, ReactionActions, or the reactor keys stored in
// ReactionReactors. reactionLevels and the table sizes are
// supplied by the caller (typically Environment) since ReactionGraph
// itself doesn't own the flat tables.
func (g *ReactionGraph) Validate(reactionLevels map[ReactionKey]Level, numPorts, numActions int) error {
	for action, pairs := range g.ActionTriggers {
		if int(action) < 0 || int(action) >= numActions {
			return newGraphError(ErrCodeDanglingKey, "action_triggers references unknown action")
		}
		if err := g.checkPairs(pairs, reactionLevels, "action_triggers"); err != nil {
			return err
		}
	}
	for port, pairs := range g.PortTriggers {
		if int(port) < 0 || int(port) >= numPorts {
			return newGraphError(ErrCodeDanglingKey, "port_triggers references unknown port")
		}
		if err := g.checkPairs(pairs, reactionLevels, "port_triggers"); err != nil {
			return err
		}
	}
	if err := g.checkPairs(g.StartupReactions, reactionLevels, "startup_reactions"); err != nil {
		return err
	}
	if err := g.checkPairs(g.ShutdownReactions, reactionLevels, "shutdown_reactions"); err != nil {
		return err
	}
	for key, level := range reactionLevels {
		if level > g.MaxLevel {
			return newGraphError(ErrCodeMissingLevel, "reaction level exceeds declared max_level")
		}
		if _, ok := g.ReactionReactors[key]; !ok {
			return newGraphError(ErrCodeDanglingKey, "reaction has no owning reactor")
		}
	}
	return nil
}

// checkPairs verifies every (level, reaction) pair in a trigger list
// references a registered reaction whose assigned Level matches the
// level recorded in the pair. A mismatch means KeySetFromPairs would
// dispatch the reaction at the wrong precedence, which is exactly the
// class of builder bug ErrCodeLevelViolation exists to catch before the
// event loop starts rather than as a silent ordering bug at run time.
func (g *ReactionGraph) checkPairs(pairs []LevelKey, reactionLevels map[ReactionKey]Level, table string) error {
	for _, p := range pairs {
		level, ok := reactionLevels[p.Key]
		if !ok {
			return newGraphError(ErrCodeDanglingKey, table+" references unknown reaction")
		}
		if level != p.Level {
			return newGraphError(ErrCodeLevelViolation, fmt.Sprintf(
				"%s pairs reaction %d at level %d but it is registered at level %d", table, p.Key, p.Level, level))
		}
	}
	return nil
}
