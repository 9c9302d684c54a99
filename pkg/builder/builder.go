// Package builder is a minimal programmatic graph-assembly facade, an
// interface boundary rather than core scheduling logic: it turns a list
// of reactor/port/action/reaction declarations into a validated
// reactor.Environment, deriving each reaction's precedence Level from the
// producer/consumer edges implied by shared ports via a
// reactor.LevelAssigner. It is deliberately not a DSL: no code
// generation, no dataflow syntax, just enough bookkeeping for examples
// and tests to assemble a graph without hand-building the flat tables
// the way pkg/reactor's own tests do.
package builder

import (
	"sort"
	"time"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

// ReactionSpec declares one reaction before the graph is built. Uses and
// Effects drive both dispatch (they become the reaction's ordered
// use/effect port lists) and level assignment (an edge is derived from
// every producer's effect port to every consumer's matching use port).
// TriggersOn lists the actions that wake this reaction; Startup/Shutdown
// mark it as part of the virtual startup/shutdown reaction sets instead.
type ReactionSpec struct {
	Name       string
	Reactor    reactor.ReactorKey
	Trigger    reactor.TriggerFunc
	Uses       []reactor.PortKey
	Effects    []reactor.PortKey
	Actions    []reactor.ActionKey
	TriggersOn []reactor.ActionKey
	Startup    bool
	Shutdown   bool
}

// Builder accumulates declarations and produces a validated Environment
// on Build.
type Builder struct {
	env      *reactor.Environment
	specs    map[reactor.ReactionKey]ReactionSpec
	assigner reactor.LevelAssigner
}

// New constructs an empty Builder using the reference topological
// level assigner. Use WithAssigner to override it (e.g. in tests that
// want to force a specific level layout).
func New() *Builder {
	return &Builder{
		env:      reactor.NewEnvironment(),
		specs:    make(map[reactor.ReactionKey]ReactionSpec),
		assigner: reactor.TopologicalLevelAssigner{},
	}
}

// WithAssigner overrides the default level assigner.
func (b *Builder) WithAssigner(a reactor.LevelAssigner) *Builder {
	b.assigner = a
	return b
}

// Env exposes the underlying environment for declarations Builder doesn't
// wrap directly. AddPort and AddAction are wrapped below but only forward
// to it: they have no cross-reaction bookkeeping to do.
func (b *Builder) Env() *reactor.Environment { return b.env }

// AddReactor registers a reactor's state and returns its key.
func (b *Builder) AddReactor(name string, state any) reactor.ReactorKey {
	return b.env.AddReactor(name, state)
}

// AddPort registers a port and returns its key.
func (b *Builder) AddPort(p interface {
	Name() string
	Key() reactor.PortKey
	Cleanup()
	IsSet() bool
}) reactor.PortKey {
	return b.env.AddPort(p)
}

// AddAction registers an action and returns its key.
func (b *Builder) AddAction(a reactor.Action) reactor.ActionKey {
	return b.env.AddAction(a)
}

// AddTimer registers a timer action and returns its key. A non-zero
// offset is honored by the scheduler as a one-time pre-scheduled firing
// at tag (offset, 0), before StartupReactions run; an offset of zero
// means the timer's first firing is the startup batch itself. period
// drives the timer's own reaction rescheduling itself afterward; a zero
// period marks the timer one-shot (reactor.TimerAction.OneShot).
func (b *Builder) AddTimer(name string, offset, period time.Duration) (*reactor.TimerAction, reactor.ActionKey) {
	key := reactor.ActionKey(b.env.NumActions())
	timer := reactor.NewTimerAction(name, key, offset, period)
	b.env.AddAction(timer)
	return timer, key
}

// AddReaction declares a reaction and returns its assigned key. Levels
// are not known yet: Build computes and fixes them all at once.
func (b *Builder) AddReaction(spec ReactionSpec) reactor.ReactionKey {
	key := b.env.NextReactionKey()
	r := reactor.NewReaction(spec.Name, key, spec.Reactor, spec.Trigger, spec.Uses, spec.Effects, spec.Actions)
	b.env.AddReaction(r)
	b.specs[key] = spec
	return key
}

// Build assigns levels, populates the reaction graph's trigger maps, and
// validates the resulting Environment. It must be called exactly once,
// after every reactor/port/action/reaction has been declared.
func (b *Builder) Build() (*reactor.Environment, error) {
	edges := b.deriveEdges()

	keys := make([]reactor.ReactionKey, 0, len(b.specs))
	for k := range b.specs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	levels, err := b.assigner.AssignLevels(keys, edges)
	if err != nil {
		return nil, err
	}

	g := b.env.Graph()
	var maxLevel reactor.Level
	for _, key := range keys {
		spec := b.specs[key]
		level := levels[key]
		b.env.Reaction(key).SetLevel(level)
		if level > maxLevel {
			maxLevel = level
		}

		g.ReactionReactors[key] = spec.Reactor
		if len(spec.Uses) > 0 {
			g.ReactionUsePorts[key] = spec.Uses
		}
		if len(spec.Effects) > 0 {
			g.ReactionEffectPorts[key] = spec.Effects
		}
		if len(spec.Actions) > 0 {
			g.ReactionActions[key] = spec.Actions
		}

		pair := reactor.Pair(level, key)
		for _, action := range spec.TriggersOn {
			g.ActionTriggers[action] = append(g.ActionTriggers[action], pair)
		}
		for _, port := range spec.Uses {
			if isProducedPort(b.specs, port) {
				g.PortTriggers[port] = append(g.PortTriggers[port], pair)
			}
		}
		if spec.Startup {
			g.StartupReactions = append(g.StartupReactions, pair)
		}
		if spec.Shutdown {
			g.ShutdownReactions = append(g.ShutdownReactions, pair)
		}
	}
	g.MaxLevel = maxLevel
	g.NumReactions = len(keys)

	if err := b.env.Validate(); err != nil {
		return nil, err
	}
	return b.env, nil
}

// deriveEdges builds the dependency edges level assignment needs: a
// producer reaction (one that effects a port another reaction uses) must
// end up at a strictly lower level than every consumer. Actions create no
// edges.
func (b *Builder) deriveEdges() []reactor.Edge {
	portProducers := make(map[reactor.PortKey][]reactor.ReactionKey)
	for key, spec := range b.specs {
		for _, p := range spec.Effects {
			portProducers[p] = append(portProducers[p], key)
		}
	}

	var edges []reactor.Edge
	for key, spec := range b.specs {
		for _, p := range spec.Uses {
			for _, producer := range portProducers[p] {
				if producer == key {
					continue // a reaction reading its own effect port is not a dependency
				}
				edges = append(edges, reactor.Edge{From: producer, To: key})
			}
		}
	}
	return edges
}

func isProducedPort(specs map[reactor.ReactionKey]ReactionSpec, port reactor.PortKey) bool {
	for _, spec := range specs {
		for _, p := range spec.Effects {
			if p == port {
				return true
			}
		}
	}
	return false
}
