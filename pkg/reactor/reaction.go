package reactor

// ReactionKey identifies a reaction within an Environment's flat reaction
// table.
type ReactionKey int

// ReactorKey identifies a reactor within an Environment's flat reactor
// table.
type ReactorKey int

// Level is the non-negative precedence bucket assigned to a reaction by
// the static dependency graph: every edge goes strictly upward,
// and reactions sharing a level are guaranteed independent.
type Level int

// TriggerFunc is the body of a reaction. It receives its dispatch handle,
// its reactor's mutable state, and the ordered port/action reference
// slices the partitioner built for it. Ports/actions are passed as `any`
// here because the erased table can't know each reaction's concrete
// types; Reaction stores the function as given, so the trigger body
// asserts each element to its concrete type itself.
type TriggerFunc func(ctx *Context, reactorState any, uses, effects []any, actions []any)

// Reaction is identity plus a trigger function plus its declared use/effect
// sets and assigned level. The sets are ordered lists (not just sets)
// because the partitioner (§4.9) reconstructs typed references by
// position: the order a reaction declares its ports/actions in is the
// order TriggerFunc receives them in.
type Reaction struct {
	name        string
	key         ReactionKey
	reactorKey  ReactorKey
	trigger     TriggerFunc
	usePorts    []PortKey
	effectPorts []PortKey
	actions     []ActionKey
	level       Level
}

// NewReaction constructs a reaction. Level is assigned later by a
// LevelAssigner and fixed with SetLevel before the graph is handed to the
// scheduler.
func NewReaction(name string, key ReactionKey, reactorKey ReactorKey, trigger TriggerFunc, usePorts, effectPorts []PortKey, actions []ActionKey) *Reaction {
	return &Reaction{
		name:        name,
		key:         key,
		reactorKey:  reactorKey,
		trigger:     trigger,
		usePorts:    usePorts,
		effectPorts: effectPorts,
		actions:     actions,
	}
}

func (r *Reaction) Name() string             { return r.name }
func (r *Reaction) Key() ReactionKey         { return r.key }
func (r *Reaction) ReactorKey() ReactorKey    { return r.reactorKey }
func (r *Reaction) UsePorts() []PortKey       { return r.usePorts }
func (r *Reaction) EffectPorts() []PortKey    { return r.effectPorts }
func (r *Reaction) Actions() []ActionKey      { return r.actions }
func (r *Reaction) Level() Level              { return r.level }

// SetLevel fixes the reaction's precedence level. Called once by the
// level-assignment step; never mutated again.
func (r *Reaction) SetLevel(l Level) { r.level = l }
