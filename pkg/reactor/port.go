package reactor

// PortKey identifies a port within an Environment's flat port table.
type PortKey int

// Port is a single-tag typed value slot. It holds at most one value per
// tag; cleanup() resets it to unset at the tag boundary.
// Reading is non-consuming: any number of reactions may read the same
// value within the tag without affecting each other.
type Port[T any] struct {
	name    string
	key     PortKey
	value   T
	present bool
}

// NewPort constructs an empty, unset port with the given name and key.
func NewPort[T any](name string, key PortKey) *Port[T] {
	return &Port[T]{name: name, key: key}
}

// Name returns the port's declared name.
func (p *Port[T]) Name() string { return p.name }

// Key returns the port's stable table key.
func (p *Port[T]) Key() PortKey { return p.key }

// Set overwrites the current value, making it present for the rest of the
// tag. Only valid from the scheduler thread (inside a reaction body).
func (p *Port[T]) Set(v T) {
	p.value = v
	p.present = true
}

// Get returns the current value and whether one is present.
func (p *Port[T]) Get() (T, bool) {
	return p.value, p.present
}

// IsSet reports whether a value is present for the current tag.
func (p *Port[T]) IsSet() bool { return p.present }

// Cleanup resets the port to unset. Idempotent: calling it twice at the
// same tag boundary is equivalent to calling it once.
func (p *Port[T]) Cleanup() {
	var zero T
	p.value = zero
	p.present = false
}

// erasedPort is the type-erased view of a Port[T] the Environment's flat
// port table stores so ports of heterogeneous T can live in one slice.
// Partitioning (§4.9) downcasts back to Port[T] at dispatch time.
type erasedPort interface {
	Name() string
	Key() PortKey
	Cleanup()
	IsSet() bool
}

var _ erasedPort = (*Port[int])(nil)
