// Package replay implements deterministic trace persistence and
// replay as an I/O concern kept outside the scheduling core, which does
// not call into it: persisting each action's (tag, value)
// history so a run can be re-driven deterministically from a recorded
// trace, and content-hashing values for replay-divergence detection.
package replay

import (
	"context"
	"time"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

// Store is the interface a harness around the scheduler uses to record
// and re-derive action values at specific tags. The scheduler itself
// neither holds nor calls a Store.
type Store interface {
	// SerializeValueAt records raw (already-encoded) bytes for action at
	// tag, alongside a content hash for divergence detection.
	SerializeValueAt(ctx context.Context, action reactor.ActionKey, tag reactor.Tag, value []byte) error
	// DeserializeValueAt returns the bytes previously recorded for action
	// at tag, or (nil, false) if nothing was recorded.
	DeserializeValueAt(ctx context.Context, action reactor.ActionKey, tag reactor.Tag) ([]byte, bool, error)
	// Close releases any underlying resources (a DB handle, a file).
	Close() error
}

// Entry is one recorded (action, tag, value) row, returned by
// SQLiteStore.List for snapshot export (cmd/reactorctl's export
// subcommand).
type Entry struct {
	Action    reactor.ActionKey
	Tag       reactor.Tag
	Value     []byte
	BlobHash  string
	RecordedAt time.Time
}
