// Package reactor implements the deterministic reactor-model runtime core:
// the reaction graph, the logical-time event queue, and the scheduler that
// drains it level-by-level per tag.
package reactor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// Tag is the logical-time ordering primitive: an (offset, microstep) pair.
// Offset is signed so sentinel tags (NEVER) can sit before the zero tag.
// Total order is lexicographic on (Offset, Microstep). A Tag is immutable;
// every method below returns a new value.
type Tag struct {
	Offset    time.Duration
	Microstep uint32
}

// Never is the least possible Tag: it sorts before every constructible tag.
var Never = Tag{Offset: time.Duration(minInt64), Microstep: 0}

// Forever is the greatest possible Tag: it sorts after every constructible tag.
var Forever = Tag{Offset: time.Duration(maxInt64), Microstep: ^uint32(0)}

const (
	minInt64 = -1 << 63
	maxInt64 = 1<<63 - 1
)

// ZeroTag is the initial logical tag (0, 0), the tag at which startup runs.
var ZeroTag = Tag{}

// NowTag derives the current logical tag from a physical instant relative
// to the epoch the scheduler started at: (now - start, 0).
func NowTag(now, start time.Time) Tag {
	return Tag{Offset: now.Sub(start), Microstep: 0}
}

// Compare returns -1, 0, or 1 as t sorts before, equal to, or after o.
func (t Tag) Compare(o Tag) int {
	switch {
	case t.Offset < o.Offset:
		return -1
	case t.Offset > o.Offset:
		return 1
	case t.Microstep < o.Microstep:
		return -1
	case t.Microstep > o.Microstep:
		return 1
	default:
		return 0
	}
}

// Before reports whether t sorts strictly before o.
func (t Tag) Before(o Tag) bool { return t.Compare(o) < 0 }

// After reports whether t sorts strictly after o.
func (t Tag) After(o Tag) bool { return t.Compare(o) > 0 }

// Equal reports whether t and o denote the same logical instant.
func (t Tag) Equal(o Tag) bool { return t.Compare(o) == 0 }

// Delay returns the tag reached by scheduling an event `by` after t. A
// strictly positive delay resets the microstep to 0 (we've moved to a new
// physical-time-adjacent instant); a zero delay increments the microstep so
// same-instant cascades still get a strict total order.
// Negative delays are only meaningful for sentinel tags and are rejected.
func (t Tag) Delay(by time.Duration) Tag {
	if by < 0 {
		panic(fmt.Sprintf("reactor: negative delay %v is not a legal tag advance", by))
	}
	if by == 0 {
		return Tag{Offset: t.Offset, Microstep: t.Microstep + 1}
	}
	return Tag{Offset: t.Offset + by, Microstep: 0}
}

// Since returns the elapsed duration from epoch to t's offset.
func (t Tag) Since(epoch Tag) time.Duration {
	return t.Offset - epoch.Offset
}

// String renders the tag for logs: "(1.5s, 2)".
func (t Tag) String() string {
	return fmt.Sprintf("(%s, %d)", t.Offset, t.Microstep)
}

// tagWire is the JSON-stable shape used for canonicalization; Duration is
// rendered as integer nanoseconds so canonicalization never trips on
// floating point or string-format ambiguity.
type tagWire struct {
	OffsetNanos int64  `json:"offset_nanos"`
	Microstep   uint32 `json:"microstep"`
}

// CanonicalJSON renders the tag as RFC 8785 canonical JSON, a stable byte
// form for deterministic hashing. The replay store and KeySet.SnapshotHash
// do their own encoding and do not call it.
func (t Tag) CanonicalJSON() ([]byte, error) {
	raw, err := json.Marshal(tagWire{OffsetNanos: int64(t.Offset), Microstep: t.Microstep})
	if err != nil {
		return nil, fmt.Errorf("reactor: marshal tag: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("reactor: canonicalize tag: %w", err)
	}
	return canon, nil
}
