package replay

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// snapshotEntry is Entry's wire shape for export: RecordedAt dropped (not
// part of the deterministic replay trace, only bookkeeping) and Tag
// flattened so the snapshot's canonical JSON depends only on what was
// actually replayed.
type snapshotEntry struct {
	ActionKey    int    `json:"action_key"`
	TagOffsetNs  int64  `json:"tag_offset_ns"`
	TagMicrostep uint32 `json:"tag_microstep"`
	BlobHash     string `json:"blob_hash"`
	Value        []byte `json:"value"`
}

// Snapshot renders entries as RFC 8785 canonical JSON, so two exports of
// the same replayed run produce byte-identical output regardless of map
// iteration order or field ordering upstream.
func Snapshot(entries []Entry) ([]byte, error) {
	wire := make([]snapshotEntry, len(entries))
	for i, e := range entries {
		wire[i] = snapshotEntry{
			ActionKey:    int(e.Action),
			TagOffsetNs:  int64(e.Tag.Offset),
			TagMicrostep: e.Tag.Microstep,
			BlobHash:     e.BlobHash,
			Value:        e.Value,
		}
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("replay: marshal snapshot: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("replay: canonicalize snapshot: %w", err)
	}
	return canon, nil
}
