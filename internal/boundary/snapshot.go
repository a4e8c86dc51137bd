package boundary

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// snapshotEntry is one item in the human-readable YAML snapshot: the
// JSON-tagged T is re-marshaled with its Key alongside, since the item
// value itself carries no Key field (the engine owns key->value mapping).
type snapshotEntry struct {
	Key  string `yaml:"key"`
	Item any    `yaml:"item"`
}

// ExportSnapshot writes every item in the ledger's current projection to w
// as a human-readable YAML document, alongside the canonical JSONL
// event-log export.
func (l *Ledger[T]) ExportSnapshot(w io.Writer) error {
	snapshot := l.Engine.Snapshot()
	entries := make([]snapshotEntry, 0, len(snapshot))
	for k, v := range snapshot {
		entries = append(entries, snapshotEntry{Key: k.String(), Item: v})
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	return nil
}
