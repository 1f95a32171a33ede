package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Snapshot is the JSON form of an exported index.
type Snapshot struct {
	Documents []Entry             `json:"documents"`
	Tags      map[string][]string `json:"tags"`
}

// Snapshot returns a serializable copy of the index.
func (idx *CorpusIndex) Snapshot() Snapshot {
	tags := make(map[string][]string, len(idx.tagOrder))
	for _, t := range idx.Tags() {
		tags[t] = idx.ByTag(t)
	}
	return Snapshot{Documents: idx.Entries(), Tags: tags}
}

// Export writes idx to dest: a JSON document when dest ends in .json,
// otherwise a SQLite database whose previous content is replaced.
func Export(ctx context.Context, idx *CorpusIndex, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("index: export dir: %w", err)
	}
	if strings.EqualFold(filepath.Ext(dest), ".json") {
		data, err := json.MarshalIndent(idx.Snapshot(), "", "  ")
		if err != nil {
			return fmt.Errorf("index: encode snapshot: %w", err)
		}
		if err := os.WriteFile(dest, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("index: write %s: %w", dest, err)
		}
		return nil
	}

	db, err := Open(dest)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Replace(ctx, idx)
}
