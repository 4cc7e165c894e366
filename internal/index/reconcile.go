package index

import (
	"context"
	"fmt"

	"github.com/karimfahmy/clipvault/internal/vault"
)

// ReconcileResult counts the changes an incremental reindex made.
type ReconcileResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Reconcile brings the index in line with the given vault snapshot:
// new documents are indexed, documents whose content hash changed are
// reindexed, and index entries whose notes disappeared are purged.
func (m *Manager) Reconcile(ctx context.Context, docs []*vault.Document) (ReconcileResult, error) {
	var result ReconcileResult

	entries, err := m.fingerprints.Documents()
	if err != nil {
		return result, err
	}
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.DocumentID] = true
	}

	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		present[doc.ID] = true

		wasKnown := known[doc.ID]
		changed, err := m.Upsert(ctx, doc)
		if err != nil {
			return result, fmt.Errorf("reconcile upsert %s: %w", doc.ID, err)
		}
		if changed {
			if wasKnown {
				result.Updated++
			} else {
				result.Added++
			}
		}
	}

	for _, e := range entries {
		if present[e.DocumentID] {
			continue
		}
		if err := m.Remove(ctx, e.DocumentID); err != nil {
			return result, fmt.Errorf("reconcile remove %s: %w", e.DocumentID, err)
		}
		result.Removed++
	}

	return result, nil
}
