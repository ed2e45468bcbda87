package server

import (
	"fmt"

	"casetrack/internal/models"
)

// reconcileAttachments computes the next attachment list from the current
// one, a set of storage keys to remove, and newly stored attachments. It
// returns the resulting list together with the keys whose blobs are no
// longer referenced. Remove keys that do not match an existing attachment
// are ignored. The input slices are not modified.
func reconcileAttachments(current []models.Attachment, removeKeys []string, added []models.Attachment) ([]models.Attachment, []string, error) {
	remove := make(map[string]bool, len(removeKeys))
	for _, key := range removeKeys {
		remove[key] = true
	}

	next := make([]models.Attachment, 0, len(current)+len(added))
	toDelete := make([]string, 0, len(removeKeys))
	seen := make(map[string]bool, len(current)+len(added))

	for _, att := range current {
		if remove[att.StorageKey] {
			toDelete = append(toDelete, att.StorageKey)
			continue
		}
		if seen[att.StorageKey] {
			return nil, nil, fmt.Errorf("duplicate storage key %q", att.StorageKey)
		}
		seen[att.StorageKey] = true
		next = append(next, att)
	}

	for _, att := range added {
		if seen[att.StorageKey] {
			return nil, nil, fmt.Errorf("duplicate storage key %q", att.StorageKey)
		}
		seen[att.StorageKey] = true
		next = append(next, att)
	}

	// A key both removed and re-added stays referenced, so its blob
	// must survive.
	kept := toDelete[:0]
	for _, key := range toDelete {
		if !seen[key] {
			kept = append(kept, key)
		}
	}

	return next, kept, nil
}
