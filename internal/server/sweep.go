package server

import (
	"context"
	"fmt"
	"sort"
)

// SweepReport summarizes one orphan sweep over the blob store.
type SweepReport struct {
	BlobsScanned int      `json:"blobs_scanned"`
	Referenced   int      `json:"referenced"`
	Orphans      []string `json:"orphans"`
	Deleted      int      `json:"deleted"`
}

// SweepOrphans finds blobs no case references. Updates leave replaced
// blobs behind when the post-save delete fails, and crashes between a
// blob write and the record write leave fresh blobs unreferenced; the
// sweep reclaims both. With apply false it only reports.
func (s *CaseService) SweepOrphans(ctx context.Context, apply bool) (*SweepReport, error) {
	keys, err := s.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	cases, err := s.store.ListCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	referenced := make(map[string]bool)
	for _, c := range cases {
		for _, att := range c.Attachments {
			referenced[att.StorageKey] = true
		}
	}

	report := &SweepReport{BlobsScanned: len(keys)}
	for _, key := range keys {
		if referenced[key] {
			report.Referenced++
			continue
		}
		report.Orphans = append(report.Orphans, key)
	}
	sort.Strings(report.Orphans)

	if !apply {
		return report, nil
	}

	for _, key := range report.Orphans {
		if err := s.blobs.Delete(ctx, key); err != nil {
			return report, fmt.Errorf("delete orphan blob %s: %w", key, err)
		}
		report.Deleted++
		s.logger.Info("deleted orphan blob", "key", key)
	}
	return report, nil
}
