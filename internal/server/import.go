package server

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"casetrack/internal/models"
	"casetrack/internal/store"
)

type importCaseRecord struct {
	ID               string `yaml:"id"`
	PatientName      string `yaml:"patient_name"`
	Age              *int   `yaml:"age"`
	Gender           string `yaml:"gender"`
	EntryDate        string `yaml:"entry_date"`
	History          string `yaml:"history"`
	ProgressionNotes string `yaml:"progression_notes"`
	CreatedBy        string `yaml:"created_by"`
}

type importFile struct {
	Cases []importCaseRecord `yaml:"cases"`
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Created int
	Skipped int
	IDs     []string
}

// ImportCases reads a YAML document of case records and creates the ones
// whose id is new. Records with an existing id are skipped, never
// overwritten. Attachments cannot be imported this way.
func (s *CaseService) ImportCases(ctx context.Context, r io.Reader, createdBy string, dryRun bool) (*ImportResult, error) {
	var doc importFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}
	if len(doc.Cases) == 0 {
		return nil, fmt.Errorf("import file has no cases")
	}

	result := &ImportResult{}
	for i, rec := range doc.Cases {
		c := models.Case{
			ID:               strings.TrimSpace(rec.ID),
			PatientName:      strings.TrimSpace(rec.PatientName),
			Age:              rec.Age,
			Gender:           strings.TrimSpace(rec.Gender),
			EntryDate:        strings.TrimSpace(rec.EntryDate),
			History:          rec.History,
			ProgressionNotes: rec.ProgressionNotes,
			CreatedBy:        strings.TrimSpace(rec.CreatedBy),
			CreatedAt:        s.now().UTC(),
		}
		if c.CreatedBy == "" {
			c.CreatedBy = createdBy
		}
		if err := c.Validate(); err != nil {
			return result, fmt.Errorf("case %d: %w", i+1, err)
		}

		if c.ID == "" {
			id, err := store.GenerateID(s.prefix, s.store.CaseExists)
			if err != nil {
				return result, fmt.Errorf("case %d: generate id: %w", i+1, err)
			}
			c.ID = id
		} else {
			exists, err := s.store.CaseExists(c.ID)
			if err != nil {
				return result, fmt.Errorf("case %d: %w", i+1, err)
			}
			if exists {
				result.Skipped++
				continue
			}
		}

		if !dryRun {
			if err := s.store.CreateCase(ctx, &c); err != nil {
				return result, fmt.Errorf("case %d: create: %w", i+1, err)
			}
		}
		result.Created++
		result.IDs = append(result.IDs, c.ID)
	}
	return result, nil
}
