package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"casetrack/internal/models"
)

func writeJSON(payload any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeCaseList(cases []models.Case) error {
	for _, c := range cases {
		if err := writePlain("%s\n", formatCaseLine(c)); err != nil {
			return err
		}
	}
	return nil
}

func formatCaseLine(c models.Case) string {
	parts := []string{c.ID, c.PatientName}
	if c.Age != nil {
		parts = append(parts, fmt.Sprintf("age=%d", *c.Age))
	}
	if len(c.Attachments) > 0 {
		parts = append(parts, fmt.Sprintf("files=%d", len(c.Attachments)))
	}
	parts = append(parts, formatTime(c.CreatedAt))
	return strings.Join(parts, "  ")
}

func writeCaseDetail(c models.Case) error {
	lines := []string{
		fmt.Sprintf("id: %s", c.ID),
		fmt.Sprintf("patient_name: %s", c.PatientName),
	}
	if c.Age != nil {
		lines = append(lines, fmt.Sprintf("age: %d", *c.Age))
	}
	if c.Gender != "" {
		lines = append(lines, fmt.Sprintf("gender: %s", c.Gender))
	}
	if c.EntryDate != "" {
		lines = append(lines, fmt.Sprintf("entry_date: %s", c.EntryDate))
	}
	if c.History != "" {
		lines = append(lines, fmt.Sprintf("history: %s", c.History))
	}
	if c.ProgressionNotes != "" {
		lines = append(lines, fmt.Sprintf("progression_notes: %s", c.ProgressionNotes))
	}
	lines = append(lines,
		fmt.Sprintf("created_by: %s", c.CreatedBy),
		fmt.Sprintf("created_at: %s", formatTime(c.CreatedAt)),
	)
	for _, att := range c.Attachments {
		lines = append(lines, fmt.Sprintf("file: %s (%s, %d bytes, key %s)",
			att.OriginalName, att.MediaType, att.SizeBytes, att.StorageKey))
	}

	for _, line := range lines {
		if err := writePlain("%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
