package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"casetrack/internal/models"
)

const caseColumns = "id, patient_name, age, gender, entry_date, history, progression_notes, attachments_json, created_by, created_at"

// CreateCase inserts one case row, attachments included.
func (s *Store) CreateCase(ctx context.Context, c *models.Case) error {
	if c == nil {
		return fmt.Errorf("case is required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	attachmentsJSON, err := attachmentsToJSON(c.Attachments)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO cases (`+caseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.PatientName,
		nullableInt(c.Age),
		nullableString(c.Gender),
		nullableString(c.EntryDate),
		nullableString(c.History),
		nullableString(c.ProgressionNotes),
		attachmentsJSON,
		c.CreatedBy,
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetCase returns one case by id, or nil when absent.
func (s *Store) GetCase(ctx context.Context, id string) (*models.Case, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	return scanCase(row)
}

// ListCases returns all cases ordered by created_at descending.
func (s *Store) ListCases(ctx context.Context) ([]models.Case, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+caseColumns+` FROM cases ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := []models.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cases, nil
}

// SaveCase overwrites the full record keyed by id. The attachment list and
// text fields land in one statement, so readers never observe a half-applied
// update.
func (s *Store) SaveCase(ctx context.Context, c *models.Case) error {
	if c == nil {
		return fmt.Errorf("case is required")
	}
	attachmentsJSON, err := attachmentsToJSON(c.Attachments)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE cases SET
  patient_name = ?,
  age = ?,
  gender = ?,
  entry_date = ?,
  history = ?,
  progression_notes = ?,
  attachments_json = ?
WHERE id = ?`,
		c.PatientName,
		nullableInt(c.Age),
		nullableString(c.Gender),
		nullableString(c.EntryDate),
		nullableString(c.History),
		nullableString(c.ProgressionNotes),
		attachmentsJSON,
		c.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("case not found: %s", c.ID)
	}
	return nil
}

// DeleteCase removes one case row. The bool reports whether a row existed.
func (s *Store) DeleteCase(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM cases WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		c                models.Case
		age              sql.NullInt64
		gender           sql.NullString
		entryDate        sql.NullString
		history          sql.NullString
		progressionNotes sql.NullString
		attachmentsJSON  string
		createdAt        string
	)
	err := row.Scan(
		&c.ID,
		&c.PatientName,
		&age,
		&gender,
		&entryDate,
		&history,
		&progressionNotes,
		&attachmentsJSON,
		&c.CreatedBy,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if age.Valid {
		v := int(age.Int64)
		c.Age = &v
	}
	c.Gender = gender.String
	c.EntryDate = entryDate.String
	c.History = history.String
	c.ProgressionNotes = progressionNotes.String

	c.Attachments, err = attachmentsFromJSON(attachmentsJSON)
	if err != nil {
		return nil, fmt.Errorf("decode attachments for case %s: %w", c.ID, err)
	}
	c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for case %s: %w", c.ID, err)
	}

	return &c, nil
}

func attachmentsToJSON(attachments []models.Attachment) (string, error) {
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	data, err := json.Marshal(attachments)
	if err != nil {
		return "", fmt.Errorf("encode attachments: %w", err)
	}
	return string(data), nil
}

func attachmentsFromJSON(raw string) ([]models.Attachment, error) {
	if raw == "" {
		return []models.Attachment{}, nil
	}
	var attachments []models.Attachment
	if err := json.Unmarshal([]byte(raw), &attachments); err != nil {
		return nil, err
	}
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	return attachments, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
