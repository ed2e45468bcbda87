package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"casetrack/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cases.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedCase(t *testing.T, s *Store, id string, createdAt time.Time, attachments ...models.Attachment) models.Case {
	t.Helper()
	age := 42
	c := models.Case{
		ID:          id,
		PatientName: "Jane Doe",
		Age:         &age,
		Gender:      "female",
		EntryDate:   "2026-08-01",
		History:     "initial presentation",
		Attachments: attachments,
		CreatedBy:   "doctor@example.com",
		CreatedAt:   createdAt,
	}
	if err := s.CreateCase(context.Background(), &c); err != nil {
		t.Fatalf("create case %s: %v", id, err)
	}
	return c
}

func TestCreateAndGetCase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	att := models.Attachment{
		StorageKey:   "abc.pdf",
		OriginalName: "scan.pdf",
		MediaType:    "application/pdf",
		SizeBytes:    128,
		UploadedAt:   now,
	}
	seedCase(t, s, "cs-aaa111", now, att)

	got, err := s.GetCase(ctx, "cs-aaa111")
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if got == nil {
		t.Fatal("expected case, got nil")
	}
	if got.PatientName != "Jane Doe" {
		t.Fatalf("expected patient name Jane Doe, got %q", got.PatientName)
	}
	if got.Age == nil || *got.Age != 42 {
		t.Fatalf("expected age 42, got %#v", got.Age)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].StorageKey != "abc.pdf" {
		t.Fatalf("expected attachment abc.pdf, got %#v", got.Attachments)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, got.CreatedAt)
	}

	exists, err := s.CaseExists("cs-aaa111")
	if err != nil || !exists {
		t.Fatalf("expected case to exist, exists=%v err=%v", exists, err)
	}

	missing, err := s.GetCase(ctx, "cs-nope")
	if err != nil {
		t.Fatalf("get missing case: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing case, got %#v", missing)
	}
}

func TestListCasesOrdersByCreatedAtDesc(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	seedCase(t, s, "cs-old", base)
	seedCase(t, s, "cs-mid", base.Add(time.Hour))
	seedCase(t, s, "cs-new", base.Add(2*time.Hour))

	cases, err := s.ListCases(context.Background())
	if err != nil {
		t.Fatalf("list cases: %v", err)
	}
	if len(cases) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(cases))
	}
	if cases[0].ID != "cs-new" || cases[1].ID != "cs-mid" || cases[2].ID != "cs-old" {
		t.Fatalf("expected newest-first order, got %s %s %s", cases[0].ID, cases[1].ID, cases[2].ID)
	}
}

func TestSaveCaseOverwritesFullRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := seedCase(t, s, "cs-save01", now, models.Attachment{StorageKey: "old.png", SizeBytes: 1, UploadedAt: now})

	c.History = "worsening symptoms"
	c.ProgressionNotes = ""
	c.Age = nil
	c.Attachments = []models.Attachment{{StorageKey: "new.png", SizeBytes: 2, UploadedAt: now}}
	if err := s.SaveCase(ctx, &c); err != nil {
		t.Fatalf("save case: %v", err)
	}

	got, err := s.GetCase(ctx, "cs-save01")
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if got.History != "worsening symptoms" {
		t.Fatalf("expected updated history, got %q", got.History)
	}
	if got.Age != nil {
		t.Fatalf("expected age cleared, got %#v", got.Age)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].StorageKey != "new.png" {
		t.Fatalf("expected replaced attachment list, got %#v", got.Attachments)
	}
	// created_by and created_at are not part of the save payload.
	if got.CreatedBy != "doctor@example.com" {
		t.Fatalf("expected created_by preserved, got %q", got.CreatedBy)
	}

	orphan := models.Case{ID: "cs-ghost", PatientName: "Nobody"}
	if err := s.SaveCase(ctx, &orphan); err == nil {
		t.Fatal("expected error saving nonexistent case")
	}
}

func TestDeleteCase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedCase(t, s, "cs-del01", time.Now().UTC())

	existed, err := s.DeleteCase(ctx, "cs-del01")
	if err != nil {
		t.Fatalf("delete case: %v", err)
	}
	if !existed {
		t.Fatal("expected delete to report an existing row")
	}

	existed, err = s.DeleteCase(ctx, "cs-del01")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if existed {
		t.Fatal("expected second delete to report absent row")
	}

	got, err := s.GetCase(ctx, "cs-del01")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after delete, got %#v", got)
	}
}

func TestAttachmentsRoundTripEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedCase(t, s, "cs-empty1", time.Now().UTC())

	got, err := s.GetCase(ctx, "cs-empty1")
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if got.Attachments == nil {
		t.Fatal("expected empty attachment slice, got nil")
	}
	if len(got.Attachments) != 0 {
		t.Fatalf("expected no attachments, got %#v", got.Attachments)
	}
}
