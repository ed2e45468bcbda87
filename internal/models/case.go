package models

import (
	"fmt"
	"strings"
	"time"
)

// Attachment is the metadata for one uploaded investigation file owned by a
// case. It is immutable once created; the only mutation is removal.
type Attachment struct {
	StorageKey   string    `json:"storage_key"`
	OriginalName string    `json:"original_name"`
	MediaType    string    `json:"media_type,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Case is a patient record with narrative fields and an ordered list of
// file attachments (insertion order = upload order).
type Case struct {
	ID               string       `json:"id"`
	PatientName      string       `json:"patient_name"`
	Age              *int         `json:"age,omitempty"`
	Gender           string       `json:"gender,omitempty"`
	EntryDate        string       `json:"entry_date,omitempty"`
	History          string       `json:"history,omitempty"`
	Attachments      []Attachment `json:"attachments"`
	ProgressionNotes string       `json:"progression_notes,omitempty"`
	CreatedBy        string       `json:"created_by"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Validate checks case-level invariants: required fields and storage key
// uniqueness within the attachment list.
func (c *Case) Validate() error {
	if c == nil {
		return fmt.Errorf("case is required")
	}
	if strings.TrimSpace(c.PatientName) == "" {
		return fmt.Errorf("patient_name is required")
	}
	if c.Age != nil && *c.Age < 0 {
		return fmt.Errorf("age must be >= 0")
	}
	seen := make(map[string]struct{}, len(c.Attachments))
	for _, a := range c.Attachments {
		if err := a.Validate(); err != nil {
			return err
		}
		if _, ok := seen[a.StorageKey]; ok {
			return fmt.Errorf("duplicate storage key: %s", a.StorageKey)
		}
		seen[a.StorageKey] = struct{}{}
	}
	return nil
}

// Validate checks attachment-level invariants.
func (a Attachment) Validate() error {
	if strings.TrimSpace(a.StorageKey) == "" {
		return fmt.Errorf("storage key is required")
	}
	if a.SizeBytes < 0 {
		return fmt.Errorf("size_bytes must be >= 0")
	}
	return nil
}

// AttachmentKeys returns the storage keys of all attachments in list order.
func (c *Case) AttachmentKeys() []string {
	if c == nil {
		return nil
	}
	return StorageKeys(c.Attachments)
}

// HasAttachment reports whether an attachment with the given storage key
// is present.
func (c *Case) HasAttachment(storageKey string) bool {
	return c.FindAttachment(storageKey) != nil
}

// FindAttachment returns the attachment with the given storage key, or
// nil when the case has no such attachment.
func (c *Case) FindAttachment(storageKey string) *Attachment {
	if c == nil {
		return nil
	}
	for i := range c.Attachments {
		if c.Attachments[i].StorageKey == storageKey {
			return &c.Attachments[i]
		}
	}
	return nil
}

// StorageKeys returns the storage keys of the given attachments in list
// order.
func StorageKeys(atts []Attachment) []string {
	if len(atts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(atts))
	for _, a := range atts {
		keys = append(keys, a.StorageKey)
	}
	return keys
}
