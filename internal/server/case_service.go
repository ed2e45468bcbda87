package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"casetrack/internal/blobstore"
	"casetrack/internal/models"
	"casetrack/internal/store"
)

// Upload is one incoming attachment. Open must return an independent
// reader so uploads can be stored concurrently.
type Upload struct {
	OriginalName string
	MediaType    string
	SizeBytes    int64
	Open         func() (io.ReadCloser, error)
}

// CreateCaseInput carries the case fields for creation. Attachments
// arrive separately as Uploads.
type CreateCaseInput struct {
	PatientName      string
	Age              *int
	Gender           string
	EntryDate        string
	History          string
	ProgressionNotes string
}

// CasePatch is a partial update. Nil pointers leave the stored field
// untouched; empty strings clear it.
type CasePatch struct {
	PatientName      *string
	Age              *int
	Gender           *string
	EntryDate        *string
	History          *string
	ProgressionNotes *string
}

// UploadLimits bounds a single multipart request.
type UploadLimits struct {
	MaxFileBytes int64
	MaxFiles     int
}

// CaseService implements the case operations on top of a record store
// and a blob store. Blob writes happen before the metadata write, so a
// failed metadata write can still compensate by deleting the fresh
// blobs. The reverse order on update leaves a short window where a
// replaced blob outlives its reference; the sweep command reclaims
// those.
type CaseService struct {
	store  store.CaseStore
	blobs  blobstore.BlobStore
	limits UploadLimits
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func NewCaseService(st store.CaseStore, blobs blobstore.BlobStore, limits UploadLimits, idPrefix string, logger *slog.Logger) *CaseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaseService{
		store:  st,
		blobs:  blobs,
		limits: limits,
		prefix: idPrefix,
		logger: logger,
		now:    time.Now,
	}
}

func (s *CaseService) ListCases(ctx context.Context) ([]models.Case, error) {
	cases, err := s.store.ListCases(ctx)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("list cases: %w", err))
	}
	return cases, nil
}

func (s *CaseService) GetCase(ctx context.Context, id string) (*models.Case, error) {
	c, err := s.store.GetCase(ctx, id)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("get case %s: %w", id, err))
	}
	if c == nil {
		return nil, notFoundCode(fmt.Errorf("case not found: %s", id), ErrCodeCaseNotFound)
	}
	return c, nil
}

// CreateCase validates the input, stores the uploads, then writes the
// record. No blob is stored when validation fails, and a failed record
// write deletes every blob stored for this request.
func (s *CaseService) CreateCase(ctx context.Context, input CreateCaseInput, uploads []Upload, createdBy string) (*models.Case, error) {
	c := models.Case{
		PatientName:      strings.TrimSpace(input.PatientName),
		Age:              input.Age,
		Gender:           strings.TrimSpace(input.Gender),
		EntryDate:        strings.TrimSpace(input.EntryDate),
		History:          input.History,
		ProgressionNotes: input.ProgressionNotes,
		CreatedBy:        createdBy,
		CreatedAt:        s.now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, badRequestCode(err, ErrCodeMissingRequired)
	}
	if err := s.validateUploads(uploads); err != nil {
		return nil, err
	}

	stored, err := s.storeUploads(ctx, uploads)
	if err != nil {
		return nil, err
	}
	c.Attachments = stored

	id, err := store.GenerateID(s.prefix, s.store.CaseExists)
	if err != nil {
		s.deleteBlobs(ctx, models.StorageKeys(stored))
		return nil, internalError(fmt.Errorf("generate case id: %w", err))
	}
	c.ID = id

	if err := s.store.CreateCase(ctx, &c); err != nil {
		s.deleteBlobs(ctx, models.StorageKeys(stored))
		return nil, storeFailure(fmt.Errorf("create case: %w", err))
	}

	casesCreatedTotal.Inc()
	s.logger.Info("case created", "id", c.ID, "attachments", len(c.Attachments), "created_by", createdBy)
	return &c, nil
}

// UpdateCase applies a partial field update, removes the named
// attachments, and appends the uploads. New blobs are stored before the
// record write so a failed write can compensate; blobs displaced by the
// update are deleted only after the record write succeeds, and failures
// there are reported as warnings instead of failing the request.
func (s *CaseService) UpdateCase(ctx context.Context, id string, patch CasePatch, removeKeys []string, uploads []Upload) (*models.Case, []string, error) {
	current, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.validateUploads(uploads); err != nil {
		return nil, nil, err
	}

	next := *current
	applyPatch(&next, patch)
	if err := next.Validate(); err != nil {
		return nil, nil, badRequestCode(err, ErrCodeMissingRequired)
	}

	stored, err := s.storeUploads(ctx, uploads)
	if err != nil {
		return nil, nil, err
	}

	attachments, toDelete, err := reconcileAttachments(current.Attachments, removeKeys, stored)
	if err != nil {
		s.deleteBlobs(ctx, models.StorageKeys(stored))
		return nil, nil, badRequestCode(err, ErrCodeDuplicateStorageKey)
	}
	next.Attachments = attachments

	if err := s.store.SaveCase(ctx, &next); err != nil {
		s.deleteBlobs(ctx, models.StorageKeys(stored))
		return nil, nil, storeFailure(fmt.Errorf("save case %s: %w", id, err))
	}

	warnings := s.deleteBlobs(ctx, toDelete)
	casesUpdatedTotal.Inc()
	s.logger.Info("case updated", "id", id, "attachments", len(next.Attachments), "removed_blobs", len(toDelete))
	return &next, warnings, nil
}

// DeleteCase removes the attachments' blobs and then the record. A blob
// that is already gone is not an error, and blob delete failures become
// warnings so the record is removed regardless.
func (s *CaseService) DeleteCase(ctx context.Context, id string) ([]string, error) {
	current, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	warnings := s.deleteBlobs(ctx, models.StorageKeys(current.Attachments))

	deleted, err := s.store.DeleteCase(ctx, id)
	if err != nil {
		return warnings, storeFailure(fmt.Errorf("delete case %s: %w", id, err))
	}
	if !deleted {
		return warnings, notFoundCode(fmt.Errorf("case not found: %s", id), ErrCodeCaseNotFound)
	}

	casesDeletedTotal.Inc()
	s.logger.Info("case deleted", "id", id, "attachments", len(current.Attachments), "warnings", len(warnings))
	return warnings, nil
}

// OpenAttachment returns the blob stream for one attachment of a case.
func (s *CaseService) OpenAttachment(ctx context.Context, id, key string) (*models.Attachment, io.ReadCloser, error) {
	c, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	att := c.FindAttachment(key)
	if att == nil {
		return nil, nil, notFoundCode(fmt.Errorf("attachment not found: %s", key), ErrCodeAttachmentNotFound)
	}

	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		return nil, nil, blobFailure(fmt.Errorf("open blob %s: %w", key, err))
	}
	return att, rc, nil
}

func (s *CaseService) validateUploads(uploads []Upload) error {
	if s.limits.MaxFiles > 0 && len(uploads) > s.limits.MaxFiles {
		return badRequestCode(fmt.Errorf("too many files: %d exceeds limit of %d", len(uploads), s.limits.MaxFiles), ErrCodeTooManyFiles)
	}
	for _, u := range uploads {
		if s.limits.MaxFileBytes > 0 && u.SizeBytes > s.limits.MaxFileBytes {
			return badRequestCode(fmt.Errorf("file %q too large: %d bytes exceeds limit of %d", u.OriginalName, u.SizeBytes, s.limits.MaxFileBytes), ErrCodeFileTooLarge)
		}
	}
	return nil
}

// storeUploads writes every upload to the blob store concurrently. On
// any failure it deletes the blobs the other uploads already wrote and
// returns the first error.
func (s *CaseService) storeUploads(ctx context.Context, uploads []Upload) ([]models.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	stored := make([]models.Attachment, len(uploads))
	var mu sync.Mutex
	var written []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	uploadedAt := s.now().UTC()

	for i, u := range uploads {
		g.Go(func() error {
			rc, err := u.Open()
			if err != nil {
				return fmt.Errorf("open upload %q: %w", u.OriginalName, err)
			}
			defer rc.Close()

			var body io.Reader = rc
			if s.limits.MaxFileBytes > 0 {
				body = io.LimitReader(rc, s.limits.MaxFileBytes+1)
			}
			info, err := s.blobs.Put(gctx, body, u.OriginalName)
			if err != nil {
				return fmt.Errorf("store upload %q: %w", u.OriginalName, err)
			}

			mu.Lock()
			written = append(written, info.Key)
			mu.Unlock()

			if s.limits.MaxFileBytes > 0 && info.SizeBytes > s.limits.MaxFileBytes {
				return badRequestCode(fmt.Errorf("file %q too large: exceeds limit of %d bytes", u.OriginalName, s.limits.MaxFileBytes), ErrCodeFileTooLarge)
			}

			blobUploadBytesTotal.Add(float64(info.SizeBytes))
			stored[i] = models.Attachment{
				StorageKey:   info.Key,
				OriginalName: u.OriginalName,
				MediaType:    u.MediaType,
				SizeBytes:    info.SizeBytes,
				UploadedAt:   uploadedAt,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.deleteBlobs(ctx, written)
		if httpStatusFromError(err) >= 500 || !isAPIError(err) {
			return nil, blobFailure(err)
		}
		return nil, err
	}
	return stored, nil
}

// deleteBlobs removes the given blobs, returning a warning per key that
// could not be deleted. Missing blobs are fine.
func (s *CaseService) deleteBlobs(ctx context.Context, keys []string) []string {
	var warnings []string
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("delete blob", "key", key, "error", err)
			warnings = append(warnings, fmt.Sprintf("failed to delete stored file %s: %v", key, err))
		}
	}
	return warnings
}

func isAPIError(err error) bool {
	var apiErr apiError
	return errors.As(err, &apiErr)
}

func applyPatch(c *models.Case, patch CasePatch) {
	if patch.PatientName != nil {
		c.PatientName = strings.TrimSpace(*patch.PatientName)
	}
	if patch.Age != nil {
		c.Age = patch.Age
	}
	if patch.Gender != nil {
		c.Gender = strings.TrimSpace(*patch.Gender)
	}
	if patch.EntryDate != nil {
		c.EntryDate = strings.TrimSpace(*patch.EntryDate)
	}
	if patch.History != nil {
		c.History = *patch.History
	}
	if patch.ProgressionNotes != nil {
		c.ProgressionNotes = *patch.ProgressionNotes
	}
}
