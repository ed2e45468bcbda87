package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casetrack/internal/blobstore"
	"casetrack/internal/models"
	"casetrack/internal/store"
)

func newTestService(t *testing.T) (*CaseService, *store.Store, *blobstore.Local) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "cases.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	blobs, err := blobstore.NewLocal(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	limits := UploadLimits{MaxFileBytes: 1 << 20, MaxFiles: 10}
	svc := NewCaseService(st, blobs, limits, "cs", slog.New(slog.DiscardHandler))
	return svc, st, blobs
}

func textUpload(name, content string) Upload {
	return Upload{
		OriginalName: name,
		MediaType:    "text/plain",
		SizeBytes:    int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(content))), nil
		},
	}
}

func TestCreateCaseWithUploads(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, []Upload{
		textUpload("scan.txt", "hello"),
		textUpload("report.txt", "world!"),
	}, "doctor@example.com")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(created.ID, "cs-"))
	assert.Equal(t, "doctor@example.com", created.CreatedBy)
	require.Len(t, created.Attachments, 2)
	assert.Equal(t, "scan.txt", created.Attachments[0].OriginalName)
	assert.Equal(t, int64(5), created.Attachments[0].SizeBytes)

	for _, att := range created.Attachments {
		ok, err := blobs.Exists(ctx, att.StorageKey)
		require.NoError(t, err)
		assert.True(t, ok, "blob %s should exist", att.StorageKey)
	}
}

func TestCreateCaseValidationStoresNoBlob(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "   "}, []Upload{
		textUpload("scan.txt", "hello"),
	}, "doctor@example.com")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httpStatusFromError(err))

	keys, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "no blob may be stored when validation fails")
}

func TestCreateCaseTooManyFilesStoresNoBlob(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	uploads := make([]Upload, 11)
	for i := range uploads {
		uploads[i] = textUpload(fmt.Sprintf("f%d.txt", i), "x")
	}

	_, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, uploads, "doctor@example.com")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httpStatusFromError(err))

	keys, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCreateCaseOversizeFileRejected(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	big := textUpload("big.txt", "x")
	big.SizeBytes = 2 << 20

	_, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, []Upload{big}, "doctor@example.com")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httpStatusFromError(err))

	keys, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

type failingCreateStore struct {
	store.CaseStore
}

func (f *failingCreateStore) CreateCase(ctx context.Context, c *models.Case) error {
	return fmt.Errorf("disk full")
}

func TestCreateCaseCompensatesBlobsOnStoreFailure(t *testing.T) {
	svc, st, blobs := newTestService(t)
	svc.store = &failingCreateStore{CaseStore: st}
	ctx := context.Background()

	_, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, []Upload{
		textUpload("scan.txt", "hello"),
	}, "doctor@example.com")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httpStatusFromError(err))

	keys, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "failed create must delete its blobs")

	cases, err := st.ListCases(ctx)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

type failingPutBlobs struct {
	blobstore.BlobStore
	mu        sync.Mutex
	failAfter int
	puts      int
}

func (f *failingPutBlobs) Put(ctx context.Context, r io.Reader, originalName string) (blobstore.BlobInfo, error) {
	f.mu.Lock()
	f.puts++
	fail := f.puts > f.failAfter
	f.mu.Unlock()
	if fail {
		return blobstore.BlobInfo{}, fmt.Errorf("storage unavailable")
	}
	return f.BlobStore.Put(ctx, r, originalName)
}

func TestCreateCaseCompensatesOnPartialUploadFailure(t *testing.T) {
	svc, st, blobs := newTestService(t)
	failing := &failingPutBlobs{BlobStore: blobs, failAfter: 1}
	svc.store = st
	svc.blobs = failing
	ctx := context.Background()

	uploads := []Upload{textUpload("a.txt", "aa"), textUpload("b.txt", "bb")}
	_, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, uploads, "doctor@example.com")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httpStatusFromError(err))

	keys, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "successful puts must be compensated when a sibling fails")
}

func TestUpdateCaseReplaceAttachment(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, []Upload{
		textUpload("a.txt", "aa"),
	}, "doctor@example.com")
	require.NoError(t, err)
	oldKey := created.Attachments[0].StorageKey

	updated, warnings, err := svc.UpdateCase(ctx, created.ID, CasePatch{}, []string{oldKey}, []Upload{
		textUpload("b.txt", "bbb"),
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, updated.Attachments, 1)
	assert.Equal(t, "b.txt", updated.Attachments[0].OriginalName)

	gone, err := blobs.Exists(ctx, oldKey)
	require.NoError(t, err)
	assert.False(t, gone, "replaced blob must be deleted")

	ok, err := blobs.Exists(ctx, updated.Attachments[0].StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateCasePartialPatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	age := 40
	created, err := svc.CreateCase(ctx, CreateCaseInput{
		PatientName:      "Jane Doe",
		Age:              &age,
		History:          "ongoing",
		ProgressionNotes: "stable",
	}, nil, "doctor@example.com")
	require.NoError(t, err)

	empty := ""
	updated, _, err := svc.UpdateCase(ctx, created.ID, CasePatch{ProgressionNotes: &empty}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "", updated.ProgressionNotes, "empty string is a change")
	assert.Equal(t, "ongoing", updated.History, "omitted field is untouched")
	assert.Equal(t, "Jane Doe", updated.PatientName)
	require.NotNil(t, updated.Age)
	assert.Equal(t, 40, *updated.Age)
	assert.Equal(t, created.CreatedBy, updated.CreatedBy)
	assert.Equal(t, created.CreatedAt.UTC(), updated.CreatedAt.UTC())
}

func TestUpdateCaseNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.UpdateCase(context.Background(), "cs-zzzzzz", CasePatch{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httpStatusFromError(err))
}

type failingSaveStore struct {
	store.CaseStore
}

func (f *failingSaveStore) SaveCase(ctx context.Context, c *models.Case) error {
	return fmt.Errorf("disk full")
}

func TestUpdateCaseCompensatesNewBlobsOnSaveFailure(t *testing.T) {
	svc, st, blobs := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, []Upload{
		textUpload("a.txt", "aa"),
	}, "doctor@example.com")
	require.NoError(t, err)
	oldKey := created.Attachments[0].StorageKey

	svc.store = &failingSaveStore{CaseStore: st}
	_, _, err = svc.UpdateCase(ctx, created.ID, CasePatch{}, []string{oldKey}, []Upload{
		textUpload("b.txt", "bb"),
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httpStatusFromError(err))

	// The failed save keeps the old record intact, so its blob stays.
	ok, err := blobs.Exists(ctx, oldKey)
	require.NoError(t, err)
	assert.True(t, ok, "existing blob survives a failed update")

	keys, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{oldKey}, keys, "fresh blobs are compensated on save failure")
}

func TestDeleteCaseRemovesBlobsAndRecord(t *testing.T) {
	svc, st, blobs := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, []Upload{
		textUpload("a.txt", "aa"),
		textUpload("b.txt", "bb"),
	}, "doctor@example.com")
	require.NoError(t, err)

	warnings, err := svc.DeleteCase(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	keys, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	c, err := st.GetCase(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDeleteCaseTwiceIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, nil, "doctor@example.com")
	require.NoError(t, err)

	_, err = svc.DeleteCase(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.DeleteCase(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httpStatusFromError(err))
}

func TestDeleteCaseToleratesMissingBlob(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, []Upload{
		textUpload("a.txt", "aa"),
	}, "doctor@example.com")
	require.NoError(t, err)

	// Someone removed the blob out of band.
	require.NoError(t, blobs.Delete(ctx, created.Attachments[0].StorageKey))

	warnings, err := svc.DeleteCase(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, warnings, "an already-absent blob is not a failure")
}

func TestOpenAttachment(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, []Upload{
		textUpload("a.txt", "payload"),
	}, "doctor@example.com")
	require.NoError(t, err)

	att, rc, err := svc.OpenAttachment(ctx, created.ID, created.Attachments[0].StorageKey)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "a.txt", att.OriginalName)

	_, _, err = svc.OpenAttachment(ctx, created.ID, "missing-key")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httpStatusFromError(err))
}

func TestSweepOrphans(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCase(ctx, CreateCaseInput{PatientName: "Jane Doe"}, []Upload{
		textUpload("a.txt", "aa"),
	}, "doctor@example.com")
	require.NoError(t, err)

	orphan, err := blobs.Put(ctx, strings.NewReader("leftover"), "orphan.bin")
	require.NoError(t, err)

	report, err := svc.SweepOrphans(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.BlobsScanned)
	assert.Equal(t, 1, report.Referenced)
	assert.Equal(t, []string{orphan.Key}, report.Orphans)
	assert.Equal(t, 0, report.Deleted)

	ok, err := blobs.Exists(ctx, orphan.Key)
	require.NoError(t, err)
	assert.True(t, ok, "dry run must not delete")

	report, err = svc.SweepOrphans(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)

	ok, err = blobs.Exists(ctx, orphan.Key)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = blobs.Exists(ctx, created.Attachments[0].StorageKey)
	require.NoError(t, err)
	assert.True(t, ok, "referenced blob survives the sweep")
}

func TestImportCases(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	doc := `
cases:
  - patient_name: Jane Doe
    age: 40
    history: ongoing
  - id: cs-fixed1
    patient_name: John Roe
`
	result, err := svc.ImportCases(ctx, strings.NewReader(doc), "importer@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)

	c, err := st.GetCase(ctx, "cs-fixed1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "John Roe", c.PatientName)
	assert.Equal(t, "importer@example.com", c.CreatedBy)

	// Second run skips the fixed id but creates another generated one.
	result, err = svc.ImportCases(ctx, strings.NewReader(doc), "importer@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
}
