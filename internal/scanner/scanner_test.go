package scanner

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dtcops/blobsync/internal/domain"
	"github.com/dtcops/blobsync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects   []storage.ObjectInfo
	listErr   error
	gotPrefix string
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	f.gotPrefix = prefix
	return f.objects, f.listErr
}

func (f *fakeStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) Exists(ctx context.Context, name string) (bool, error) {
	return false, errors.New("not implemented")
}

func TestScanSinceFilterIsInclusive(t *testing.T) {
	cutoff := time.Date(2023, 11, 14, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{objects: []storage.ObjectInfo{
		{Name: "old.json", LastModified: cutoff.Add(-time.Second)},
		{Name: "exact.json", LastModified: cutoff},
		{Name: "new.json", LastModified: cutoff.Add(time.Second)},
	}}

	records, err := New(store, "exports/").Scan(context.Background(), &cutoff)
	require.NoError(t, err)
	assert.Equal(t, "exports/", store.gotPrefix)

	var names []string
	for _, r := range records {
		names = append(names, r.BlobName)
	}
	// Objects modified exactly at the resume point are re-ingested; the upsert
	// makes that a no-op rather than a duplicate.
	assert.Equal(t, []string{"exact.json", "new.json"}, names)
}

func TestScanNilSinceReturnsEverything(t *testing.T) {
	store := &fakeStore{objects: []storage.ObjectInfo{
		{Name: "a.json", LastModified: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Name: "b.json", LastModified: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}

	records, err := New(store, "").Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestScanClassifiesByTimestamps(t *testing.T) {
	created := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{objects: []storage.ObjectInfo{
		{Name: "untouched.json", CreatedAt: created, LastModified: created},
		{Name: "modified.json", CreatedAt: created, LastModified: created.Add(time.Hour)},
		{Name: "no-created-at.json", LastModified: created},
	}}

	records, err := New(store, "").Scan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.EventCreated, records[0].EventType)
	assert.Equal(t, domain.EventPropertiesUpdated, records[1].EventType)
	assert.Equal(t, domain.EventCreated, records[2].EventType)
}

func TestScanCopiesObjectFields(t *testing.T) {
	mod := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{objects: []storage.ObjectInfo{{
		Name:         "f1.json",
		Size:         2048,
		ContentType:  "application/json",
		ETag:         `"abc123"`,
		LastModified: mod,
		Metadata:     map[string]string{"source": "export"},
		URL:          "https://store.local/bucket/f1.json",
		VersionID:    "v1",
	}}}

	records, err := New(store, "").Scan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "f1.json", rec.BlobName)
	assert.Equal(t, int64(2048), rec.ContentLength)
	assert.Equal(t, "application/json", rec.ContentType)
	assert.Equal(t, `"abc123"`, rec.ETag)
	assert.Equal(t, mod, rec.LastModified)
	assert.Equal(t, map[string]string{"source": "export"}, rec.Metadata)
	assert.Equal(t, "https://store.local/bucket/f1.json", rec.URL)
	assert.Equal(t, "v1", rec.VersionID)
}

func TestScanListErrorFailsWholeScan(t *testing.T) {
	store := &fakeStore{listErr: errors.New("bucket unreachable")}

	_, err := New(store, "").Scan(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan failed")
}
