// Package scanner turns a listing of the source bucket into change records.
// The source has no native change feed, so changes are detected by polling:
// every object modified at or after the resume point becomes one record.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/dtcops/blobsync/internal/domain"
	"github.com/dtcops/blobsync/internal/storage"
)

type Scanner struct {
	store  storage.BlobStore
	prefix string
}

func New(store storage.BlobStore, prefix string) *Scanner {
	return &Scanner{store: store, prefix: prefix}
}

// Scan lists the source collection and returns one ChangeRecord per object
// modified at or after since. A nil since means full resync: every object
// currently in the collection is returned. Deletions and renames are never
// produced; polling only ever observes live objects.
//
// Any listing error fails the whole scan. The caller owns the retry cadence.
func (s *Scanner) Scan(ctx context.Context, since *time.Time) ([]domain.ChangeRecord, error) {
	objects, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	var records []domain.ChangeRecord
	for _, obj := range objects {
		if since != nil && obj.LastModified.Before(*since) {
			continue
		}
		records = append(records, domain.ChangeRecord{
			BlobName:      obj.Name,
			EventType:     classify(obj),
			ContentType:   obj.ContentType,
			ContentLength: obj.Size,
			ETag:          obj.ETag,
			LastModified:  obj.LastModified,
			Metadata:      obj.Metadata,
			URL:           obj.URL,
			VersionID:     obj.VersionID,
		})
	}
	return records, nil
}

// classify decides the event kind from the object's timestamps: an object
// whose creation time equals its modification time has never been touched
// since upload.
func classify(obj storage.ObjectInfo) domain.EventType {
	if !obj.CreatedAt.IsZero() && !obj.CreatedAt.Equal(obj.LastModified) {
		return domain.EventPropertiesUpdated
	}
	return domain.EventCreated
}
