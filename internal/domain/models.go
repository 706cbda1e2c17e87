package domain

import "time"

// EventType classifies a storage change event. The event type participates in
// the record's identity key alongside blob name and modification time.
type EventType string

const (
	EventCreated           EventType = "BlobCreated"
	EventPropertiesUpdated EventType = "BlobPropertiesUpdated"
	EventMetadataUpdated   EventType = "BlobMetadataUpdated"
	EventDeleted           EventType = "BlobDeleted"
	EventRenamed           EventType = "BlobRenamed"
	EventTierChanged       EventType = "BlobTierChanged"
)

// IsInsertOrUpdate reports whether the event should be ingested. Deletions,
// renames and tier changes never enter the record store.
func (e EventType) IsInsertOrUpdate() bool {
	switch e {
	case EventCreated, EventPropertiesUpdated, EventMetadataUpdated:
		return true
	}
	return false
}

// ChangeRecord is one storage change, uniquely identified by
// (BlobName, EventType, LastModified). Re-ingesting the same triple refreshes
// the descriptive fields but never duplicates the row.
type ChangeRecord struct {
	BlobName      string            `db:"blob_name"`
	EventType     EventType         `db:"event_type"`
	ContentType   string            `db:"content_type"`
	ContentLength int64             `db:"content_length"`
	ETag          string            `db:"etag"`
	LastModified  time.Time         `db:"last_modified"`
	Metadata      map[string]string `db:"-"`
	URL           string            `db:"url"`
	VersionID     string            `db:"version_id"`
	Snapshot      string            `db:"snapshot"`
}

// Counts holds the result of classifying one archived export file.
type Counts struct {
	Total    int
	Distinct int
}

// StatusCount is one row of the per-status summary exposed by the ops API.
// Status is empty for rows that have not been touched by any stage yet.
type StatusCount struct {
	Status string `db:"processing_status" json:"status"`
	Count  int64  `db:"count" json:"count"`
}
