package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dtcops/blobsync/internal/domain"
)

// ChangeRepository persists change records and their processing state in a
// single table keyed by (blob_name, event_type, last_modified).
type ChangeRepository struct {
	db     *DB
	schema string
	table  string
}

func NewChangeRepository(db *DB, schema, table string) *ChangeRepository {
	if schema == "" {
		schema = "public"
	}
	if table == "" {
		table = "blob_changes"
	}
	return &ChangeRepository{db: db, schema: schema, table: table}
}

func (r *ChangeRepository) qualified() string {
	return r.schema + "." + r.table
}

// SchemaDDL returns the statements that create the change table and its
// supporting indexes. Shared by InitSchema and the init-db CLI command.
func SchemaDDL(schema, table string) []string {
	qualified := schema + "." + table
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			blob_name VARCHAR(1024) NOT NULL,
			event_type VARCHAR(100) NOT NULL,
			content_type VARCHAR(255),
			content_length BIGINT,
			etag VARCHAR(255),
			last_modified TIMESTAMP WITH TIME ZONE,
			metadata JSONB,
			url TEXT,
			version_id VARCHAR(255),
			snapshot VARCHAR(255),
			total_records INT,
			distinct_records INT,
			processing_status VARCHAR(50),
			influx_count BIGINT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (blob_name, event_type, last_modified)
		)`, qualified),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_blob_name ON %s (blob_name)", table, qualified),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_last_modified ON %s (last_modified)", table, qualified),
	}
}

// InitSchema creates the table and its supporting indexes if they are missing.
func (r *ChangeRepository) InitSchema(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range SchemaDDL(r.schema, r.table) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to initialize table %s: %w", r.qualified(), err)
			}
		}
		return nil
	})
}

// Upsert merges one change record. Re-applying the same
// (blob_name, event_type, last_modified) triple refreshes the descriptive
// fields and never creates a second row. Processing state columns are left
// untouched.
func (r *ChangeRepository) Upsert(ctx context.Context, rec domain.ChangeRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (blob_name, event_type, content_type, content_length,
			etag, last_modified, metadata, url, version_id, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)
		ON CONFLICT (blob_name, event_type, last_modified)
		DO UPDATE SET
			content_type = EXCLUDED.content_type,
			content_length = EXCLUDED.content_length,
			etag = EXCLUDED.etag,
			metadata = EXCLUDED.metadata,
			url = EXCLUDED.url,
			version_id = EXCLUDED.version_id,
			snapshot = EXCLUDED.snapshot
	`, r.qualified())

	metadata, err := metadataJSON(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", rec.BlobName, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		rec.BlobName,
		string(rec.EventType),
		nullIfEmpty(rec.ContentType),
		rec.ContentLength,
		nullIfEmpty(rec.ETag),
		rec.LastModified,
		metadata,
		nullIfEmpty(rec.URL),
		nullIfEmpty(rec.VersionID),
		nullIfEmpty(rec.Snapshot),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert change record %s: %w", rec.BlobName, err)
	}
	return nil
}

// LastModified returns the newest modification time seen so far, the resume
// point for incremental scans. ok is false when the table is empty.
func (r *ChangeRepository) LastModified(ctx context.Context) (time.Time, bool, error) {
	query := fmt.Sprintf("SELECT MAX(last_modified) FROM %s", r.qualified())

	var last sql.NullTime
	if err := r.db.GetContext(ctx, &last, query); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last modified: %w", err)
	}
	return last.Time, last.Valid, nil
}

// ClaimForProcessing returns the blob names eligible for classification:
// modified earlier than minAge ago, counts not both set, and not already in a
// terminal processing-stage status. Lexicographic order keeps repeated runs
// reproducible.
func (r *ChangeRepository) ClaimForProcessing(ctx context.Context, minAge time.Duration) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT blob_name FROM %s
		WHERE last_modified < NOW() - ($1 * INTERVAL '1 minute')
		  AND (total_records IS NULL OR distinct_records IS NULL)
		  AND (processing_status IS NULL OR processing_status NOT IN ($2, $3))
		ORDER BY blob_name
	`, r.qualified())

	var names []string
	err := r.db.SelectContext(ctx, &names, query,
		minAge.Minutes(), string(domain.StatusCompleted), string(domain.StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to claim blobs for processing: %w", err)
	}
	return names, nil
}

// ClaimForVerification returns the blob names whose classification is complete
// or whose previous verification failed.
func (r *ChangeRepository) ClaimForVerification(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT blob_name FROM %s
		WHERE processing_status IN ($1, $2)
		ORDER BY blob_name
	`, r.qualified())

	var names []string
	err := r.db.SelectContext(ctx, &names, query,
		string(domain.StatusCompleted), string(domain.StatusVerifiedFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to claim blobs for verification: %w", err)
	}
	return names, nil
}

// SetStatus updates processing_status for every row of the blob within the
// ingested change kinds. Returns the number of rows touched; zero rows is the
// caller's signal that the blob vanished or was relabeled concurrently.
func (r *ChangeRepository) SetStatus(ctx context.Context, blobName string, status domain.ProcessingStatus) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET processing_status = $2
		WHERE blob_name = $1 AND event_type IN ($3, $4, $5)
	`, r.qualified())

	res, err := r.db.ExecContext(ctx, query, blobName, string(status),
		string(domain.EventCreated), string(domain.EventPropertiesUpdated), string(domain.EventMetadataUpdated))
	if err != nil {
		return 0, fmt.Errorf("failed to set status %s for %s: %w", status, blobName, err)
	}
	return res.RowsAffected()
}

// SetCounts records the classification result and the terminal status in one
// statement, so a partially-written outcome is never visible.
func (r *ChangeRepository) SetCounts(ctx context.Context, blobName string, counts domain.Counts, status domain.ProcessingStatus) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET total_records = $2, distinct_records = $3, processing_status = $4
		WHERE blob_name = $1 AND event_type IN ($5, $6, $7)
	`, r.qualified())

	res, err := r.db.ExecContext(ctx, query, blobName, counts.Total, counts.Distinct, string(status),
		string(domain.EventCreated), string(domain.EventPropertiesUpdated), string(domain.EventMetadataUpdated))
	if err != nil {
		return 0, fmt.Errorf("failed to set counts for %s: %w", blobName, err)
	}
	return res.RowsAffected()
}

// SetInfluxCount records the verification query result and the terminal
// verification status in one statement.
func (r *ChangeRepository) SetInfluxCount(ctx context.Context, blobName string, count int64, status domain.ProcessingStatus) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET influx_count = $2, processing_status = $3
		WHERE blob_name = $1 AND event_type IN ($4, $5, $6)
	`, r.qualified())

	res, err := r.db.ExecContext(ctx, query, blobName, count, string(status),
		string(domain.EventCreated), string(domain.EventPropertiesUpdated), string(domain.EventMetadataUpdated))
	if err != nil {
		return 0, fmt.Errorf("failed to set influx count for %s: %w", blobName, err)
	}
	return res.RowsAffected()
}

// StatusSummary returns row counts grouped by processing_status for the ops
// API. Untouched rows report an empty status.
func (r *ChangeRepository) StatusSummary(ctx context.Context) ([]domain.StatusCount, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(processing_status, '') AS processing_status, COUNT(*) AS count
		FROM %s GROUP BY 1 ORDER BY 1
	`, r.qualified())

	var rows []domain.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to read status summary: %w", err)
	}
	return rows, nil
}

func metadataJSON(meta map[string]string) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// nullIfEmpty returns NULL if the string is empty, otherwise returns the string
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
