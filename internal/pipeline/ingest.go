package pipeline

import (
	"context"
	"time"

	"github.com/dtcops/blobsync/internal/cache"
	"github.com/dtcops/blobsync/internal/domain"
	"github.com/rs/zerolog/log"
)

// ChangeScanner produces change records from the source collection.
type ChangeScanner interface {
	Scan(ctx context.Context, since *time.Time) ([]domain.ChangeRecord, error)
}

// RecordWriter is the slice of the record store the ingestion loop needs.
type RecordWriter interface {
	Upsert(ctx context.Context, rec domain.ChangeRecord) error
	LastModified(ctx context.Context) (time.Time, bool, error)
}

// Ingester is the ingestion cycle: scan the source collection for changes and
// upsert them into the record store.
type Ingester struct {
	scanner  ChangeScanner
	store    RecordWriter
	cursor   *cache.CursorStore
	firstRun bool

	// resync forces the first cycle to walk the whole collection instead of
	// resuming from the stored cursor.
	resync bool
}

func NewIngester(scanner ChangeScanner, store RecordWriter, cursor *cache.CursorStore, resyncHistorical bool) *Ingester {
	return &Ingester{
		scanner:  scanner,
		store:    store,
		cursor:   cursor,
		firstRun: true,
		resync:   resyncHistorical,
	}
}

// Cycle runs one ingestion pass. A single record's upsert failure is logged
// and never aborts its siblings; a scan failure aborts the cycle and the loop
// retries on its normal cadence.
func (i *Ingester) Cycle(ctx context.Context) error {
	since, err := i.resolveSince(ctx)
	if err != nil {
		return err
	}
	i.firstRun = false

	records, err := i.scanner.Scan(ctx, since)
	if err != nil {
		return err
	}

	var (
		processed int
		failed    int
		newest    time.Time
	)
	for _, rec := range records {
		if !rec.EventType.IsInsertOrUpdate() {
			continue
		}
		if err := i.store.Upsert(ctx, rec); err != nil {
			failed++
			log.Error().Err(err).Str("blob", rec.BlobName).Msg("failed to upsert change record")
			continue
		}
		processed++
		if rec.LastModified.After(newest) {
			newest = rec.LastModified
		}
		if processed%100 == 0 {
			log.Info().Int("processed", processed).Msg("ingestion progress")
		}
	}

	if !newest.IsZero() {
		i.cursor.Set(ctx, newest)
	}
	if processed > 0 || failed > 0 {
		log.Info().Int("processed", processed).Int("failed", failed).Msg("ingestion cycle complete")
	} else {
		log.Debug().Msg("no new changes found")
	}
	return nil
}

// resolveSince picks the scan resume point: nil for a full resync (first run
// in historical mode, or an empty table), otherwise the cached cursor or the
// store's newest modification time.
func (i *Ingester) resolveSince(ctx context.Context) (*time.Time, error) {
	if i.firstRun && i.resync {
		log.Info().Msg("historical mode: scanning the whole source collection")
		return nil, nil
	}

	if cursor, ok := i.cursor.Get(ctx); ok {
		return &cursor, nil
	}

	last, ok, err := i.store.LastModified(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &last, nil
}
