// Package coordinator owns every write to the shared processing_status
// column. The processing and verification loops never touch the record store
// for status directly; they ask the coordinator, whose claim predicates are
// disjoint by construction, so neither stage can steal the other's work.
package coordinator

import (
	"context"
	"time"

	"github.com/dtcops/blobsync/internal/domain"
	"github.com/rs/zerolog/log"
)

// Store is the slice of the record store the coordinator needs. Implemented
// by postgres.ChangeRepository and by the in-memory store used in tests.
type Store interface {
	ClaimForProcessing(ctx context.Context, minAge time.Duration) ([]string, error)
	ClaimForVerification(ctx context.Context) ([]string, error)
	SetStatus(ctx context.Context, blobName string, status domain.ProcessingStatus) (int64, error)
	SetCounts(ctx context.Context, blobName string, counts domain.Counts, status domain.ProcessingStatus) (int64, error)
	SetInfluxCount(ctx context.Context, blobName string, count int64, status domain.ProcessingStatus) (int64, error)
}

type Coordinator struct {
	store  Store
	minAge time.Duration
}

func New(store Store, minAge time.Duration) *Coordinator {
	return &Coordinator{store: store, minAge: minAge}
}

// ClaimForProcessing returns the blobs eligible for classification, oldest
// names first. A blob another worker already marked PROCESSING is still
// claimable as long as its counts are unset; classification is deterministic,
// so a duplicate run converges on the same result.
func (c *Coordinator) ClaimForProcessing(ctx context.Context) ([]string, error) {
	return c.store.ClaimForProcessing(ctx, c.minAge)
}

// ClaimForVerification returns the blobs whose classification completed, plus
// those whose previous verification failed and should be tried again.
func (c *Coordinator) ClaimForVerification(ctx context.Context) ([]string, error) {
	return c.store.ClaimForVerification(ctx)
}

func (c *Coordinator) MarkProcessing(ctx context.Context, blobName string) {
	c.setStatus(ctx, blobName, domain.StatusProcessing)
}

func (c *Coordinator) MarkCompleted(ctx context.Context, blobName string, counts domain.Counts) error {
	rows, err := c.store.SetCounts(ctx, blobName, counts, domain.StatusCompleted)
	if err != nil {
		return err
	}
	c.warnIfNoRows(blobName, domain.StatusCompleted, rows)
	return nil
}

func (c *Coordinator) MarkFailed(ctx context.Context, blobName string) {
	c.setStatus(ctx, blobName, domain.StatusFailed)
}

func (c *Coordinator) MarkVerifying(ctx context.Context, blobName string) {
	c.setStatus(ctx, blobName, domain.StatusVerifying)
}

func (c *Coordinator) MarkVerifiedOK(ctx context.Context, blobName string, count int64) error {
	rows, err := c.store.SetInfluxCount(ctx, blobName, count, domain.StatusVerifiedOK)
	if err != nil {
		return err
	}
	c.warnIfNoRows(blobName, domain.StatusVerifiedOK, rows)
	return nil
}

func (c *Coordinator) MarkVerifiedFailed(ctx context.Context, blobName string) {
	c.setStatus(ctx, blobName, domain.StatusVerifiedFailed)
}

// setStatus performs a best-effort status write. A failed or zero-row update
// is logged, never fatal: the blob may have been removed or relabeled by a
// concurrent ingestion cycle, and the next claim will sort it out.
func (c *Coordinator) setStatus(ctx context.Context, blobName string, status domain.ProcessingStatus) {
	rows, err := c.store.SetStatus(ctx, blobName, status)
	if err != nil {
		log.Warn().Err(err).Str("blob", blobName).Str("status", string(status)).
			Msg("failed to update processing status")
		return
	}
	c.warnIfNoRows(blobName, status, rows)
}

func (c *Coordinator) warnIfNoRows(blobName string, status domain.ProcessingStatus, rows int64) {
	if rows == 0 {
		log.Warn().Str("blob", blobName).Str("status", string(status)).
			Msg("status update matched no rows")
	}
}
