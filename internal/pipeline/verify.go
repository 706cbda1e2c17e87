package pipeline

import (
	"context"

	"github.com/dtcops/blobsync/internal/coordinator"
	"github.com/rs/zerolog/log"
)

// CountVerifier runs the per-blob time-series count query.
type CountVerifier interface {
	Verify(ctx context.Context, blobName string) (int64, error)
}

// VerifyRunner is the verification cycle: claim completed blobs, query the
// time-series store for each, and record the count and outcome.
type VerifyRunner struct {
	coord    *coordinator.Coordinator
	verifier CountVerifier
}

func NewVerifyRunner(coord *coordinator.Coordinator, verifier CountVerifier) *VerifyRunner {
	return &VerifyRunner{coord: coord, verifier: verifier}
}

// Cycle verifies every claimed blob sequentially, with the same per-item
// partial-failure semantics as processing: exhausted retries become
// VERIFIED_FAILED, never an aborted batch.
func (v *VerifyRunner) Cycle(ctx context.Context) error {
	names, err := v.coord.ClaimForVerification(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		log.Debug().Msg("no blobs eligible for verification")
		return nil
	}

	log.Info().Int("count", len(names)).Msg("claimed blobs for verification")

	var verifiedOK, verifiedFailed int
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}

		v.coord.MarkVerifying(ctx, name)

		count, err := v.verifier.Verify(ctx, name)
		if err != nil {
			verifiedFailed++
			log.Error().Err(err).Str("blob", name).Msg("verification failed")
			v.coord.MarkVerifiedFailed(ctx, name)
			continue
		}

		log.Info().Str("blob", name).Int64("count", count).Msg("verified blob in time-series store")

		if err := v.coord.MarkVerifiedOK(ctx, name, count); err != nil {
			verifiedFailed++
			log.Error().Err(err).Str("blob", name).Msg("failed to record verification result")
			continue
		}
		verifiedOK++
	}

	log.Info().Int("ok", verifiedOK).Int("failed", verifiedFailed).Msg("verification cycle complete")
	return nil
}
