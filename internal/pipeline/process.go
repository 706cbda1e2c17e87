package pipeline

import (
	"context"

	"github.com/dtcops/blobsync/internal/coordinator"
	"github.com/dtcops/blobsync/internal/domain"
	"github.com/rs/zerolog/log"
)

// ContentClassifier computes record counts for one archived file.
type ContentClassifier interface {
	Classify(ctx context.Context, blobName string) (domain.Counts, error)
}

// Processor is the classification cycle: claim eligible blobs, classify each,
// and record the outcome through the coordinator.
type Processor struct {
	coord      *coordinator.Coordinator
	classifier ContentClassifier
}

func NewProcessor(coord *coordinator.Coordinator, classifier ContentClassifier) *Processor {
	return &Processor{coord: coord, classifier: classifier}
}

// Cycle processes every claimed blob sequentially. A blob's terminal failure
// is always recorded as FAILED so the next cycle can tell "attempted and
// failed" from "not yet attempted"; it never aborts the rest of the batch.
func (p *Processor) Cycle(ctx context.Context) error {
	names, err := p.coord.ClaimForProcessing(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		log.Debug().Msg("no blobs eligible for processing")
		return nil
	}

	log.Info().Int("count", len(names)).Msg("claimed blobs for processing")

	var processed, failed int
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}

		p.coord.MarkProcessing(ctx, name)

		counts, err := p.classifier.Classify(ctx, name)
		if err != nil {
			failed++
			log.Error().Err(err).Str("blob", name).Msg("classification failed")
			p.coord.MarkFailed(ctx, name)
			continue
		}

		if err := p.coord.MarkCompleted(ctx, name, counts); err != nil {
			failed++
			log.Error().Err(err).Str("blob", name).Msg("failed to record classification result")
			continue
		}

		processed++
		if processed%10 == 0 {
			log.Info().Int("processed", processed).Msg("processing progress")
		}
	}

	log.Info().Int("processed", processed).Int("failed", failed).Msg("processing cycle complete")
	return nil
}
