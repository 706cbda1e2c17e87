// Package verify reconciles classified blobs against the time-series store:
// one templated count query per blob, retried with the same bounded backoff
// as classification.
package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/dtcops/blobsync/internal/influx"
	"github.com/dtcops/blobsync/internal/retry"
	"github.com/rs/zerolog/log"
)

type Verifier struct {
	client   influx.Client
	template string
	policy   retry.Policy
}

// New validates the query template up front: exactly one %s placeholder for
// the blob name, so a bad template fails at startup rather than on the first
// claimed blob.
func New(client influx.Client, template string, policy retry.Policy) (*Verifier, error) {
	if strings.Count(template, "%s") != 1 {
		return nil, fmt.Errorf("query template must contain exactly one %%s placeholder, got %q", template)
	}
	return &Verifier{client: client, template: template, policy: policy}, nil
}

// Verify runs the count query for one blob and returns the scalar result.
func (v *Verifier) Verify(ctx context.Context, blobName string) (int64, error) {
	query := fmt.Sprintf(v.template, blobName)

	var count int64
	err := retry.Do(ctx, v.policy, func() error {
		var attemptErr error
		count, attemptErr = v.client.QueryCount(ctx, query)
		if attemptErr != nil {
			log.Warn().Err(attemptErr).Str("blob", blobName).Msg("verification query failed, will retry")
		}
		return attemptErr
	})
	if err != nil {
		return 0, fmt.Errorf("verification failed for blob %s: %w", blobName, err)
	}
	return count, nil
}
