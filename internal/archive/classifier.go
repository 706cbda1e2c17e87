// Package archive reads archived export files and computes their record
// counts. A file holds either a data export or an events export; entries are
// deduplicated on the shape's identity key to separate total from distinct.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dtcops/blobsync/internal/domain"
	"github.com/dtcops/blobsync/internal/retry"
	"github.com/dtcops/blobsync/internal/storage"
	"github.com/rs/zerolog/log"
)

type Classifier struct {
	store  storage.BlobStore
	policy retry.Policy
}

func NewClassifier(store storage.BlobStore, policy retry.Policy) *Classifier {
	return &Classifier{store: store, policy: policy}
}

// Classify downloads and parses one archived file, returning its total and
// distinct record counts. Transient I/O failures are retried with bounded
// exponential backoff; a missing blob or malformed content is terminal
// immediately. After the retry budget the last failure is returned wrapped.
func (c *Classifier) Classify(ctx context.Context, blobName string) (domain.Counts, error) {
	var counts domain.Counts
	err := retry.Do(ctx, c.policy, func() error {
		var attemptErr error
		counts, attemptErr = c.classifyOnce(ctx, blobName)
		if attemptErr == nil {
			return nil
		}
		if pf, ok := attemptErr.(*ProcessingFailure); ok && pf.Kind != FailureTransient {
			return retry.Permanent(attemptErr)
		}
		log.Warn().Err(attemptErr).Str("blob", blobName).Msg("classification attempt failed, will retry")
		return attemptErr
	})
	return counts, err
}

func (c *Classifier) classifyOnce(ctx context.Context, blobName string) (domain.Counts, error) {
	exists, err := c.store.Exists(ctx, blobName)
	if err != nil {
		return domain.Counts{}, &ProcessingFailure{Kind: FailureTransient, Blob: blobName, Err: err}
	}
	if !exists {
		return domain.Counts{}, &ProcessingFailure{
			Kind: FailureNotFound, Blob: blobName,
			Detail: "blob does not exist in archive bucket",
		}
	}

	rc, err := c.store.Open(ctx, blobName)
	if err != nil {
		return domain.Counts{}, &ProcessingFailure{Kind: FailureTransient, Blob: blobName, Err: err}
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return domain.Counts{}, &ProcessingFailure{Kind: FailureTransient, Blob: blobName, Err: err}
	}

	env, err := parseEnvelope(blobName, raw)
	if err != nil {
		return domain.Counts{}, err
	}

	counts := count(env)
	log.Debug().Str("blob", blobName).
		Int("total", counts.Total).Int("distinct", counts.Distinct).
		Msg("classified archive file")
	return counts, nil
}

// parseEnvelope decodes the file and enforces the exactly-one-shape rule.
// Parse errors carry positional detail when the decoder can provide it.
func parseEnvelope(blobName string, raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, structuralParseError(blobName, raw, err)
	}

	hasData := env.ExportedData != nil
	hasEvents := env.ExportedEvents != nil
	switch {
	case hasData && hasEvents:
		return nil, &ProcessingFailure{
			Kind: FailureStructural, Blob: blobName,
			Detail: "both ExportedData and ExportedEvents present",
		}
	case !hasData && !hasEvents:
		return nil, &ProcessingFailure{
			Kind: FailureStructural, Blob: blobName,
			Detail: "neither ExportedData nor ExportedEvents found",
		}
	}
	return &env, nil
}

func structuralParseError(blobName string, raw []byte, err error) error {
	switch e := err.(type) {
	case *json.SyntaxError:
		line, col := lineCol(raw, e.Offset)
		return &ProcessingFailure{
			Kind: FailureStructural, Blob: blobName,
			Detail: fmt.Sprintf("parse error at line %d, column %d", line, col),
			Err:    err,
		}
	case *json.UnmarshalTypeError:
		detail := fmt.Sprintf("unexpected %s for field %s", e.Value, e.Field)
		if e.Field == "" {
			line, col := lineCol(raw, e.Offset)
			detail = fmt.Sprintf("unexpected %s at line %d, column %d", e.Value, line, col)
		}
		return &ProcessingFailure{Kind: FailureStructural, Blob: blobName, Detail: detail, Err: err}
	default:
		return &ProcessingFailure{Kind: FailureStructural, Blob: blobName, Err: err}
	}
}

// count computes total and distinct for whichever shape the envelope carries.
// An empty or absent entry list is a valid file with zero records.
func count(env *Envelope) domain.Counts {
	if env.ExportedData != nil {
		objects := env.ExportedData.Objects
		distinct := make(map[dataKey]struct{}, len(objects))
		for _, o := range objects {
			distinct[o.key()] = struct{}{}
		}
		return domain.Counts{Total: len(objects), Distinct: len(distinct)}
	}

	events := env.ExportedEvents.Objects
	distinct := make(map[eventKey]struct{}, len(events))
	for _, o := range events {
		distinct[o.key()] = struct{}{}
	}
	return domain.Counts{Total: len(events), Distinct: len(distinct)}
}

// lineCol converts a decoder byte offset to 1-based line and column.
func lineCol(raw []byte, offset int64) (int, int) {
	if offset > int64(len(raw)) {
		offset = int64(len(raw))
	}
	prefix := raw[:offset]
	line := bytes.Count(prefix, []byte{'\n'}) + 1
	col := int(offset) - bytes.LastIndexByte(prefix, '\n')
	return line, col
}
