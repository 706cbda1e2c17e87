package archive

import "fmt"

type FailureKind int

const (
	// FailureTransient covers network and service errors; worth retrying.
	FailureTransient FailureKind = iota
	// FailureNotFound means the blob is absent from the archive bucket.
	FailureNotFound
	// FailureStructural means the content is malformed or has no recognized
	// shape. Never retried: the bytes will not get better.
	FailureStructural
)

func (k FailureKind) String() string {
	switch k {
	case FailureNotFound:
		return "not_found"
	case FailureStructural:
		return "structural"
	default:
		return "transient"
	}
}

// ProcessingFailure is the structured error returned by classification.
// Detail carries positional information (line/column or field path) when the
// underlying parse error provides it.
type ProcessingFailure struct {
	Kind   FailureKind
	Blob   string
	Detail string
	Err    error
}

func (e *ProcessingFailure) Error() string {
	msg := fmt.Sprintf("%s failure for blob %s", e.Kind, e.Blob)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessingFailure) Unwrap() error { return e.Err }
