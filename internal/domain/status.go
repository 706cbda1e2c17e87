package domain

// ProcessingStatus is the lifecycle state shared by the three poll loops. It
// only ever advances through the directed graph below; the single exception is
// VERIFIED_FAILED, which verification may claim again.
//
//	<none> -> PROCESSING -> {COMPLETED, FAILED}
//	COMPLETED | VERIFIED_FAILED -> VERIFYING -> {VERIFIED_OK, VERIFIED_FAILED}
type ProcessingStatus string

const (
	StatusNone           ProcessingStatus = ""
	StatusProcessing     ProcessingStatus = "PROCESSING"
	StatusCompleted      ProcessingStatus = "COMPLETED"
	StatusFailed         ProcessingStatus = "FAILED"
	StatusVerifying      ProcessingStatus = "VERIFYING"
	StatusVerifiedOK     ProcessingStatus = "VERIFIED_OK"
	StatusVerifiedFailed ProcessingStatus = "VERIFIED_FAILED"
)

var transitions = map[ProcessingStatus][]ProcessingStatus{
	StatusNone:           {StatusProcessing},
	StatusProcessing:     {StatusProcessing, StatusCompleted, StatusFailed},
	StatusCompleted:      {StatusVerifying},
	StatusVerifying:      {StatusVerifying, StatusVerifiedOK, StatusVerifiedFailed},
	StatusVerifiedFailed: {StatusVerifying},
}

// CanTransition reports whether moving from one status to another is a legal
// step of the lifecycle graph. Self-transitions for PROCESSING and VERIFYING
// are allowed because concurrent workers of the same stage may claim the same
// object; the repeated mark is idempotent.
func CanTransition(from, to ProcessingStatus) bool {
	// The processing claim does not exclude PROCESSING rows, so a second
	// worker may re-claim an object whose counts are still unset.
	if from == StatusNone && to == StatusProcessing {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status ends its stage: nothing in the
// processing stage ever touches the object again, and only verification may
// pick up COMPLETED or VERIFIED_FAILED.
func (s ProcessingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusVerifiedOK, StatusVerifiedFailed:
		return true
	}
	return false
}
