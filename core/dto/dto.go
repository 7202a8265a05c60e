// Package dto provides the records exchanged between the review flow, its
// hooks and the persistence layer.
package dto

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the final result of a review session.
type Outcome int32

const (
	// OutcomeApproved means the user confirmed the approve step.
	OutcomeApproved Outcome = iota
	// OutcomeRejected means the user confirmed the reject step or the handler aborted.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomeRejected:
		return "rejected"
	}
	return "unknown"
}

// Decision is a finalized review session.
type Decision struct {
	Session uuid.UUID // Review session identifier
	Outcome Outcome   // Approve or reject
	Items   int       // Number of items the user paged through
	Status  uint16    // Status word sent back to the caller
	At      time.Time // When the decision was confirmed
}
