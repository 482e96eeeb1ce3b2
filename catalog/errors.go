package catalog

import (
	"fmt"
	"strings"

	errs "github.com/jrsteele09/go-admin-console/internal/errors"
)

var (
	ErrTransactionStep    = errs.ErrTransactionStep
	ErrRollbackIncomplete = errs.ErrRollbackIncomplete
	ErrInvalidRequest     = errs.ErrInvalidRequest
)

// Step names the stage of a create transaction.
type Step string

const (
	StepCreatePrimary     Step = "create_primary"
	StepUploadDependent   Step = "upload_dependent"
	StepPersistDependents Step = "persist_dependent_metadata"
)

// TransactionStepError reports the step that failed a create transaction.
// Index is the position of the failing dependent, or -1 for the primary.
type TransactionStepError struct {
	TransactionID string
	Step          Step
	Index         int
	PrimaryID     int64
	Err           error
	Report        *RollbackReport  // nil when nothing had to be compensated
	Rollback      *RollbackWarning // set when the primary could not be deleted
}

func (e *TransactionStepError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Step)
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s[%d] failed", e.Step, e.Index)
	}
	msg += ": " + e.Err.Error()
	if e.Rollback != nil {
		msg += " (" + e.Rollback.Error() + ")"
	}
	return msg
}

func (e *TransactionStepError) Unwrap() []error {
	wrapped := []error{ErrTransactionStep, e.Err}
	if e.Rollback != nil {
		wrapped = append(wrapped, e.Rollback)
	}
	return wrapped
}

// RollbackWarning is layered on a TransactionStepError when the primary record
// survived the rollback and must be removed by an operator.
type RollbackWarning struct {
	PrimaryID int64
	Err       error
	Report    RollbackReport
}

func (w *RollbackWarning) Error() string {
	return fmt.Sprintf("rollback incomplete: product %d could not be deleted: %v", w.PrimaryID, w.Err)
}

func (w *RollbackWarning) Unwrap() []error {
	return []error{ErrRollbackIncomplete, w.Err}
}

// RollbackOutcome summarises how much of a failed transaction was undone.
type RollbackOutcome string

const (
	RolledBack          RollbackOutcome = "rolled_back"
	PartiallyRolledBack RollbackOutcome = "partially_rolled_back"
	PrimaryDeleteFailed RollbackOutcome = "primary_delete_failed"
)

// RollbackReport lists the compensating actions of one rollback.
type RollbackReport struct {
	PrimaryID   int64
	Outcome     RollbackOutcome
	Compensated []string
	Failed      []string
}

func (r RollbackReport) String() string {
	s := fmt.Sprintf("product %d %s", r.PrimaryID, r.Outcome)
	if len(r.Compensated) > 0 {
		s += "; undone: " + strings.Join(r.Compensated, ", ")
	}
	if len(r.Failed) > 0 {
		s += "; left behind: " + strings.Join(r.Failed, ", ")
	}
	return s
}
