package reconcile

import (
	"fmt"

	"github.com/google/uuid"
)

// ReconciliationError reports a persistence failure while applying a plan.
// Nothing of the failing entity type was committed.
type ReconciliationError struct {
	AppID  uuid.UUID
	Entity string
	Err    error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s for app %s: %v", e.Entity, e.AppID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
