package purchase

import (
	"errors"
	"fmt"
)

var (
	ErrPurchaseInProgress = errors.New("purchase flow already in progress")
	ErrControllerClosed   = errors.New("purchase controller closed")
	ErrNothingToRetry     = errors.New("no failed purchase flow to retry")
	ErrMissingEndpoint    = errors.New("purchase api endpoint is required")
)

// ErrNoTransition indicates the flow state machine has no transition for
// the trigger in the current state.
type ErrNoTransition struct {
	State   FlowState
	Trigger string
}

func (e *ErrNoTransition) Error() string {
	return fmt.Sprintf("no transition from flow state '%s' for trigger '%s'", e.State, e.Trigger)
}

func IsNoTransitionError(err error) bool {
	var e *ErrNoTransition
	return errors.As(err, &e)
}
