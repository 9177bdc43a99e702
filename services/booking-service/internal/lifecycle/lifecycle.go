package lifecycle

import (
	"errors"
	"fmt"

	"github.com/petcare-labs/clinibook/libs/auth"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// allowedRole maps each target status to the role entitled to trigger it.
// Ownership of the pet is checked by the orchestrator before this runs.
var allowedRole = map[model.Status]string{
	model.StatusCancelled: auth.RoleClient,
	model.StatusAborted:   auth.RoleStaff,
	model.StatusCompleted: auth.RoleStaff,
}

// Transition validates a status change. Confirmed is the only state with
// outgoing edges; every terminal state is final, including re-applying the
// same terminal state.
func Transition(current, target model.Status, actorRole string) error {
	if current != model.StatusConfirmed {
		return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, current)
	}
	role, ok := allowedRole[target]
	if !ok {
		return fmt.Errorf("%w: cannot move to %s", ErrInvalidTransition, target)
	}
	if actorRole != role {
		return fmt.Errorf("%w: %s may not mark a booking %s", ErrInvalidTransition, actorRole, target)
	}
	return nil
}
