// Package access decides whether a user may reach protected views based on
// their role and approval status.
package access

import "github.com/Farhaan-Ali/trade-stream/internal/models"

type State string

const (
	// StateUnauthenticated means no valid identity; callers redirect to sign-in.
	StateUnauthenticated State = "unauthenticated"
	// StateLoading means the identity is valid but the role record has not
	// been resolved yet (or the lookup failed). Protected views must not render.
	StateLoading State = "loading"
	// StatePendingApproval blocks suppliers that are not yet approved.
	// Rejected suppliers land here too; only sign-out is reachable.
	StatePendingApproval State = "pending_approval"
	// StateAllowed grants access to protected views.
	StateAllowed State = "allowed"
)

// Evaluate recomputes the gate state from its inputs. It is called on every
// request; there is no hysteresis and no cached state.
func Evaluate(authenticated bool, rec *models.RoleRecord) State {
	if !authenticated {
		return StateUnauthenticated
	}
	if rec == nil {
		return StateLoading
	}
	switch rec.Role {
	case models.RoleSupplier:
		if rec.ApprovalStatus != models.StatusApproved {
			return StatePendingApproval
		}
		return StateAllowed
	case models.RoleVendor, models.RoleSuperadmin:
		// Approval status never gates vendors or superadmins.
		return StateAllowed
	default:
		// Unknown role: fail closed until the record is fixed.
		return StateLoading
	}
}
