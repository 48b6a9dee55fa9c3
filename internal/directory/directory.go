// Package directory defines the identity directory port: resolving a role
// name scoped to a mill into concrete recipients with per-channel contact
// data. Tenant and mill scoping live behind this interface, outside the alert
// core.
package directory

import (
	"context"

	"mill-alert-service/internal/models"
)

type Directory interface {
	// Resolve returns the recipients holding a role at a mill. A millID of 0
	// resolves the role globally (e.g. FWGA inspectors are not mill-scoped).
	Resolve(ctx context.Context, role string, millID int64) ([]models.Recipient, error)
}
