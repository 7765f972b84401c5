package types

import "errors"

// Error taxonomy shared by repositories, services and handlers. Repositories
// wrap these with fmt.Errorf("...: %w", err) so callers can use errors.Is.
var (
	ErrNotFound         = errors.New("requested item not found")
	ErrConflict         = errors.New("item already exists or conflict")
	ErrUnauthenticated  = errors.New("authentication required or invalid credentials")
	ErrForbidden        = errors.New("action forbidden")
	ErrBudgetMissing    = errors.New("no budget exists for trip")
	ErrStoreUnavailable = errors.New("datastore unavailable")
)
