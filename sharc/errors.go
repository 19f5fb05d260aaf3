package sharc

import "github.com/revred/sharc-core/internal/sharcerr"

// ErrKind classifies a returned error, re-exported from internal/sharcerr
// so callers outside the module can branch on it without importing an
// internal package.
type ErrKind = sharcerr.Kind

const (
	ErrNotFound         = sharcerr.NotFound
	ErrInvalidArgument  = sharcerr.InvalidArgument
	ErrOutOfRange       = sharcerr.OutOfRange
	ErrObjectDisposed   = sharcerr.ObjectDisposed
	ErrConstraint       = sharcerr.Constraint
	ErrCorruptPage      = sharcerr.CorruptPage
	ErrWrongPassword    = sharcerr.WrongPassword
	ErrPasswordRequired = sharcerr.PasswordRequired
	ErrInvalidOperation = sharcerr.InvalidOperation
	ErrUnauthorized     = sharcerr.Unauthorized
)

// KindOf extracts the ErrKind carried by err, if any.
func KindOf(err error) (ErrKind, bool) {
	return sharcerr.KindOf(err)
}

// Is reports whether err (or anything it wraps) carries kind k.
func Is(err error, k ErrKind) bool {
	return sharcerr.Is(err, k)
}
