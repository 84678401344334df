package store

import (
	"errors"

	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
)

// Sentinel errors. They are domain errors, so callers can match either these
// or the generic codes in internal/errors.
var (
	ErrNotFound      = domainerrors.NotFound("document not found")
	ErrAlreadyExists = domainerrors.AlreadyExists("document already exists")
	ErrUnavailable   = domainerrors.StoreUnavailable("document store unavailable")
	ErrInvalidQuery  = domainerrors.Validation("invalid query")
	ErrBatchTooLarge = domainerrors.Validation("batch exceeds maximum number of writes")
)

// ErrAggregateUnsupported is returned by Query.Count when the store was opened
// without count aggregation. Callers are expected to fall back to a scan.
var ErrAggregateUnsupported = errors.New("count aggregation not supported")

// unavailable wraps a Badger failure as a transient store error.
func unavailable(msg string, err error) error {
	return ErrUnavailable.WithMessage(msg).WithCause(err)
}

// invalidQuery reports a malformed query.
func invalidQuery(msg string) error {
	return ErrInvalidQuery.WithMessage("invalid query: " + msg)
}
