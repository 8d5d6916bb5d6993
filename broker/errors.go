package broker

import "errors"

// ErrNotFound marks an empty result: the symbol has no position or the
// provider does not know the symbol. It is valid "no data", never retried.
var ErrNotFound = errors.New("not found")

// RejectionError is a regulatory order rejection (for example pattern
// day trading protection). The order is skipped, never retried.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "order rejected: " + e.Reason
}

// IsNotFound reports whether err is an empty-result fault.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRejection reports whether err is a regulatory rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}
