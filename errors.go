package stash

import "errors"

var (
	// ErrReadOnly is returned when a mutating operation is invoked on a
	// read-only accessor.
	ErrReadOnly = errors.New("accessor is read-only")

	// ErrBytesDisabled is returned when a [Bytes] value would be stored
	// by, or returned to, an accessor that does not permit bytes values.
	ErrBytesDisabled = errors.New("bytes values are disabled")

	// ErrInvalidKey is returned when a key is empty or exceeds
	// [MaxKeyLen].
	ErrInvalidKey = errors.New("invalid key")

	// ErrValueTooLarge is returned when a value's payload exceeds
	// [MaxValueLen].
	ErrValueTooLarge = errors.New("value too large")
)

// IsPolicyViolation reports whether err is a rejection of an operation
// that the accessor is not permitted to perform, as opposed to a failure
// of the backing store.
//
// Policy violations are reported synchronously by the offending call and
// never mutate the accessor's pending operations or the backing store.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrReadOnly) || errors.Is(err, ErrBytesDisabled)
}
