package stash

import (
	"fmt"

	"golang.org/x/exp/slices"
)

const (
	// MaxKeyLen is the maximum length of a key, in bytes.
	MaxKeyLen = 256

	// MaxValueLen is the maximum length of the payload of a [String] or
	// [Bytes] value, in bytes.
	MaxValueLen = 12000
)

// A Value is a single datum stored under a key.
//
// The set of value types is closed: [Bool], [Int], [Float], [String] and
// [Bytes] are the only implementations.
type Value interface {
	// Type returns the type of the value.
	Type() Type

	isValue()
}

// Type enumerates the types of [Value].
type Type byte

const (
	// TypeBool is the type of a [Bool] value.
	TypeBool Type = iota + 1

	// TypeInt is the type of an [Int] value.
	TypeInt

	// TypeFloat is the type of a [Float] value.
	TypeFloat

	// TypeString is the type of a [String] value.
	TypeString

	// TypeBytes is the type of a [Bytes] value.
	TypeBytes
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	default:
		return fmt.Sprintf("unknown type (%d)", byte(t))
	}
}

// Bool is a [Value] containing a boolean.
type Bool bool

// Int is a [Value] containing a signed 64-bit integer.
type Int int64

// Float is a [Value] containing a 64-bit floating point number.
type Float float64

// String is a [Value] containing a UTF-8 string.
type String string

// Bytes is a [Value] containing opaque binary data.
type Bytes []byte

// Type returns the type of the value.
func (Bool) Type() Type { return TypeBool }

// Type returns the type of the value.
func (Int) Type() Type { return TypeInt }

// Type returns the type of the value.
func (Float) Type() Type { return TypeFloat }

// Type returns the type of the value.
func (String) Type() Type { return TypeString }

// Type returns the type of the value.
func (Bytes) Type() Type { return TypeBytes }

func (Bool) isValue()   {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (String) isValue() {}
func (Bytes) isValue()  {}

// cloneValue returns a copy of v that shares no memory with v, so that
// neither the caller nor the store can mutate the other's copy.
func cloneValue(v Value) Value {
	if b, ok := v.(Bytes); ok {
		return slices.Clone(b)
	}

	return v
}

func validateKey(k string) error {
	if k == "" {
		return fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}

	if len(k) > MaxKeyLen {
		return fmt.Errorf(
			"%w: key is %d bytes, limit is %d",
			ErrInvalidKey,
			len(k),
			MaxKeyLen,
		)
	}

	return nil
}

func validateValue(v Value) error {
	var n int

	switch v := v.(type) {
	case String:
		n = len(v)
	case Bytes:
		n = len(v)
	default:
		return nil
	}

	if n > MaxValueLen {
		return fmt.Errorf(
			"%w: %s value is %d bytes, limit is %d",
			ErrValueTooLarge,
			v.Type(),
			n,
			MaxValueLen,
		)
	}

	return nil
}
