package stash

import (
	"encoding/json"
	"fmt"
)

// envelope is the storage representation of a [Value].
//
// Exactly one payload field is populated, according to Type. The encoded
// form is never empty, which keeps it distinguishable from an absent key
// in every driver.
type envelope struct {
	Type   Type     `json:"t"`
	Bool   *bool    `json:"b,omitempty"`
	Int    *int64   `json:"i,omitempty"`
	Float  *float64 `json:"f,omitempty"`
	String *string  `json:"s,omitempty"`
	Bytes  []byte   `json:"d,omitempty"`
}

func marshalValue(v Value) ([]byte, error) {
	env := envelope{Type: v.Type()}

	switch v := v.(type) {
	case Bool:
		b := bool(v)
		env.Bool = &b
	case Int:
		n := int64(v)
		env.Int = &n
	case Float:
		f := float64(v)
		env.Float = &f
	case String:
		s := string(v)
		env.String = &s
	case Bytes:
		env.Bytes = v
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}

	return json.Marshal(env)
}

func unmarshalValue(data []byte) (Value, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("value is corrupt: %w", err)
	}

	switch env.Type {
	case TypeBool:
		if env.Bool != nil {
			return Bool(*env.Bool), nil
		}
	case TypeInt:
		if env.Int != nil {
			return Int(*env.Int), nil
		}
	case TypeFloat:
		if env.Float != nil {
			return Float(*env.Float), nil
		}
	case TypeString:
		if env.String != nil {
			return String(*env.String), nil
		}
	case TypeBytes:
		return Bytes(env.Bytes), nil
	}

	return nil, fmt.Errorf("value is corrupt: no payload for %s", env.Type)
}
