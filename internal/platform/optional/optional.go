// Package optional carries patch fields that distinguish "not sent" from
// "sent as null" from "sent with a value".
package optional

import (
	"bytes"
	"encoding/json"
)

type state uint8

const (
	notProvided state = iota
	providedNull
	providedValue
)

// Value is the zero value when the JSON key is absent.
type Value[T any] struct {
	state state
	value T
}

func Some[T any](v T) Value[T] {
	return Value[T]{state: providedValue, value: v}
}

func Null[T any]() Value[T] {
	return Value[T]{state: providedNull}
}

func (v Value[T]) Provided() bool {
	return v.state != notProvided
}

func (v Value[T]) IsNull() bool {
	return v.state == providedNull
}

// Get returns the value and whether one was provided.
func (v Value[T]) Get() (T, bool) {
	return v.value, v.state == providedValue
}

// Ptr returns nil for both null and not provided.
func (v Value[T]) Ptr() *T {
	if v.state != providedValue {
		return nil
	}
	out := v.value
	return &out
}

// Apply writes the patch onto target: a value replaces, null clears and
// an absent field leaves target untouched.
func (v Value[T]) Apply(target **T) {
	switch v.state {
	case providedValue:
		out := v.value
		*target = &out
	case providedNull:
		*target = nil
	}
}

func (v *Value[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		v.state = providedNull
		v.value = zero
		return nil
	}
	var decoded T
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	v.state = providedValue
	v.value = decoded
	return nil
}

func (v Value[T]) MarshalJSON() ([]byte, error) {
	if v.state != providedValue {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}
