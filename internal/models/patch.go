package models

import "encoding/json"

// Field is a tri-state patch value: absent (no change requested), explicit
// null, or a concrete value. Absence is the zero value, so a patch struct
// decoded from JSON only has Set=true for keys present in the payload.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON marks the field present and distinguishes null from a value.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		f.Null = true
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

// MarshalJSON renders null for explicit nulls and the value otherwise.
// Absent fields should be skipped by the caller.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns the value as a pointer, nil when absent or null.
func (f Field[T]) Ptr() *T {
	if !f.Set || f.Null {
		return nil
	}
	v := f.Value
	return &v
}
