// Package secret provides a value wrapper for data that must never appear
// in logs or error strings: client secrets, signing key private material,
// master keys. Per the design notes, accidental inclusion in a %v or JSON
// encoding is a recurring class of bug; a dedicated type with a redacted
// String/Format and a single explicit accessor closes it off.
package secret

import "fmt"

// String holds a sensitive value. Its zero value is an empty secret.
type String struct {
	value string
}

// New wraps v as a secret value.
func New(v string) String { return String{value: v} }

// Expose returns the raw underlying value. This is the only way to read
// it back out; callers should not store the result beyond its immediate
// use.
func (s String) Expose() string { return s.value }

// String implements fmt.Stringer with a fixed redaction, so %s/%v never
// leak the value.
func (s String) String() string { return "[redacted]" }

// GoString implements fmt.GoStringer for the same reason %#v is used.
func (s String) GoString() string { return "secret.String([redacted])" }

// MarshalJSON redacts the value rather than ever serializing it, so a
// secret accidentally embedded in a struct that's JSON-encoded for
// logging does not leak.
func (s String) MarshalJSON() ([]byte, error) {
	return []byte(`"[redacted]"`), nil
}

var _ fmt.Stringer = String{}
