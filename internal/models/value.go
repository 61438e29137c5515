package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ScalarKind is the target type configured for an extracted value.
type ScalarKind int

const (
	// KindUnspecified infers the kind from the JSON value itself.
	KindUnspecified ScalarKind = iota
	KindBoolean
	KindFloat
	KindSignedInteger
	KindUnsignedInteger
	KindText
)

func (k ScalarKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindFloat:
		return "float"
	case KindSignedInteger:
		return "integer"
	case KindUnsignedInteger:
		return "unsigned"
	case KindText:
		return "text"
	default:
		return "none"
	}
}

// ParseScalarKind maps a configured type name to its ScalarKind.
// An empty name means KindUnspecified.
func ParseScalarKind(name string) (ScalarKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bool", "boolean":
		return KindBoolean, nil
	case "float", "number":
		return KindFloat, nil
	case "int", "integer":
		return KindSignedInteger, nil
	case "uint", "unsigned":
		return KindUnsignedInteger, nil
	case "string", "text":
		return KindText, nil
	case "", "none":
		return KindUnspecified, nil
	default:
		return KindUnspecified, fmt.Errorf("unknown type: %s", name)
	}
}

// TypedValue is a single extracted column value. Exactly one of the payload
// fields is meaningful, selected by Kind. The zero value is not valid.
type TypedValue struct {
	kind ScalarKind
	b    bool
	f    float64
	i    int64
	u    uint64
	s    string
}

func Boolean(v bool) TypedValue           { return TypedValue{kind: KindBoolean, b: v} }
func Float(v float64) TypedValue          { return TypedValue{kind: KindFloat, f: v} }
func SignedInteger(v int64) TypedValue    { return TypedValue{kind: KindSignedInteger, i: v} }
func UnsignedInteger(v uint64) TypedValue { return TypedValue{kind: KindUnsignedInteger, u: v} }
func Text(v string) TypedValue            { return TypedValue{kind: KindText, s: v} }

// Kind never returns KindUnspecified for a value built by one of the constructors.
func (v TypedValue) Kind() ScalarKind { return v.kind }

func (v TypedValue) Bool() bool     { return v.b }
func (v TypedValue) Float() float64 { return v.f }
func (v TypedValue) Int() int64     { return v.i }
func (v TypedValue) Uint() uint64   { return v.u }
func (v TypedValue) Text() string   { return v.s }
func (v TypedValue) IsValid() bool  { return v.kind != KindUnspecified }

// Interface returns the value as a plain Go value.
func (v TypedValue) Interface() interface{} {
	switch v.kind {
	case KindBoolean:
		return v.b
	case KindFloat:
		return v.f
	case KindSignedInteger:
		return v.i
	case KindUnsignedInteger:
		return v.u
	case KindText:
		return v.s
	default:
		return nil
	}
}

func (v TypedValue) String() string {
	switch v.kind {
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindSignedInteger:
		return strconv.FormatInt(v.i, 10)
	case KindUnsignedInteger:
		return strconv.FormatUint(v.u, 10)
	case KindText:
		return strconv.Quote(v.s)
	default:
		return "<invalid>"
	}
}
