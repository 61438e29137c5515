package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScalarKind(t *testing.T) {
	cases := map[string]ScalarKind{
		"bool":     KindBoolean,
		"Boolean":  KindBoolean,
		"float":    KindFloat,
		"NUMBER":   KindFloat,
		"int":      KindSignedInteger,
		"integer":  KindSignedInteger,
		"uint":     KindUnsignedInteger,
		"unsigned": KindUnsignedInteger,
		"string":   KindText,
		"text":     KindText,
		"":         KindUnspecified,
		"none":     KindUnspecified,
	}
	for name, want := range cases {
		got, err := ParseScalarKind(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseScalarKind("decimal")
	assert.EqualError(t, err, "unknown type: decimal")
}

func TestTypedValueAccessors(t *testing.T) {
	assert.Equal(t, KindBoolean, Boolean(true).Kind())
	assert.Equal(t, true, Boolean(true).Interface())
	assert.Equal(t, 1.5, Float(1.5).Interface())
	assert.Equal(t, int64(-3), SignedInteger(-3).Interface())
	assert.Equal(t, uint64(18446744073709551615), UnsignedInteger(18446744073709551615).Interface())
	assert.Equal(t, "foo", Text("foo").Interface())

	assert.Equal(t, "18446744073709551615", UnsignedInteger(18446744073709551615).String())
	assert.Equal(t, `"foo"`, Text("foo").String())
	assert.False(t, TypedValue{}.IsValid())
	assert.Nil(t, TypedValue{}.Interface())
}

func TestServiceErrorMessagesAndKind(t *testing.T) {
	selErr := SelectorError("Selector found more than one value: %d", 2)
	assert.Equal(t, "Error processing JSON path: Selector found more than one value: 2", selErr.Error())
	assert.True(t, selErr.ClientCaused())

	assert.Equal(t, "Failed processing payload: Unknown event payload", PayloadParseError("Unknown event payload").Error())
	assert.Equal(t, "Failed converted expected type: bad", ConversionError("bad").Error())

	cause := errors.New("connection refused")
	targetErr := TargetError(cause)
	assert.Equal(t, "Error connecting target: connection refused", targetErr.Error())
	assert.False(t, targetErr.ClientCaused())
	assert.ErrorIs(t, targetErr, cause)

	wrapped := fmt.Errorf("write row: %w", targetErr)
	assert.Equal(t, ErrorKindTarget, KindOf(wrapped))
	assert.Equal(t, ErrorKind(0), KindOf(cause))
	assert.Equal(t, ErrorCodeTarget, KindOf(wrapped).ErrorCode())
}
