// Package coerce converts selected JSON values into the closed set of column kinds.
package coerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

// ErrMissingValue is returned when a value cannot be taken natively as the
// requested kind and no fallback parse applies. It is not a ServiceError: the
// caller decides whether absence is acceptable.
var ErrMissingValue = errors.New("missing value")

const (
	twoTo63 = 9223372036854775808.0
	twoTo64 = 18446744073709551616.0
)

// Coerce converts a value produced by DecodeJSON into kind. With allowFallback,
// a string that is not natively of the kind is parsed into it; a failed parse is
// a Conversion error.
func Coerce(value interface{}, kind models.ScalarKind, allowFallback bool) (models.TypedValue, error) {
	if n, ok := value.(json.Number); ok {
		normalized, err := normalizeNumber(n)
		if err != nil {
			return models.TypedValue{}, models.PayloadParseError("%v", err)
		}
		value = normalized
	}

	if kind == models.KindUnspecified {
		return Infer(value)
	}

	if v, ok := native(value, kind); ok {
		return v, nil
	}

	s, isString := value.(string)
	if !allowFallback || !isString {
		return models.TypedValue{}, ErrMissingValue
	}

	v, err := parse(s, kind)
	if err != nil {
		return models.TypedValue{}, models.ConversionError("Failed to convert from: %q", s)
	}
	return v, nil
}

// Infer maps a JSON value to the kind matching its own JSON type.
func Infer(value interface{}) (models.TypedValue, error) {
	switch v := value.(type) {
	case bool:
		return models.Boolean(v), nil
	case string:
		return models.Text(v), nil
	case float64:
		return models.Float(v), nil
	case int64:
		return models.SignedInteger(v), nil
	case uint64:
		if v <= math.MaxInt64 {
			return models.SignedInteger(int64(v)), nil
		}
		return models.UnsignedInteger(v), nil
	default:
		return models.TypedValue{}, models.PayloadParseError("Invalid value type selected - value: %s", describe(value))
	}
}

func native(value interface{}, kind models.ScalarKind) (models.TypedValue, bool) {
	switch kind {
	case models.KindBoolean:
		if b, ok := value.(bool); ok {
			return models.Boolean(b), true
		}
	case models.KindText:
		if s, ok := value.(string); ok {
			return models.Text(s), true
		}
	case models.KindFloat:
		switch v := value.(type) {
		case float64:
			return models.Float(v), true
		case int64:
			f := float64(v)
			if f >= -twoTo63 && f < twoTo63 && int64(f) == v {
				return models.Float(f), true
			}
		case uint64:
			f := float64(v)
			if f < twoTo64 && uint64(f) == v {
				return models.Float(f), true
			}
		}
	case models.KindSignedInteger:
		switch v := value.(type) {
		case int64:
			return models.SignedInteger(v), true
		case uint64:
			if v <= math.MaxInt64 {
				return models.SignedInteger(int64(v)), true
			}
		}
	case models.KindUnsignedInteger:
		switch v := value.(type) {
		case uint64:
			return models.UnsignedInteger(v), true
		case int64:
			if v >= 0 {
				return models.UnsignedInteger(uint64(v)), true
			}
		}
	}
	return models.TypedValue{}, false
}

func parse(s string, kind models.ScalarKind) (models.TypedValue, error) {
	switch kind {
	case models.KindBoolean:
		b, err := strconv.ParseBool(s)
		return models.Boolean(b), err
	case models.KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		return models.Float(f), err
	case models.KindSignedInteger:
		i, err := strconv.ParseInt(s, 10, 64)
		return models.SignedInteger(i), err
	case models.KindUnsignedInteger:
		u, err := strconv.ParseUint(s, 10, 64)
		return models.UnsignedInteger(u), err
	case models.KindText:
		return models.Text(s), nil
	default:
		return models.TypedValue{}, fmt.Errorf("no parser for kind %s", kind)
	}
}

func describe(value interface{}) string {
	if value == nil {
		return "null"
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}
