package metric

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingValueField is returned when an event lacks the configured value field.
	ErrMissingValueField = errors.New("missing value field")

	// ErrInvalidValue is returned when the value field is not an integral number.
	ErrInvalidValue = errors.New("invalid value")

	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// ExtractValue reads an integer value from fields.
// JSON numbers unmarshal to float64; they are accepted when integral.
// Numeric strings are parsed with decimal for exactness.
func ExtractValue(fields map[string]interface{}, field string) (int64, error) {
	if field == "" {
		return 0, ErrMissingValueField
	}
	v, ok := fields[field]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %q", ErrMissingValueField, field)
	}

	var d decimal.Decimal
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint32:
		return int64(val), nil
	case uint:
		d, _ = decimal.NewFromString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		d, _ = decimal.NewFromString(strconv.FormatUint(val, 10))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, fmt.Errorf("%w: %q is %v", ErrInvalidValue, field, val)
		}
		d = decimal.NewFromFloat(val)
	case float32:
		d = decimal.NewFromFloat32(val)
	case json.Number:
		parsed, err := decimal.NewFromString(val.String())
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidValue, field, err)
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(val)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidValue, field, err)
		}
		d = parsed
	default:
		return 0, fmt.Errorf("%w: %q has type %T", ErrInvalidValue, field, v)
	}

	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %q is not integral (%s)", ErrInvalidValue, field, d)
	}
	if d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		return 0, fmt.Errorf("%w: %q overflows int64 (%s)", ErrInvalidValue, field, d)
	}
	return d.IntPart(), nil
}
