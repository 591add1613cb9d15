package metric

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DimensionField is one name=value component of a dimension key.
type DimensionField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DimensionKey identifies one slice of a metric's dimensions.
// It is comparable and safe to use as a map key. The zero value is the
// default key used by metrics without dimensions.
type DimensionKey struct {
	repr string
}

// DefaultDimensionKey is the key of an unsliced metric.
var DefaultDimensionKey = DimensionKey{}

// NewDimensionKey builds a key from fields in the order given.
// Field order is part of the identity, callers pass fields in definition order.
func NewDimensionKey(fields ...DimensionField) DimensionKey {
	if len(fields) == 0 {
		return DefaultDimensionKey
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		writeEscaped(&b, f.Name)
		b.WriteByte('=')
		writeEscaped(&b, f.Value)
	}
	return DimensionKey{repr: b.String()}
}

// ParseDimensionKey is the inverse of DimensionKey.String.
func ParseDimensionKey(s string) (DimensionKey, error) {
	if s == "" {
		return DefaultDimensionKey, nil
	}
	fields, err := splitFields(s)
	if err != nil {
		return DimensionKey{}, err
	}
	return NewDimensionKey(fields...), nil
}

// String returns the canonical form, e.g. "uid=1000,state=on".
func (k DimensionKey) String() string { return k.repr }

// IsDefault reports whether k is the key of an unsliced metric.
func (k DimensionKey) IsDefault() bool { return k.repr == "" }

// Hash returns a stable 64-bit hash of the key.
func (k DimensionKey) Hash() uint64 { return xxhash.Sum64String(k.repr) }

// Fields decodes the key back into its components.
func (k DimensionKey) Fields() []DimensionField {
	if k.repr == "" {
		return nil
	}
	fields, err := splitFields(k.repr)
	if err != nil {
		// keys are only built by NewDimensionKey, so repr is always well formed
		panic(err)
	}
	return fields
}

// Less orders keys by canonical form.
func (k DimensionKey) Less(o DimensionKey) bool { return k.repr < o.repr }

func (k DimensionKey) MarshalText() ([]byte, error) { return []byte(k.repr), nil }

func (k *DimensionKey) UnmarshalText(b []byte) error {
	parsed, err := ParseDimensionKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func writeEscaped(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', ',', '=':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
}

func splitFields(s string) ([]DimensionField, error) {
	var (
		fields  []DimensionField
		cur     strings.Builder
		name    string
		hasName bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return nil, fmt.Errorf("dimension key %q: dangling escape", s)
			}
			i++
			cur.WriteByte(s[i])
		case '=':
			if hasName {
				return nil, fmt.Errorf("dimension key %q: unexpected '='", s)
			}
			name, hasName = cur.String(), true
			cur.Reset()
		case ',':
			if !hasName {
				return nil, fmt.Errorf("dimension key %q: field without value", s)
			}
			fields = append(fields, DimensionField{Name: name, Value: cur.String()})
			cur.Reset()
			hasName = false
		default:
			cur.WriteByte(c)
		}
	}
	if !hasName {
		return nil, fmt.Errorf("dimension key %q: field without value", s)
	}
	return append(fields, DimensionField{Name: name, Value: cur.String()}), nil
}
