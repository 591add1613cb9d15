package metric

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionKey_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		fields []DimensionField
		want   string
	}{
		{name: "default", fields: nil, want: ""},
		{name: "single", fields: []DimensionField{{"uid", "1000"}}, want: "uid=1000"},
		{name: "ordered", fields: []DimensionField{{"uid", "1000"}, {"state", "on"}}, want: "uid=1000,state=on"},
		{name: "escaped", fields: []DimensionField{{"pkg", "a,b=c\\d"}}, want: `pkg=a\,b\=c\\d`},
		{name: "empty value", fields: []DimensionField{{"tag", ""}}, want: "tag="},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key := NewDimensionKey(tc.fields...)
			require.Equal(t, tc.want, key.String())
			require.Equal(t, tc.fields, key.Fields())

			parsed, err := ParseDimensionKey(key.String())
			require.NoError(t, err)
			require.Equal(t, key, parsed)
		})
	}
}

func TestDimensionKey_Comparable(t *testing.T) {
	a := NewDimensionKey(DimensionField{"uid", "1"})
	b := NewDimensionKey(DimensionField{"uid", "1"})
	c := NewDimensionKey(DimensionField{"uid", "2"})

	m := map[DimensionKey]int{a: 1}
	m[b]++
	assert.Equal(t, 2, m[a])
	assert.NotEqual(t, a, c)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.True(t, a.Less(c))
	assert.True(t, DefaultDimensionKey.IsDefault())
}

func TestParseDimensionKey_Invalid(t *testing.T) {
	for _, s := range []string{"novalue", "a=1,b", `a=1\`, "a=1=2"} {
		_, err := ParseDimensionKey(s)
		assert.Error(t, err, s)
	}
}

func TestDimensionKey_JSONMapKey(t *testing.T) {
	key := NewDimensionKey(DimensionField{"uid", "1000"})
	data, err := json.Marshal(map[DimensionKey]int{key: 3})
	require.NoError(t, err)
	require.JSONEq(t, `{"uid=1000": 3}`, string(data))

	var decoded map[DimensionKey]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, 3, decoded[key])
}
