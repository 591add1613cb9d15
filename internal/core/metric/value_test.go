package metric

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractValue(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]interface{}
		field   string
		want    int64
		wantErr error
	}{
		{name: "empty field name", fields: map[string]interface{}{"v": 1}, field: "", wantErr: ErrMissingValueField},
		{name: "missing field", fields: map[string]interface{}{"v": 1}, field: "other", wantErr: ErrMissingValueField},
		{name: "nil value", fields: map[string]interface{}{"v": nil}, field: "v", wantErr: ErrMissingValueField},
		{name: "int", fields: map[string]interface{}{"v": 7}, field: "v", want: 7},
		{name: "int32", fields: map[string]interface{}{"v": int32(-8)}, field: "v", want: -8},
		{name: "int64", fields: map[string]interface{}{"v": int64(9)}, field: "v", want: 9},
		{name: "uint64", fields: map[string]interface{}{"v": uint64(10)}, field: "v", want: 10},
		{name: "uint64 overflow", fields: map[string]interface{}{"v": uint64(math.MaxUint64)}, field: "v", wantErr: ErrInvalidValue},
		{name: "integral float64", fields: map[string]interface{}{"v": 42.0}, field: "v", want: 42},
		{name: "fractional float64", fields: map[string]interface{}{"v": 42.5}, field: "v", wantErr: ErrInvalidValue},
		{name: "NaN", fields: map[string]interface{}{"v": math.NaN()}, field: "v", wantErr: ErrInvalidValue},
		{name: "numeric string", fields: map[string]interface{}{"v": "123"}, field: "v", want: 123},
		{name: "integral decimal string", fields: map[string]interface{}{"v": "12.000"}, field: "v", want: 12},
		{name: "json number", fields: map[string]interface{}{"v": json.Number("77")}, field: "v", want: 77},
		{name: "garbage string", fields: map[string]interface{}{"v": "abc"}, field: "v", wantErr: ErrInvalidValue},
		{name: "bool", fields: map[string]interface{}{"v": true}, field: "v", wantErr: ErrInvalidValue},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractValue(tc.fields, tc.field)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
