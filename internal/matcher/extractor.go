// Package matcher routes classified events to the value metrics consuming them.
package matcher

import (
	"fmt"
	"strconv"

	v1 "github.com/aevon-lab/telemetryd/internal/api/v1"
	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

// FieldExtractor derives dimension and condition keys from event fields
// according to a metric definition.
type FieldExtractor struct {
	dimensions []string
	condition  string
	links      []metric.ConditionLink
}

func NewFieldExtractor(def metric.Definition) *FieldExtractor {
	e := &FieldExtractor{dimensions: def.Dimensions}
	if def.Sliced() {
		e.condition = def.Condition
		e.links = def.ConditionLinks
	}
	return e
}

// Extract returns the event's dimension key and, for sliced conditions, the
// condition key linking it to one slice of the condition. Missing fields
// produce empty values.
func (e *FieldExtractor) Extract(event *v1.LogEvent) (metric.DimensionKey, metric.ConditionKey) {
	fields := make([]metric.DimensionField, 0, len(e.dimensions))
	for _, name := range e.dimensions {
		fields = append(fields, metric.DimensionField{Name: name, Value: fieldString(event, name)})
	}
	key := metric.NewDimensionKey(fields...)

	if e.condition == "" {
		return key, nil
	}
	linked := make([]metric.DimensionField, 0, len(e.links))
	for _, l := range e.links {
		linked = append(linked, metric.DimensionField{Name: l.ConditionField, Value: fieldString(event, l.EventField)})
	}
	return key, metric.ConditionKey{e.condition: metric.NewDimensionKey(linked...)}
}

func fieldString(event *v1.LogEvent, name string) string {
	v, ok := event.Field(name)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
