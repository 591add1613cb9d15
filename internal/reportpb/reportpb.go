// Package reportpb encodes value metric reports in protobuf wire format.
//
//	message ValueMetricReport {
//	  string metric_name = 1;
//	  string report_id = 2;
//	  int64 start_report_nanos = 3;
//	  int64 end_report_nanos = 4;
//	  repeated ValueMetricData data = 5;
//	}
//	message ValueMetricData {
//	  repeated DimensionField dimension = 1;
//	  repeated ValueBucketInfo bucket_info = 2;
//	}
//	message DimensionField { string name = 1; string value = 2; }
//	message ValueBucketInfo {
//	  int64 start_bucket_nanos = 1;
//	  int64 end_bucket_nanos = 2;
//	  int64 value = 3;
//	  int64 sample_count = 4;
//	}
package reportpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

// ContentType is the media type of an encoded report.
const ContentType = "application/x-protobuf"

// Marshal encodes r.
func Marshal(r metric.Report) []byte {
	var b []byte
	b = appendString(b, 1, r.MetricName)
	b = appendString(b, 2, r.ReportID)
	b = appendInt64(b, 3, r.StartReportNs)
	b = appendInt64(b, 4, r.EndReportNs)
	for _, d := range r.Data {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalData(d))
	}
	return b
}

func marshalData(d metric.ValueMetricData) []byte {
	var b []byte
	for _, f := range d.Dimension.Fields() {
		var fb []byte
		fb = appendString(fb, 1, f.Name)
		fb = protowire.AppendTag(fb, 2, protowire.BytesType)
		fb = protowire.AppendString(fb, f.Value)
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, fb)
	}
	for _, bucket := range d.Buckets {
		var bb []byte
		bb = appendInt64(bb, 1, bucket.StartBucketNs)
		bb = appendInt64(bb, 2, bucket.EndBucketNs)
		bb = appendInt64(bb, 3, bucket.Value)
		bb = appendInt64(bb, 4, bucket.SampleCount)
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, bb)
	}
	return b
}

// appendString skips empty strings, as proto3 does.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// appendInt64 skips zero values, as proto3 does.
func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// Unmarshal decodes a report produced by Marshal. Unknown fields are skipped.
func Unmarshal(b []byte) (metric.Report, error) {
	var r metric.Report
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			r.MetricName = string(v)
		case num == 2 && typ == protowire.BytesType:
			r.ReportID = string(v)
		case num == 3 && typ == protowire.VarintType:
			r.StartReportNs = int64(u)
		case num == 4 && typ == protowire.VarintType:
			r.EndReportNs = int64(u)
		case num == 5 && typ == protowire.BytesType:
			d, err := unmarshalData(v)
			if err != nil {
				return err
			}
			r.Data = append(r.Data, d)
		}
		return nil
	})
	if err != nil {
		return metric.Report{}, fmt.Errorf("decoding report: %w", err)
	}
	return r, nil
}

func unmarshalData(b []byte) (metric.ValueMetricData, error) {
	var (
		d      metric.ValueMetricData
		fields []metric.DimensionField
	)
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			var f metric.DimensionField
			err := walk(v, func(n protowire.Number, t protowire.Type, fv []byte, _ uint64) error {
				if t != protowire.BytesType {
					return nil
				}
				switch n {
				case 1:
					f.Name = string(fv)
				case 2:
					f.Value = string(fv)
				}
				return nil
			})
			if err != nil {
				return err
			}
			fields = append(fields, f)
		case 2:
			var bucket metric.BucketInfo
			err := walk(v, func(n protowire.Number, t protowire.Type, _ []byte, u uint64) error {
				if t != protowire.VarintType {
					return nil
				}
				switch n {
				case 1:
					bucket.StartBucketNs = int64(u)
				case 2:
					bucket.EndBucketNs = int64(u)
				case 3:
					bucket.Value = int64(u)
				case 4:
					bucket.SampleCount = int64(u)
				}
				return nil
			})
			if err != nil {
				return err
			}
			d.Buckets = append(d.Buckets, bucket)
		}
		return nil
	})
	d.Dimension = metric.NewDimensionKey(fields...)
	return d, err
}

// walk calls fn for every field of a message. Length-delimited values are
// passed in v, varints in u; other wire types are skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var (
			v []byte
			u uint64
		)
		switch typ {
		case protowire.VarintType:
			u, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ == protowire.VarintType || typ == protowire.BytesType {
			if err := fn(num, typ, v, u); err != nil {
				return err
			}
		}
	}
	return nil
}
