package pgtypes

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt16
	KindInt32
	KindInt64
	KindFloat4
	KindFloat8
	KindText
	KindBytes
	KindDate
	KindTime
	KindTimestamp
	KindTimestampTz
	KindInterval
	KindNumeric
	KindUUID
	KindArray
	KindUnknown
)

var kindNames = map[Kind]string{
	KindNull:        "null",
	KindBool:        "bool",
	KindInt16:       "int16",
	KindInt32:       "int32",
	KindInt64:       "int64",
	KindFloat4:      "float4",
	KindFloat8:      "float8",
	KindText:        "text",
	KindBytes:       "bytes",
	KindDate:        "date",
	KindTime:        "time",
	KindTimestamp:   "timestamp",
	KindTimestampTz: "timestamptz",
	KindInterval:    "interval",
	KindNumeric:     "numeric",
	KindUUID:        "uuid",
	KindArray:       "array",
	KindUnknown:     "unknown",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Interval mirrors PostgreSQL's interval: a month/day/microsecond triple.
// The components are not normalized against each other, matching the
// server's own representation.
type Interval struct {
	Microseconds int64
	Days         int32
	Months       int32
}

// Value is a tagged variant carrying one statement parameter. Encoders
// dispatch on Kind; only the field matching Kind is meaningful.
type Value struct {
	Kind Kind

	Bool    bool
	Int     int64
	Float   float64
	Str     string
	Bytes   []byte
	Time    time.Time
	Ival    Interval
	Num     decimal.Decimal
	UUID    uuid.UUID
	Elems   []Value // KindArray
	ElemOID uint32  // KindArray: element OID override, 0 = infer
}

// Constructors for each variant.

func Null() Value                 { return Value{Kind: KindNull} }
func Bool(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func Int16(v int16) Value         { return Value{Kind: KindInt16, Int: int64(v)} }
func Int32(v int32) Value         { return Value{Kind: KindInt32, Int: int64(v)} }
func Int64(v int64) Value         { return Value{Kind: KindInt64, Int: v} }
func Float4(v float32) Value      { return Value{Kind: KindFloat4, Float: float64(v)} }
func Float8(v float64) Value      { return Value{Kind: KindFloat8, Float: v} }
func Text(s string) Value         { return Value{Kind: KindText, Str: s} }
func Bytea(b []byte) Value        { return Value{Kind: KindBytes, Bytes: b} }
func Date(t time.Time) Value      { return Value{Kind: KindDate, Time: t} }
func TimeOfDay(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// Timestamp carries a wall-clock timestamp without time zone; its
// wall-clock reading is sent as-is, no zone conversion happens on the wire.
func Timestamp(t time.Time) Value { return Value{Kind: KindTimestamp, Time: t} }

// TimestampTz carries an absolute instant; it is sent to the server in UTC.
func TimestampTz(t time.Time) Value { return Value{Kind: KindTimestampTz, Time: t} }

func IntervalValue(iv Interval) Value { return Value{Kind: KindInterval, Ival: iv} }
func Numeric(d decimal.Decimal) Value { return Value{Kind: KindNumeric, Num: d} }
func UUIDValue(u uuid.UUID) Value { return Value{Kind: KindUUID, UUID: u} }
func Array(elems []Value) Value { return Value{Kind: KindArray, Elems: elems} }
func Unknown(s string) Value { return Value{Kind: KindUnknown, Str: s} }

// FromGo converts a native Go value into a Value. Integers narrow to the
// smallest sufficient variant; strings map to text; []byte maps to bytea;
// time.Time maps to timestamptz (wrap with Timestamp for the zone-less
// type). Slices become arrays, converting each element.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return narrowInt(int64(x)), nil
	case int8:
		return Int16(int16(x)), nil
	case int16:
		return Int16(x), nil
	case int32:
		return Int32(x), nil
	case int64:
		return narrowInt(x), nil
	case uint:
		return narrowUint(uint64(x))
	case uint8:
		return Int16(int16(x)), nil
	case uint16:
		return Int32(int32(x)), nil
	case uint32:
		return Int64(int64(x)), nil
	case uint64:
		return narrowUint(x)
	case float32:
		return Float4(x), nil
	case float64:
		return Float8(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Bytea(x), nil
	case time.Time:
		return TimestampTz(x), nil
	case time.Duration:
		return IntervalValue(Interval{Microseconds: x.Microseconds()}), nil
	case Interval:
		return IntervalValue(x), nil
	case decimal.Decimal:
		return Numeric(x), nil
	case uuid.UUID:
		return UUIDValue(x), nil
	case []any:
		return sliceToArray(x)
	case []int:
		anys := make([]any, len(x))
		for i, e := range x {
			anys[i] = e
		}
		return sliceToArray(anys)
	case []int64:
		anys := make([]any, len(x))
		for i, e := range x {
			anys[i] = e
		}
		return sliceToArray(anys)
	case []string:
		anys := make([]any, len(x))
		for i, e := range x {
			anys[i] = e
		}
		return sliceToArray(anys)
	case []float64:
		anys := make([]any, len(x))
		for i, e := range x {
			anys[i] = e
		}
		return sliceToArray(anys)
	case []bool:
		anys := make([]any, len(x))
		for i, e := range x {
			anys[i] = e
		}
		return sliceToArray(anys)
	}
	return Value{}, fmt.Errorf("no parameter mapping for Go type %T", v)
}

func narrowInt(v int64) Value {
	switch {
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return Int16(int16(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return Int32(int32(v))
	default:
		return Int64(v)
	}
}

func narrowUint(v uint64) (Value, error) {
	if v > math.MaxInt64 {
		return Value{}, fmt.Errorf("unsigned value %d overflows int8", v)
	}
	return narrowInt(int64(v)), nil
}

func sliceToArray(elems []any) (Value, error) {
	vals := make([]Value, len(elems))
	for i, e := range elems {
		v, err := FromGo(e)
		if err != nil {
			return Value{}, fmt.Errorf("array element %d: %w", i, err)
		}
		vals[i] = v
	}
	return Array(vals), nil
}

// IsNull reports whether the value is the SQL NULL variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }
