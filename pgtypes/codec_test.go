package pgtypes

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// roundTrip encodes a value and decodes the wire bytes with the same
// params, returning the decoded Go value.
func roundTrip(t *testing.T, v Value, p *Params) any {
	t.Helper()
	r := Default()
	oid, format, data, err := r.Encode(v, p)
	require.NoError(t, err)
	out, err := r.Decode(oid, data, format, p)
	require.NoError(t, err)
	return out
}

func TestRoundTripBool(t *testing.T) {
	p := &Params{IntegerDatetimes: true}
	require.Equal(t, true, roundTrip(t, Bool(true), p))
	require.Equal(t, false, roundTrip(t, Bool(false), p))
}

func TestRoundTripInts(t *testing.T) {
	p := &Params{}
	require.Equal(t, int16(math.MinInt16), roundTrip(t, Int16(math.MinInt16), p))
	require.Equal(t, int16(math.MaxInt16), roundTrip(t, Int16(math.MaxInt16), p))
	require.Equal(t, int32(math.MinInt32), roundTrip(t, Int32(math.MinInt32), p))
	require.Equal(t, int32(math.MaxInt32), roundTrip(t, Int32(math.MaxInt32), p))
	require.Equal(t, int64(math.MinInt64), roundTrip(t, Int64(math.MinInt64), p))
	require.Equal(t, int64(math.MaxInt64), roundTrip(t, Int64(math.MaxInt64), p))
}

func TestRoundTripFloats(t *testing.T) {
	p := &Params{}
	require.Equal(t, float32(1.5), roundTrip(t, Float4(1.5), p))
	require.Equal(t, 3.141592653589793, roundTrip(t, Float8(3.141592653589793), p))
	require.True(t, math.IsNaN(roundTrip(t, Float8(math.NaN()), p).(float64)))
	require.True(t, math.IsInf(roundTrip(t, Float8(math.Inf(1)), p).(float64), 1))
	require.True(t, math.IsInf(roundTrip(t, Float8(math.Inf(-1)), p).(float64), -1))
}

func TestRoundTripNull(t *testing.T) {
	p := &Params{}
	require.Nil(t, roundTrip(t, Null(), p))
}

func TestRoundTripText(t *testing.T) {
	p := &Params{ClientEncoding: "UTF8"}
	require.Equal(t, "héllo wörld", roundTrip(t, Text("héllo wörld"), p))
	require.Equal(t, "", roundTrip(t, Text(""), p))
}

func TestTextLatin1Encoding(t *testing.T) {
	p := &Params{ClientEncoding: "latin1"}
	r := Default()
	_, _, data, err := r.Encode(Text("café"), p)
	require.NoError(t, err)
	require.Equal(t, []byte{'c', 'a', 'f', 0xe9}, data)

	out, err := r.Decode(OIDText, data, formatText, p)
	require.NoError(t, err)
	require.Equal(t, "café", out)
}

func TestRoundTripBytea(t *testing.T) {
	p := &Params{}
	require.Equal(t, []byte{0, 1, 2, 0xff}, roundTrip(t, Bytea([]byte{0, 1, 2, 0xff}), p))
	require.Equal(t, []byte{}, roundTrip(t, Bytea([]byte{}), p))
}

func TestDecodeByteaText(t *testing.T) {
	r := Default()
	out, err := r.Decode(OIDBytea, []byte(`\x00ff10`), formatText, &Params{})
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0xff, 0x10}, out)

	out, err = r.Decode(OIDBytea, []byte(`a\\b\001`), formatText, &Params{})
	require.NoError(t, err)
	require.Equal(t, []byte{'a', '\\', 'b', 1}, out)
}

func TestRoundTripUUID(t *testing.T) {
	p := &Params{}
	u := uuid.MustParse("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")
	require.Equal(t, u, roundTrip(t, UUIDValue(u), p))
}

func TestRoundTripNumeric(t *testing.T) {
	p := &Params{}
	for _, s := range []string{
		"0", "1", "-1", "1234.5678", "-0.00042",
		"10000", "99999999999999999999.9999999999",
		"0.0001", "123456789012345678901234567890",
	} {
		d := decimal.RequireFromString(s)
		out := roundTrip(t, Numeric(d), p)
		require.IsType(t, decimal.Decimal{}, out)
		require.True(t, d.Equal(out.(decimal.Decimal)), "value %s decoded as %s", s, out)
	}
}

func TestRoundTripTimestamp(t *testing.T) {
	for _, intDT := range []bool{true, false} {
		p := &Params{IntegerDatetimes: intDT}
		ts := time.Date(2024, time.March, 15, 9, 30, 45, 123456000, time.UTC)
		out := roundTrip(t, Timestamp(ts), p)
		require.Equal(t, ts, out, "integer_datetimes=%v", intDT)
	}
}

func TestRoundTripTimestampTzConvertsToUTC(t *testing.T) {
	p := &Params{IntegerDatetimes: true}
	loc := time.FixedZone("X", -4*3600)
	ts := time.Date(2024, time.March, 15, 9, 30, 45, 0, loc)
	out := roundTrip(t, TimestampTz(ts), p)
	require.Equal(t, ts.UTC(), out)
}

func TestRoundTripDate(t *testing.T) {
	p := &Params{DateStyle: "ISO, MDY"}
	d := time.Date(1999, time.December, 31, 0, 0, 0, 0, time.UTC)
	require.Equal(t, d, roundTrip(t, Date(d), p))
}

func TestRoundTripTimeOfDay(t *testing.T) {
	p := &Params{}
	tod := time.Date(0, time.January, 1, 23, 59, 59, 999999000, time.UTC)
	require.Equal(t, tod, roundTrip(t, TimeOfDay(tod), p))
}

func TestRoundTripInterval(t *testing.T) {
	for _, intDT := range []bool{true, false} {
		p := &Params{IntegerDatetimes: intDT}
		iv := Interval{Microseconds: 3_723_000_000, Days: -3, Months: 14}
		require.Equal(t, iv, roundTrip(t, IntervalValue(iv), p), "integer_datetimes=%v", intDT)
	}
}

func TestDecodeBinaryDate(t *testing.T) {
	r := Default()
	out, err := r.Decode(OIDDate, appendInt32(nil, 1), formatBinary, &Params{})
	require.NoError(t, err)
	require.Equal(t, time.Date(2000, time.January, 2, 0, 0, 0, 0, time.UTC), out)
}

func TestDecodeTimestampTextISO(t *testing.T) {
	r := Default()
	p := &Params{DateStyle: "ISO, MDY"}
	out, err := r.Decode(OIDTimestamp, []byte("2024-03-15 09:30:45.123456"), formatText, p)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.March, 15, 9, 30, 45, 123456000, time.UTC), out)
}

func TestDecodeTimestampTextNonISOFails(t *testing.T) {
	r := Default()
	p := &Params{DateStyle: "German, DMY"}
	_, err := r.Decode(OIDTimestamp, []byte("15.03.2024 09:30:45"), formatText, p)
	require.Error(t, err)
}

func TestDecodeIntervalText(t *testing.T) {
	r := Default()
	out, err := r.Decode(OIDInterval, []byte("1 year 2 mons 3 days 04:05:06.5"), formatText, &Params{})
	require.NoError(t, err)
	require.Equal(t, Interval{
		Months:       14,
		Days:         3,
		Microseconds: (4*3600+5*60+6)*1_000_000 + 500_000,
	}, out)
}

func TestUnknownOIDFallsBackToString(t *testing.T) {
	r := Default()
	out, err := r.Decode(99999, []byte("whatever"), formatText, &Params{})
	require.NoError(t, err)
	require.Equal(t, "whatever", out)
	require.False(t, r.Known(99999))
}

func TestDecodeNumericNaN(t *testing.T) {
	r := Default()
	// ndigits=0, weight=0, sign=NaN, dscale=0
	data := []byte{0, 0, 0, 0, 0xc0, 0x00, 0, 0}
	out, err := r.Decode(OIDNumeric, data, formatBinary, &Params{})
	require.NoError(t, err)
	require.Equal(t, "NaN", out)
}

func TestFloatBinaryNonIntegerDatetimeTimestamp(t *testing.T) {
	p := &Params{IntegerDatetimes: false}
	ts := time.Date(2001, time.June, 1, 12, 0, 0, 0, time.UTC)
	out := roundTrip(t, Timestamp(ts), p)
	require.Equal(t, ts, out)
}
