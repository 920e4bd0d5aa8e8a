package pgtypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustFromGo(t *testing.T, v any) Value {
	t.Helper()
	val, err := FromGo(v)
	require.NoError(t, err)
	return val
}

func TestArrayRoundTripIntsWithNull(t *testing.T) {
	r := Default()
	p := &Params{}
	v := mustFromGo(t, []any{1, 2, nil, 4})
	oid, format, data, err := r.Encode(v, p)
	require.NoError(t, err)
	require.Equal(t, OIDInt2Array, oid)
	require.Equal(t, formatBinary, format)

	out, err := r.Decode(oid, data, format, p)
	require.NoError(t, err)
	require.Equal(t, []any{int16(1), int16(2), nil, int16(4)}, out)
}

func TestArrayIntWideningAppliesToAllElements(t *testing.T) {
	r := Default()
	v := mustFromGo(t, []any{1, int64(1) << 40})
	oid, _, data, err := r.Encode(v, &Params{})
	require.NoError(t, err)
	require.Equal(t, OIDInt8Array, oid)

	out, err := r.Decode(oid, data, formatBinary, &Params{})
	require.NoError(t, err)
	require.Equal(t, []any{int64(1), int64(1) << 40}, out)
}

func TestArrayRoundTripNested(t *testing.T) {
	r := Default()
	v := mustFromGo(t, []any{
		[]any{"a", nil},
		[]any{"c", "d"},
	})
	oid, _, data, err := r.Encode(v, &Params{})
	require.NoError(t, err)
	require.Equal(t, OIDTextArray, oid)

	out, err := r.Decode(oid, data, formatBinary, &Params{})
	require.NoError(t, err)
	require.Equal(t, []any{
		[]any{"a", nil},
		[]any{"c", "d"},
	}, out)
}

func TestArrayRoundTripEmpty(t *testing.T) {
	r := Default()
	v := Array(nil)
	oid, _, data, err := r.Encode(v, &Params{})
	require.NoError(t, err)

	out, err := r.Decode(oid, data, formatBinary, &Params{})
	require.NoError(t, err)
	require.Equal(t, []any{}, out)
}

func TestArrayInconsistentDimensionsRejected(t *testing.T) {
	r := Default()
	v := mustFromGo(t, []any{
		[]any{1, 2},
		[]any{3},
	})
	_, _, _, err := r.Encode(v, &Params{})
	require.ErrorContains(t, err, "dimensions not consistent")
}

func TestArrayMixedScalarAndNestedRejected(t *testing.T) {
	r := Default()
	v := mustFromGo(t, []any{[]any{1}, 2})
	_, _, _, err := r.Encode(v, &Params{})
	require.ErrorContains(t, err, "dimensions not consistent")
}

func TestArrayHeterogeneousRejected(t *testing.T) {
	r := Default()
	v := mustFromGo(t, []any{1, "two"})
	_, _, _, err := r.Encode(v, &Params{})
	require.ErrorContains(t, err, "not homogeneous")
}

func TestArrayTextDecode(t *testing.T) {
	r := Default()
	out, err := r.Decode(OIDInt4Array, []byte("{1,2,NULL,4}"), formatText, &Params{})
	require.NoError(t, err)
	require.Equal(t, []any{int32(1), int32(2), nil, int32(4)}, out)
}

func TestArrayTextDecodeQuotedStrings(t *testing.T) {
	r := Default()
	out, err := r.Decode(OIDTextArray, []byte(`{"a b","c\"d",NULL,plain}`), formatText, &Params{})
	require.NoError(t, err)
	require.Equal(t, []any{"a b", `c"d`, nil, "plain"}, out)
}

func TestArrayTextDecodeNested(t *testing.T) {
	r := Default()
	out, err := r.Decode(OIDInt4Array, []byte("{{1,2},{3,4}}"), formatText, &Params{})
	require.NoError(t, err)
	require.Equal(t, []any{
		[]any{int32(1), int32(2)},
		[]any{int32(3), int32(4)},
	}, out)
}

func TestArrayTextDecodeEmpty(t *testing.T) {
	r := Default()
	out, err := r.Decode(OIDInt4Array, []byte("{}"), formatText, &Params{})
	require.NoError(t, err)
	require.Equal(t, []any{}, out)
}

func TestArrayDateElementsRejected(t *testing.T) {
	r := Default()
	v := Array([]Value{Date(pgEpoch)})
	_, _, _, err := r.Encode(v, &Params{})
	require.ErrorContains(t, err, "not supported as array contents")
}
