package pgtypes

import (
	"fmt"
)

// Encode converts a parameter Value to its wire form, choosing the type
// OID and transfer format from the variant. NULL encodes as the unknown
// type with nil data; the Bind writer turns nil into the -1 length marker.
func (r *Registry) Encode(v Value, p *Params) (oid uint32, format int16, data []byte, err error) {
	switch v.Kind {
	case KindNull:
		return OIDUnknown, formatBinary, nil, nil
	case KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return OIDBool, formatBinary, []byte{b}, nil
	case KindInt16:
		return OIDInt2, formatBinary, appendInt16(nil, int16(v.Int)), nil
	case KindInt32:
		return OIDInt4, formatBinary, appendInt32(nil, int32(v.Int)), nil
	case KindInt64:
		return OIDInt8, formatBinary, appendInt64(nil, v.Int), nil
	case KindFloat4:
		return OIDFloat4, formatBinary, appendInt32(nil, int32(float32bits(v.Float))), nil
	case KindFloat8:
		return OIDFloat8, formatBinary, appendInt64(nil, int64(float64bits(v.Float))), nil
	case KindText:
		data, err := encodeText(v.Str, p)
		if err != nil {
			return 0, 0, nil, err
		}
		return OIDText, formatText, data, nil
	case KindBytes:
		return OIDBytea, formatBinary, v.Bytes, nil
	case KindDate:
		data, err := encodeText(v.Time.Format("2006-01-02"), p)
		if err != nil {
			return 0, 0, nil, err
		}
		return OIDDate, formatText, data, nil
	case KindTime:
		data, err := encodeText(v.Time.Format("15:04:05.999999"), p)
		if err != nil {
			return 0, 0, nil, err
		}
		return OIDTime, formatText, data, nil
	case KindTimestamp:
		return OIDTimestamp, formatBinary, encodeTimestampWire(wallClockUTC(v.Time), p), nil
	case KindTimestampTz:
		return OIDTimestampTz, formatBinary, encodeTimestampWire(v.Time.UTC(), p), nil
	case KindInterval:
		return OIDInterval, formatBinary, encodeIntervalWire(v.Ival, p), nil
	case KindNumeric:
		return OIDNumeric, formatBinary, encodeNumericWire(v.Num), nil
	case KindUUID:
		u := v.UUID
		return OIDUUID, formatBinary, u[:], nil
	case KindArray:
		oid, data, err := encodeArrayWire(r, v, p)
		if err != nil {
			return 0, 0, nil, err
		}
		return oid, formatBinary, data, nil
	case KindUnknown:
		data, err := encodeText(v.Str, p)
		if err != nil {
			return 0, 0, nil, err
		}
		return OIDUnknown, formatText, data, nil
	}
	return 0, 0, nil, fmt.Errorf("no encoder for value kind %s", v.Kind)
}

// scalarOID returns the element type OID an array of the given kind uses.
func scalarOID(k Kind) (uint32, error) {
	switch k {
	case KindBool:
		return OIDBool, nil
	case KindInt16:
		return OIDInt2, nil
	case KindInt32:
		return OIDInt4, nil
	case KindInt64:
		return OIDInt8, nil
	case KindFloat4:
		return OIDFloat4, nil
	case KindFloat8:
		return OIDFloat8, nil
	case KindText:
		return OIDText, nil
	case KindBytes:
		return OIDBytea, nil
	case KindTimestamp:
		return OIDTimestamp, nil
	case KindTimestampTz:
		return OIDTimestampTz, nil
	case KindInterval:
		return OIDInterval, nil
	case KindNumeric:
		return OIDNumeric, nil
	case KindUUID:
		return OIDUUID, nil
	}
	return 0, fmt.Errorf("%s not supported as array contents", k)
}
