package pgtypes

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Wire format codes, mirroring the protocol's Bind/RowDescription values.
const (
	formatText   int16 = 0
	formatBinary int16 = 1
)

func decodeBool(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatBinary {
		if len(data) != 1 {
			return nil, fmt.Errorf("bool: want 1 byte, got %d", len(data))
		}
		return data[0] != 0, nil
	}
	switch string(data) {
	case "t", "true":
		return true, nil
	case "f", "false":
		return false, nil
	}
	return nil, fmt.Errorf("bool: bad text value %q", data)
}

func decodeInt2(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatBinary {
		if len(data) != 2 {
			return nil, fmt.Errorf("int2: want 2 bytes, got %d", len(data))
		}
		return int16(binary.BigEndian.Uint16(data)), nil
	}
	v, err := strconv.ParseInt(string(data), 10, 16)
	return int16(v), err
}

func decodeInt4(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatBinary {
		if len(data) != 4 {
			return nil, fmt.Errorf("int4: want 4 bytes, got %d", len(data))
		}
		return int32(binary.BigEndian.Uint32(data)), nil
	}
	v, err := strconv.ParseInt(string(data), 10, 32)
	return int32(v), err
}

func decodeInt8(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatBinary {
		if len(data) != 8 {
			return nil, fmt.Errorf("int8: want 8 bytes, got %d", len(data))
		}
		return int64(binary.BigEndian.Uint64(data)), nil
	}
	return strconv.ParseInt(string(data), 10, 64)
}

// oid values arrive in text format and fit an int64.
func decodeOid(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatBinary {
		if len(data) != 4 {
			return nil, fmt.Errorf("oid: want 4 bytes, got %d", len(data))
		}
		return int64(binary.BigEndian.Uint32(data)), nil
	}
	return strconv.ParseInt(string(data), 10, 64)
}

func decodeFloat4(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatBinary {
		if len(data) != 4 {
			return nil, fmt.Errorf("float4: want 4 bytes, got %d", len(data))
		}
		return math.Float32frombits(binary.BigEndian.Uint32(data)), nil
	}
	v, err := parseFloatText(string(data), 32)
	return float32(v), err
}

func decodeFloat8(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatBinary {
		if len(data) != 8 {
			return nil, fmt.Errorf("float8: want 8 bytes, got %d", len(data))
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
	}
	return parseFloatText(string(data), 64)
}

// parseFloatText accepts the server's spellings of the special values.
func parseFloatText(s string, bits int) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, bits)
}

func decodeString(_ *Registry, data []byte, _ int16, p *Params) (any, error) {
	return decodeText(data, p)
}

func decodeBytea(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatBinary {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	s := string(data)
	if strings.HasPrefix(s, `\x`) {
		return hex.DecodeString(s[2:])
	}
	return decodeByteaEscape(s)
}

// decodeByteaEscape handles the pre-9.0 "escape" output format.
func decodeByteaEscape(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			out = append(out, s[i])
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '\\' {
			out = append(out, '\\')
			i += 2
			continue
		}
		if i+3 >= len(s) {
			return nil, fmt.Errorf("bytea: truncated escape at %d", i)
		}
		n, err := strconv.ParseUint(s[i+1:i+4], 8, 8)
		if err != nil {
			return nil, fmt.Errorf("bytea: bad escape %q", s[i:i+4])
		}
		out = append(out, byte(n))
		i += 4
	}
	return out, nil
}

func decodeUUID(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatBinary {
		return uuid.FromBytes(data)
	}
	return uuid.Parse(string(data))
}

func float32bits(f float64) uint32 { return math.Float32bits(float32(f)) }
func float64bits(f float64) uint64 { return math.Float64bits(f) }

func appendInt16(b []byte, v int16) []byte {
	return binary.BigEndian.AppendUint16(b, uint16(v))
}

func appendInt32(b []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(v))
}

func appendInt64(b []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(v))
}
