package pgtypes

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PostgreSQL's date/time epoch: 2000-01-01 00:00:00 UTC.
var pgEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	microsPerSec = 1_000_000
	secsPerDay   = 86_400
)

// Binary timestamps are 64-bit microseconds since the epoch when the server
// reports integer_datetimes=on, and IEEE-754 seconds otherwise. The choice
// is made per decode from Params, never baked into the registry.
func decodeTimestamp(_ *Registry, data []byte, format int16, p *Params) (any, error) {
	if format == formatText {
		return parseTimestampText(string(data), p, false)
	}
	if len(data) != 8 {
		return nil, fmt.Errorf("timestamp: want 8 bytes, got %d", len(data))
	}
	return binaryTimestamp(data, p), nil
}

func decodeTimestampTz(_ *Registry, data []byte, format int16, p *Params) (any, error) {
	if format == formatText {
		return parseTimestampText(string(data), p, true)
	}
	if len(data) != 8 {
		return nil, fmt.Errorf("timestamptz: want 8 bytes, got %d", len(data))
	}
	return binaryTimestamp(data, p), nil
}

func binaryTimestamp(data []byte, p *Params) time.Time {
	if p != nil && !p.IntegerDatetimes {
		secs := math.Float64frombits(binary.BigEndian.Uint64(data))
		return pgEpoch.Add(time.Duration(secs * float64(time.Second)))
	}
	micros := int64(binary.BigEndian.Uint64(data))
	return pgEpoch.Add(time.Duration(micros) * time.Microsecond)
}

func decodeDate(_ *Registry, data []byte, format int16, p *Params) (any, error) {
	if format == formatBinary {
		if len(data) != 4 {
			return nil, fmt.Errorf("date: want 4 bytes, got %d", len(data))
		}
		days := int32(binary.BigEndian.Uint32(data))
		return pgEpoch.AddDate(0, 0, int(days)), nil
	}
	if err := requireISO(p); err != nil {
		return nil, err
	}
	t, err := time.ParseInLocation("2006-01-02", string(data), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	return t, nil
}

func decodeTime(_ *Registry, data []byte, format int16, p *Params) (any, error) {
	if format == formatBinary {
		if len(data) != 8 {
			return nil, fmt.Errorf("time: want 8 bytes, got %d", len(data))
		}
		var micros int64
		if p != nil && !p.IntegerDatetimes {
			micros = int64(math.Float64frombits(binary.BigEndian.Uint64(data)) * microsPerSec)
		} else {
			micros = int64(binary.BigEndian.Uint64(data))
		}
		return clockTime(micros), nil
	}
	for _, layout := range []string{"15:04:05.999999", "15:04:05"} {
		if t, err := time.ParseInLocation(layout, string(data), time.UTC); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("time: bad text value %q", data)
}

func clockTime(micros int64) time.Time {
	sec := micros / microsPerSec
	return time.Date(0, time.January, 1,
		int(sec/3600), int(sec/60%60), int(sec%60),
		int(micros%microsPerSec)*1000, time.UTC)
}

func decodeInterval(_ *Registry, data []byte, format int16, p *Params) (any, error) {
	if format == formatText {
		return parseIntervalText(string(data))
	}
	if len(data) != 16 {
		return nil, fmt.Errorf("interval: want 16 bytes, got %d", len(data))
	}
	var micros int64
	if p != nil && !p.IntegerDatetimes {
		micros = int64(math.Float64frombits(binary.BigEndian.Uint64(data)) * microsPerSec)
	} else {
		micros = int64(binary.BigEndian.Uint64(data))
	}
	return Interval{
		Microseconds: micros,
		Days:         int32(binary.BigEndian.Uint32(data[8:12])),
		Months:       int32(binary.BigEndian.Uint32(data[12:16])),
	}, nil
}

func requireISO(p *Params) error {
	if p == nil || p.DateStyle == "" || strings.HasPrefix(p.DateStyle, "ISO") {
		return nil
	}
	return fmt.Errorf("text decoding supports only ISO DateStyle, server uses %q", p.DateStyle)
}

var timestampTextLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

var timestampTzTextLayouts = []string{
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05.999999Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
}

func parseTimestampText(s string, p *Params, withTz bool) (time.Time, error) {
	if err := requireISO(p); err != nil {
		return time.Time{}, err
	}
	layouts := timestampTextLayouts
	if withTz {
		layouts = timestampTzTextLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: bad text value %q", s)
}

// parseIntervalText handles the server's default "postgres" output style,
// e.g. "1 year 2 mons -3 days 04:05:06.789".
func parseIntervalText(s string) (Interval, error) {
	var iv Interval
	fields := strings.Fields(s)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if strings.Contains(f, ":") {
			neg := strings.HasPrefix(f, "-")
			f = strings.TrimPrefix(f, "-")
			parts := strings.SplitN(f, ":", 3)
			if len(parts) != 3 {
				return Interval{}, fmt.Errorf("interval: bad clock %q", f)
			}
			h, err1 := strconv.ParseInt(parts[0], 10, 64)
			m, err2 := strconv.ParseInt(parts[1], 10, 64)
			sec, err3 := strconv.ParseFloat(parts[2], 64)
			if err1 != nil || err2 != nil || err3 != nil {
				return Interval{}, fmt.Errorf("interval: bad clock %q", f)
			}
			micros := h*3600*microsPerSec + m*60*microsPerSec + int64(sec*microsPerSec)
			if neg {
				micros = -micros
			}
			iv.Microseconds += micros
			continue
		}
		if i+1 >= len(fields) {
			return Interval{}, fmt.Errorf("interval: dangling field %q", f)
		}
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return Interval{}, fmt.Errorf("interval: bad count %q", f)
		}
		unit := strings.TrimSuffix(fields[i+1], "s")
		i++
		switch unit {
		case "year":
			iv.Months += int32(n) * 12
		case "mon":
			iv.Months += int32(n)
		case "day":
			iv.Days += int32(n)
		default:
			return Interval{}, fmt.Errorf("interval: unknown unit %q", unit)
		}
	}
	return iv, nil
}

// encodeTimestampWire encodes microseconds-since-epoch per the negotiated
// datetime representation.
func encodeTimestampWire(t time.Time, p *Params) []byte {
	micros := t.Sub(pgEpoch).Microseconds()
	if p != nil && !p.IntegerDatetimes {
		return appendInt64(nil, int64(math.Float64bits(float64(micros)/microsPerSec)))
	}
	return appendInt64(nil, micros)
}

// wallClockUTC reinterprets t's wall-clock reading as a UTC instant, which
// is how a zone-less timestamp travels.
func wallClockUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func encodeIntervalWire(iv Interval, p *Params) []byte {
	out := make([]byte, 0, 16)
	if p != nil && !p.IntegerDatetimes {
		out = appendInt64(out, int64(math.Float64bits(float64(iv.Microseconds)/microsPerSec)))
	} else {
		out = appendInt64(out, iv.Microseconds)
	}
	out = appendInt32(out, iv.Days)
	out = appendInt32(out, iv.Months)
	return out
}
