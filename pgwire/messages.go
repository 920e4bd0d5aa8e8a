package pgwire

import (
	"encoding/binary"
	"fmt"
)

// FieldDescription describes one column in a RowDescription message.
type FieldDescription struct {
	Name         string
	TableOID     uint32
	ColumnAttr   int16
	DataTypeOID  uint32
	DataTypeSize int16
	TypeModifier int32
	FormatCode   int16
}

// ErrorFields holds the typed fields of an ErrorResponse or NoticeResponse.
type ErrorFields struct {
	Severity         string
	Code             string
	Message          string
	Detail           string
	Hint             string
	Position         string
	InternalPosition string
	InternalQuery    string
	Where            string
	Schema           string
	Table            string
	Column           string
	DataType         string
	Constraint       string
	File             string
	Line             string
	Routine          string
}

// Notification is the parsed payload of a NotificationResponse ('A').
type Notification struct {
	BackendPID int32
	Channel    string
	Payload    string
}

// ParseErrorFields parses an ErrorResponse/NoticeResponse payload: a
// sequence of (field code byte, null-terminated value) pairs ending with a
// zero byte.
func ParseErrorFields(payload []byte) (*ErrorFields, error) {
	f := &ErrorFields{}
	for len(payload) > 0 && payload[0] != 0 {
		code := payload[0]
		value, rest, err := readCString(payload[1:])
		if err != nil {
			return nil, fmt.Errorf("error field %q: %w", code, err)
		}
		payload = rest
		switch code {
		case FieldSeverity:
			f.Severity = value
		case FieldCode:
			f.Code = value
		case FieldMessage:
			f.Message = value
		case FieldDetail:
			f.Detail = value
		case FieldHint:
			f.Hint = value
		case FieldPosition:
			f.Position = value
		case FieldInternalPosition:
			f.InternalPosition = value
		case FieldInternalQuery:
			f.InternalQuery = value
		case FieldWhere:
			f.Where = value
		case FieldSchema:
			f.Schema = value
		case FieldTable:
			f.Table = value
		case FieldColumn:
			f.Column = value
		case FieldDataType:
			f.DataType = value
		case FieldConstraint:
			f.Constraint = value
		case FieldFile:
			f.File = value
		case FieldLine:
			f.Line = value
		case FieldRoutine:
			f.Routine = value
		default:
			// Unknown field codes are ignored per protocol docs.
		}
	}
	return f, nil
}

// ParseRowDescription parses a RowDescription payload into per-column
// field descriptions.
func ParseRowDescription(payload []byte) ([]FieldDescription, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("row description too short: %d bytes", len(payload))
	}
	count := int(binary.BigEndian.Uint16(payload))
	payload = payload[2:]

	fields := make([]FieldDescription, 0, count)
	for i := 0; i < count; i++ {
		name, rest, err := readCString(payload)
		if err != nil {
			return nil, fmt.Errorf("field %d name: %w", i, err)
		}
		if len(rest) < 18 {
			return nil, fmt.Errorf("field %d: truncated description", i)
		}
		fields = append(fields, FieldDescription{
			Name:         name,
			TableOID:     binary.BigEndian.Uint32(rest[0:4]),
			ColumnAttr:   int16(binary.BigEndian.Uint16(rest[4:6])),
			DataTypeOID:  binary.BigEndian.Uint32(rest[6:10]),
			DataTypeSize: int16(binary.BigEndian.Uint16(rest[10:12])),
			TypeModifier: int32(binary.BigEndian.Uint32(rest[12:16])),
			FormatCode:   int16(binary.BigEndian.Uint16(rest[16:18])),
		})
		payload = rest[18:]
	}
	return fields, nil
}

// ParseParameterDescription parses a ParameterDescription payload into the
// parameter type OIDs the server inferred.
func ParseParameterDescription(payload []byte) ([]uint32, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("parameter description too short: %d bytes", len(payload))
	}
	count := int(binary.BigEndian.Uint16(payload))
	payload = payload[2:]
	if len(payload) < 4*count {
		return nil, fmt.Errorf("parameter description: want %d oids, have %d bytes", count, len(payload))
	}
	oids := make([]uint32, count)
	for i := range oids {
		oids[i] = binary.BigEndian.Uint32(payload[4*i:])
	}
	return oids, nil
}

// ParseDataRow splits a DataRow payload into per-column values. A nil entry
// means SQL NULL.
func ParseDataRow(payload []byte) ([][]byte, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("data row too short: %d bytes", len(payload))
	}
	count := int(binary.BigEndian.Uint16(payload))
	payload = payload[2:]

	values := make([][]byte, count)
	for i := 0; i < count; i++ {
		if len(payload) < 4 {
			return nil, fmt.Errorf("data row column %d: truncated length", i)
		}
		vlen := int32(binary.BigEndian.Uint32(payload))
		payload = payload[4:]
		if vlen == -1 {
			continue
		}
		if vlen < 0 || int(vlen) > len(payload) {
			return nil, fmt.Errorf("data row column %d: bad length %d", i, vlen)
		}
		values[i] = payload[:vlen:vlen]
		payload = payload[vlen:]
	}
	return values, nil
}

// ParseBackendKeyData parses a BackendKeyData payload into the backend PID
// and cancellation secret.
func ParseBackendKeyData(payload []byte) (pid, secret int32, err error) {
	if len(payload) != 8 {
		return 0, 0, fmt.Errorf("backend key data: want 8 bytes, got %d", len(payload))
	}
	pid = int32(binary.BigEndian.Uint32(payload[0:4]))
	secret = int32(binary.BigEndian.Uint32(payload[4:8]))
	return pid, secret, nil
}

// ParseParameterStatus parses a ParameterStatus payload into its key and value.
func ParseParameterStatus(payload []byte) (key, value string, err error) {
	key, rest, err := readCString(payload)
	if err != nil {
		return "", "", fmt.Errorf("parameter status key: %w", err)
	}
	value, _, err = readCString(rest)
	if err != nil {
		return "", "", fmt.Errorf("parameter status value: %w", err)
	}
	return key, value, nil
}

// ParseReadyForQuery returns the transaction status byte of a ReadyForQuery
// payload.
func ParseReadyForQuery(payload []byte) (byte, error) {
	if len(payload) != 1 {
		return 0, fmt.Errorf("ready for query: want 1 byte, got %d", len(payload))
	}
	switch payload[0] {
	case TxIdle, TxInTx, TxFailed:
		return payload[0], nil
	}
	return 0, fmt.Errorf("ready for query: unknown status %q", payload[0])
}

// ParseCommandComplete returns the command tag string, e.g. "SELECT 2".
func ParseCommandComplete(payload []byte) (string, error) {
	tag, _, err := readCString(payload)
	if err != nil {
		return "", fmt.Errorf("command complete: %w", err)
	}
	return tag, nil
}

// ParseNotification parses a NotificationResponse payload.
func ParseNotification(payload []byte) (*Notification, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("notification too short: %d bytes", len(payload))
	}
	n := &Notification{BackendPID: int32(binary.BigEndian.Uint32(payload[0:4]))}
	channel, rest, err := readCString(payload[4:])
	if err != nil {
		return nil, fmt.Errorf("notification channel: %w", err)
	}
	n.Channel = channel
	n.Payload, _, err = readCString(rest)
	if err != nil {
		return nil, fmt.Errorf("notification payload: %w", err)
	}
	return n, nil
}

// ParseAuthentication returns the authentication sub-code and any trailing
// data (e.g. the MD5 salt).
func ParseAuthentication(payload []byte) (code int32, data []byte, err error) {
	if len(payload) < 4 {
		return 0, nil, fmt.Errorf("authentication message too short: %d bytes", len(payload))
	}
	return int32(binary.BigEndian.Uint32(payload[0:4])), payload[4:], nil
}
