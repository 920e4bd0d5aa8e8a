package pgwire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Reader reads PostgreSQL wire protocol messages from a server connection.
type Reader struct {
	r       *bufio.Reader
	maxSize int32
}

// NewReader wraps an io.Reader for reading PG protocol messages.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), maxSize: DefaultMaxMessageSize}
}

// SetMaxMessageSize changes the largest accepted message length. Messages
// declaring a bigger length are rejected as a framing error.
func (r *Reader) SetMaxMessageSize(n int32) {
	r.maxSize = n
}

// ReadMessage reads a typed message (1-byte type + int32 length + payload).
func (r *Reader) ReadMessage() (msgType byte, payload []byte, err error) {
	msgType, err = r.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}

	var length int32
	if err := binary.Read(r.r, binary.BigEndian, &length); err != nil {
		return 0, nil, fmt.Errorf("read message length: %w", err)
	}
	if length < 4 {
		return 0, nil, fmt.Errorf("message length too short: %d", length)
	}
	if length > r.maxSize {
		return 0, nil, fmt.Errorf("message length %d exceeds limit %d", length, r.maxSize)
	}

	payload = make([]byte, length-4)
	if length > 4 {
		if _, err := io.ReadFull(r.r, payload); err != nil {
			return 0, nil, fmt.Errorf("read message payload: %w", err)
		}
	}
	return msgType, payload, nil
}

// ReadSSLResponse reads the single-byte reply to an SSLRequest:
// 'S' means the server is willing to speak TLS, 'N' means it is not.
func (r *Reader) ReadSSLResponse() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("read ssl response: %w", err)
	}
	return b, nil
}

// readCString reads a null-terminated string from b, returning the string
// and the remaining bytes after the null terminator.
func readCString(b []byte) (string, []byte, error) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), b[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("unterminated string in message")
}
