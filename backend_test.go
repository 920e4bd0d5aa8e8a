package pglet

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"pglet/pgwire"
)

// scriptServer plays the backend side of the protocol over an in-memory
// pipe, letting tests assert the exact frontend traffic and feed back
// canned responses.
type scriptServer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
	done chan struct{}
}

// startServer wires a scripted backend to a set of connection options.
// The script runs in its own goroutine; assertion failures mark the test
// failed and stop the script.
func startServer(t *testing.T, script func(s *scriptServer)) *Options {
	t.Helper()
	client, server := net.Pipe()
	s := &scriptServer{
		t:    t,
		conn: server,
		r:    bufio.NewReader(server),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer server.Close()
		script(s)
	}()
	t.Cleanup(func() {
		client.Close()
		server.Close()
		<-s.done
	})
	return &Options{
		User:     "alice",
		Password: "secret",
		Database: "db",
		Logger:   quietLogger(),
		DialFunc: func(network, addr string, timeout time.Duration) (net.Conn, error) {
			return client, nil
		},
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (s *scriptServer) fatalf(format string, args ...any) {
	s.t.Errorf(format, args...)
	s.conn.Close()
	runtime.Goexit()
}

func (s *scriptServer) readN(n int) []byte {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		s.fatalf("server read: %v", err)
	}
	return buf
}

// readStartup consumes the untyped startup message and returns its
// parameters.
func (s *scriptServer) readStartup() map[string]string {
	length := int32(binary.BigEndian.Uint32(s.readN(4)))
	payload := s.readN(int(length - 4))
	version := int32(binary.BigEndian.Uint32(payload[:4]))
	if version != pgwire.ProtocolVersion {
		s.fatalf("startup version %d", version)
	}
	params := map[string]string{}
	rest := payload[4:]
	for len(rest) > 1 {
		var key, value string
		key, rest = cut(rest)
		value, rest = cut(rest)
		params[key] = value
	}
	return params
}

func cut(b []byte) (string, []byte) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), b[i+1:]
		}
	}
	return string(b), nil
}

func (s *scriptServer) readMessage() (byte, []byte) {
	header := s.readN(5)
	length := int32(binary.BigEndian.Uint32(header[1:]))
	return header[0], s.readN(int(length - 4))
}

// expect reads the next frontend message and asserts its tag.
func (s *scriptServer) expect(tag byte) []byte {
	got, payload := s.readMessage()
	if got != tag {
		s.fatalf("expected frontend message %q, got %q", tag, got)
	}
	return payload
}

func (s *scriptServer) send(tag byte, parts ...[]byte) {
	var payload []byte
	for _, p := range parts {
		payload = append(payload, p...)
	}
	msg := []byte{tag}
	msg = binary.BigEndian.AppendUint32(msg, uint32(len(payload)+4))
	msg = append(msg, payload...)
	if _, err := s.conn.Write(msg); err != nil {
		s.fatalf("server write: %v", err)
	}
}

func i32(v int32) []byte { return binary.BigEndian.AppendUint32(nil, uint32(v)) }
func i16(v int16) []byte { return binary.BigEndian.AppendUint16(nil, uint16(v)) }
func cstr(s string) []byte { return append([]byte(s), 0) }

func (s *scriptServer) authOK() {
	s.send(pgwire.MsgAuthentication, i32(pgwire.AuthOk))
}

func (s *scriptServer) paramStatus(key, value string) {
	s.send(pgwire.MsgParameterStatus, cstr(key), cstr(value))
}

func (s *scriptServer) keyData(pid, secret int32) {
	s.send(pgwire.MsgBackendKeyData, i32(pid), i32(secret))
}

func (s *scriptServer) ready(status byte) {
	s.send(pgwire.MsgReadyForQuery, []byte{status})
}

type col struct {
	name string
	oid  uint32
	size int16
}

func (s *scriptServer) rowDescription(cols ...col) {
	payload := i16(int16(len(cols)))
	for i, c := range cols {
		payload = append(payload, cstr(c.name)...)
		payload = append(payload, i32(0)...)            // table oid
		payload = append(payload, i16(int16(i+1))...)   // attr number
		payload = append(payload, i32(int32(c.oid))...) // type oid
		payload = append(payload, i16(c.size)...)
		payload = append(payload, i32(-1)...) // typmod
		payload = append(payload, i16(0)...)  // format (describe-time)
	}
	s.send(pgwire.MsgRowDescription, payload)
}

// dataRow sends one row; nil values become NULL.
func (s *scriptServer) dataRow(values ...[]byte) {
	payload := i16(int16(len(values)))
	for _, v := range values {
		if v == nil {
			payload = append(payload, i32(-1)...)
			continue
		}
		payload = append(payload, i32(int32(len(v)))...)
		payload = append(payload, v...)
	}
	s.send(pgwire.MsgDataRow, payload)
}

func (s *scriptServer) commandComplete(tag string) {
	s.send(pgwire.MsgCommandComplete, cstr(tag))
}

func (s *scriptServer) errorResponse(severity, code, message string) {
	var payload []byte
	payload = append(payload, 'S')
	payload = append(payload, cstr(severity)...)
	payload = append(payload, 'C')
	payload = append(payload, cstr(code)...)
	payload = append(payload, 'M')
	payload = append(payload, cstr(message)...)
	payload = append(payload, 0)
	s.send(pgwire.MsgErrorResponse, payload)
}

func (s *scriptServer) noticeResponse(severity, code, message string) {
	var payload []byte
	payload = append(payload, 'S')
	payload = append(payload, cstr(severity)...)
	payload = append(payload, 'C')
	payload = append(payload, cstr(code)...)
	payload = append(payload, 'M')
	payload = append(payload, cstr(message)...)
	payload = append(payload, 0)
	s.send(pgwire.MsgNoticeResponse, payload)
}

func (s *scriptServer) notification(pid int32, channel, payload string) {
	s.send(pgwire.MsgNotificationResponse, i32(pid), cstr(channel), cstr(payload))
}

func (s *scriptServer) parseComplete() { s.send(pgwire.MsgParseComplete) }
func (s *scriptServer) bindComplete()  { s.send(pgwire.MsgBindComplete) }
func (s *scriptServer) closeComplete() { s.send(pgwire.MsgCloseComplete) }
func (s *scriptServer) noData()        { s.send(pgwire.MsgNoData) }

func (s *scriptServer) parameterDescription(oids ...uint32) {
	payload := i16(int16(len(oids)))
	for _, oid := range oids {
		payload = append(payload, i32(int32(oid))...)
	}
	s.send(pgwire.MsgParameterDescription, payload)
}

// handshake performs the standard startup exchange: auth ok, the usual
// parameters, key data, ready.
func (s *scriptServer) handshake() {
	s.readStartup()
	s.authOK()
	s.paramStatus("server_version", "15.4")
	s.paramStatus("integer_datetimes", "on")
	s.paramStatus("client_encoding", "UTF8")
	s.paramStatus("DateStyle", "ISO, MDY")
	s.keyData(4242, 117)
	s.ready(pgwire.TxIdle)
}

// expectSimpleQuery asserts a simple-protocol Query with the given SQL.
func (s *scriptServer) expectSimpleQuery(sql string) {
	payload := s.expect(pgwire.MsgQuery)
	got, _ := cut(payload)
	if got != sql {
		s.fatalf("expected query %q, got %q", sql, got)
	}
}

// expectPrepare asserts the Parse/Describe/Sync prepare round and answers
// it with ParseComplete, ParameterDescription and RowDescription (or
// NoData); the caller sends the closing ReadyForQuery.
func (s *scriptServer) expectPrepare(sql string, oids []uint32, cols ...col) {
	payload := s.expect(pgwire.MsgParse)
	_, rest := cut(payload) // statement name
	gotSQL, rest := cut(rest)
	if gotSQL != sql {
		s.fatalf("expected parse of %q, got %q", sql, gotSQL)
	}
	n := int16(binary.BigEndian.Uint16(rest))
	if int(n) != len(oids) {
		s.fatalf("expected %d param oids, got %d", len(oids), n)
	}
	for i := range oids {
		got := binary.BigEndian.Uint32(rest[2+4*i:])
		if got != oids[i] {
			s.fatalf("param %d oid %d, want %d", i, got, oids[i])
		}
	}
	s.expect(pgwire.MsgDescribe)
	s.expect(pgwire.MsgSync)

	s.parseComplete()
	s.parameterDescription(oids...)
	if len(cols) > 0 {
		s.rowDescription(cols...)
	} else {
		s.noData()
	}
}

// expectExecuteRound asserts the Bind/Execute/Close(Portal)/Sync flush.
func (s *scriptServer) expectExecuteRound() {
	s.expect(pgwire.MsgBind)
	s.expect(pgwire.MsgExecute)
	s.expect(pgwire.MsgClose)
	s.expect(pgwire.MsgSync)
}
