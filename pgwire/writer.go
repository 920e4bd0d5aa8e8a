package pgwire

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Writer writes PostgreSQL wire protocol messages to a server connection.
// Messages accumulate in the bufio layer and reach the transport on Flush,
// or earlier once the buffer fills, so a Parse/Bind/Describe/Execute/Sync
// sequence that fits the buffer goes out as a single write.
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter wraps an io.Writer for writing PG protocol messages.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   bufio.NewWriter(w),
		buf: make([]byte, 0, 1024),
	}
}

// Flush flushes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WriteSSLRequest writes the 8-byte SSL negotiation request. It carries no
// type byte; the server answers with a single 'S' or 'N' byte.
func (w *Writer) WriteSSLRequest() error {
	w.buf = w.buf[:0]
	w.writeInt32(8)
	w.writeInt32(SSLRequestCode)
	_, err := w.w.Write(w.buf)
	return err
}

// WriteCancelRequest writes a cancel request for the backend identified by
// pid and secret. Sent on its own connection, never on the one running the
// query.
func (w *Writer) WriteCancelRequest(pid, secret int32) error {
	w.buf = w.buf[:0]
	w.writeInt32(16)
	w.writeInt32(CancelRequestCode)
	w.writeInt32(pid)
	w.writeInt32(secret)
	_, err := w.w.Write(w.buf)
	return err
}

// WriteStartup writes the untyped startup message: protocol version followed
// by null-terminated key/value pairs and a final zero byte. Pairs are written
// in the order given.
func (w *Writer) WriteStartup(params [][2]string) error {
	w.buf = w.buf[:0]
	w.writeInt32(0) // length placeholder
	w.writeInt32(ProtocolVersion)
	for _, p := range params {
		w.writeCString(p[0])
		w.writeCString(p[1])
	}
	w.buf = append(w.buf, 0)
	binary.BigEndian.PutUint32(w.buf[0:4], uint32(len(w.buf)))
	_, err := w.w.Write(w.buf)
	return err
}

// WritePassword sends a PasswordMessage carrying the (possibly hashed)
// password response.
func (w *Writer) WritePassword(password string) error {
	w.beginMessage(MsgPasswordMessage)
	w.writeCString(password)
	return w.finishMessage()
}

// WriteQuery sends a simple-protocol Query message.
func (w *Writer) WriteQuery(sql string) error {
	w.beginMessage(MsgQuery)
	w.writeCString(sql)
	return w.finishMessage()
}

// WriteParse sends a Parse command creating the named prepared statement.
// A zero OID leaves that parameter's type for the server to infer.
func (w *Writer) WriteParse(name, sql string, paramOIDs []uint32) error {
	w.beginMessage(MsgParse)
	w.writeCString(name)
	w.writeCString(sql)
	w.writeInt16(int16(len(paramOIDs)))
	for _, oid := range paramOIDs {
		w.writeInt32(int32(oid))
	}
	return w.finishMessage()
}

// WriteDescribe sends a Describe command for a statement ('S') or portal ('P').
func (w *Writer) WriteDescribe(kind byte, name string) error {
	w.beginMessage(MsgDescribe)
	w.buf = append(w.buf, kind)
	w.writeCString(name)
	return w.finishMessage()
}

// WriteBind sends a Bind command creating a portal from a prepared statement.
// A nil entry in paramValues binds NULL for that parameter.
func (w *Writer) WriteBind(portal, statement string, paramFormats []int16, paramValues [][]byte, resultFormats []int16) error {
	w.beginMessage(MsgBind)
	w.writeCString(portal)
	w.writeCString(statement)
	w.writeInt16(int16(len(paramFormats)))
	for _, f := range paramFormats {
		w.writeInt16(f)
	}
	w.writeInt16(int16(len(paramValues)))
	for _, v := range paramValues {
		if v == nil {
			w.writeInt32(-1)
		} else {
			w.writeInt32(int32(len(v)))
			w.buf = append(w.buf, v...)
		}
	}
	w.writeInt16(int16(len(resultFormats)))
	for _, f := range resultFormats {
		w.writeInt16(f)
	}
	return w.finishMessage()
}

// WriteExecute sends an Execute command for the named portal. maxRows zero
// means no row limit.
func (w *Writer) WriteExecute(portal string, maxRows int32) error {
	w.beginMessage(MsgExecute)
	w.writeCString(portal)
	w.writeInt32(maxRows)
	return w.finishMessage()
}

// WriteClose sends a Close command for a statement ('S') or portal ('P').
func (w *Writer) WriteClose(kind byte, name string) error {
	w.beginMessage(MsgClose)
	w.buf = append(w.buf, kind)
	w.writeCString(name)
	return w.finishMessage()
}

// WriteSync sends a Sync message, ending an extended-query sequence.
func (w *Writer) WriteSync() error {
	w.beginMessage(MsgSync)
	return w.finishMessage()
}

// WriteFlush sends a Flush message asking the server to deliver pending
// responses without ending the sequence.
func (w *Writer) WriteFlush() error {
	w.beginMessage(MsgFlush)
	return w.finishMessage()
}

// WriteTerminate sends the session-ending Terminate message.
func (w *Writer) WriteTerminate() error {
	w.beginMessage(MsgTerminate)
	return w.finishMessage()
}

// WriteCopyFail rejects an in-progress COPY with the given reason.
func (w *Writer) WriteCopyFail(reason string) error {
	w.beginMessage(MsgCopyFail)
	w.writeCString(reason)
	return w.finishMessage()
}

// beginMessage starts building a new message with the given type byte.
func (w *Writer) beginMessage(msgType byte) {
	w.buf = w.buf[:0]
	w.buf = append(w.buf, msgType)
	w.buf = append(w.buf, 0, 0, 0, 0) // length placeholder
}

// finishMessage patches the length field and writes the message to the buffer.
func (w *Writer) finishMessage() error {
	length := int32(len(w.buf) - 1) // length includes itself but not the type byte
	binary.BigEndian.PutUint32(w.buf[1:5], uint32(length))
	_, err := w.w.Write(w.buf)
	return err
}

func (w *Writer) writeInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) writeInt16(v int16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
}

func (w *Writer) writeCString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}
