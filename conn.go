package pglet

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pglet/pgtypes"
	"pglet/pgwire"
)

// Notification is a LISTEN/NOTIFY payload delivered by the server.
type Notification = pgwire.Notification

type connState int

const (
	stateFresh connState = iota
	stateStartingUp
	stateAuthenticating
	stateNegotiating
	stateReady
	stateBusy
	stateClosed
)

var stateNames = map[connState]string{
	stateFresh:          "fresh",
	stateStartingUp:     "starting-up",
	stateAuthenticating: "authenticating",
	stateNegotiating:    "negotiating",
	stateReady:          "ready",
	stateBusy:           "busy",
	stateClosed:         "closed",
}

func (s connState) String() string { return stateNames[s] }

// Connection is one session with a PostgreSQL server. It owns the
// transport, the codec buffers, the statement cache and the negotiated
// parameters. A Connection is not safe for concurrent use: one cursor
// executes at a time, and a second caller fails instead of interleaving.
type Connection struct {
	opts   *Options
	conn   net.Conn
	reader *pgwire.Reader
	writer *pgwire.Writer

	registry   *pgtypes.Registry
	typeParams pgtypes.Params

	parameters map[string]string
	backendPID int32
	backendKey int32

	state    connState
	txStatus byte

	mu sync.Mutex

	cache       *stmtCache
	stmtCounter uint64

	notifications []Notification

	log *logrus.Entry
}

// timeoutConn applies the per-operation socket timeout to every read and
// write.
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *timeoutConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *timeoutConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

// Connect dials the server and performs the startup sequence: optional TLS
// upgrade, parameter negotiation and authentication, then drains server
// parameters until the session is ready.
func Connect(opts *Options) (*Connection, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	timeout := o.SocketTimeout
	if timeout < 0 {
		timeout = 0
	}

	network, addr := o.addr()
	dial := o.DialFunc
	if dial == nil {
		dial = net.DialTimeout
	}
	raw, err := dial(network, addr, timeout)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}

	c := &Connection{
		opts:       o,
		conn:       &timeoutConn{Conn: raw, timeout: timeout},
		registry:   pgtypes.Default().Clone(),
		parameters: make(map[string]string),
		state:      stateFresh,
		txStatus:   pgwire.TxIdle,
		log: o.Logger.WithFields(logrus.Fields{
			"conn": xid.New().String(),
			"addr": addr,
		}),
	}
	c.reader = pgwire.NewReader(c.conn)
	c.writer = pgwire.NewWriter(c.conn)
	c.typeParams = pgtypes.Params{
		ClientEncoding: o.ClientEncoding,
		DateStyle:      o.DateStyle,
	}
	c.cache = newStmtCache(o.MaxCachedStatements)

	if err := c.startup(); err != nil {
		c.conn.Close()
		c.state = stateClosed
		return nil, err
	}
	c.state = stateReady
	c.log.WithField("server_version", c.parameters["server_version"]).Info("connected")
	return c, nil
}

// Registry returns the connection's private type registry. Codecs
// registered on it affect only this connection.
func (c *Connection) Registry() *pgtypes.Registry { return c.registry }

// Parameter returns a server parameter reported via ParameterStatus, such
// as server_version or TimeZone.
func (c *Connection) Parameter(name string) string { return c.parameters[name] }

// BackendPID returns the server process ID for this session.
func (c *Connection) BackendPID() int32 { return c.backendPID }

// Notifications drains and returns buffered LISTEN/NOTIFY payloads.
func (c *Connection) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notifications
	c.notifications = nil
	return out
}

// Cursor creates a new cursor bound to this connection.
func (c *Connection) Cursor() *Cursor {
	return &Cursor{conn: c, rowsAffected: -1, arraySize: 1}
}

// lock claims the executing role. It fails rather than waits when another
// operation holds the connection, and rejects closed or mid-protocol
// connections.
func (c *Connection) lock() error {
	if !c.mu.TryLock() {
		return &InterfaceError{Msg: "connection is busy with another operation"}
	}
	switch c.state {
	case stateReady:
		return nil
	case stateClosed:
		c.mu.Unlock()
		return &InterfaceError{Msg: "connection is closed"}
	default:
		s := c.state
		c.mu.Unlock()
		return protocolErrorf("connection not ready for requests (state %s)", s)
	}
}

func (c *Connection) unlock() { c.mu.Unlock() }

// Close sends a best-effort Terminate and closes the transport. All
// cursors become unusable; server-side statements and portals are released
// implicitly.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return nil
	}
	c.writer.WriteTerminate()
	c.writer.Flush()
	err := c.conn.Close()
	c.state = stateClosed
	c.log.Info("connection closed")
	return err
}

// fail marks the connection broken and closes the transport. Used after
// transport and framing errors, which are not recoverable.
func (c *Connection) fail() {
	if c.state != stateClosed {
		c.conn.Close()
		c.state = stateClosed
	}
}

// flush pushes buffered frontend messages to the wire.
func (c *Connection) flush() error {
	if err := c.writer.Flush(); err != nil {
		c.fail()
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// receive reads the next backend message, transparently consuming the
// asynchronous ones: parameter updates, notices and notifications.
func (c *Connection) receive() (byte, []byte, error) {
	for {
		tag, payload, err := c.reader.ReadMessage()
		if err != nil {
			c.fail()
			return 0, nil, classifyReadError(err)
		}
		switch tag {
		case pgwire.MsgParameterStatus:
			c.handleParameterStatus(payload)
		case pgwire.MsgNoticeResponse:
			c.handleNotice(payload)
		case pgwire.MsgNotificationResponse:
			c.handleNotification(payload)
		default:
			return tag, payload, nil
		}
	}
}

// classifyReadError separates transport failures from framing violations.
func classifyReadError(err error) error {
	var netErr net.Error
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &netErr) {
		return &TransportError{Op: "read", Err: err}
	}
	return &ProtocolError{Msg: err.Error()}
}

func (c *Connection) handleParameterStatus(payload []byte) {
	key, value, err := pgwire.ParseParameterStatus(payload)
	if err != nil {
		c.log.WithError(err).Warn("malformed ParameterStatus")
		return
	}
	c.parameters[key] = value
	switch key {
	case "client_encoding":
		c.typeParams.ClientEncoding = value
	case "integer_datetimes":
		c.typeParams.IntegerDatetimes = value == "on"
	case "TimeZone":
		c.typeParams.TimeZone = value
	case "DateStyle":
		c.typeParams.DateStyle = value
	}
	c.log.WithFields(logrus.Fields{"name": key, "value": value}).Debug("parameter status")
}

func (c *Connection) handleNotice(payload []byte) {
	fields, err := pgwire.ParseErrorFields(payload)
	if err != nil {
		c.log.WithError(err).Warn("malformed NoticeResponse")
		return
	}
	notice := databaseError(fields)
	var base *DatabaseError
	if !errors.As(notice, &base) {
		return
	}
	if c.opts.NoticeHandler != nil {
		c.opts.NoticeHandler(base)
		return
	}
	c.log.WithField("sqlstate", base.SQLState).Info(base.Severity + ": " + base.Message)
}

func (c *Connection) handleNotification(payload []byte) {
	n, err := pgwire.ParseNotification(payload)
	if err != nil {
		c.log.WithError(err).Warn("malformed NotificationResponse")
		return
	}
	c.notifications = append(c.notifications, *n)
	if c.opts.NotificationHandler != nil {
		c.opts.NotificationHandler(*n)
	}
}

// drainUntilReady consumes messages through the next ReadyForQuery,
// keeping the first error seen. After a protocol error this is the only
// way back to a usable connection.
func (c *Connection) drainUntilReady(firstErr error) error {
	for {
		tag, payload, err := c.receive()
		if err != nil {
			if firstErr != nil {
				return firstErr
			}
			return err
		}
		switch tag {
		case pgwire.MsgErrorResponse:
			if firstErr == nil {
				firstErr = c.parseError(payload)
			}
		case pgwire.MsgReadyForQuery:
			c.finishReady(payload)
			return firstErr
		}
	}
}

// finishReady records the transaction status from ReadyForQuery and
// returns the connection to the ready state.
func (c *Connection) finishReady(payload []byte) {
	status, err := pgwire.ParseReadyForQuery(payload)
	if err != nil {
		c.log.WithError(err).Warn("malformed ReadyForQuery")
		status = pgwire.TxIdle
	}
	c.txStatus = status
	c.state = stateReady
}

func (c *Connection) parseError(payload []byte) error {
	fields, err := pgwire.ParseErrorFields(payload)
	if err != nil {
		return &ProtocolError{Msg: err.Error()}
	}
	return databaseError(fields)
}

// simpleQuery runs sql over the simple-query protocol: one Query message,
// then RowDescription/DataRow/CommandComplete cycles until ReadyForQuery.
// Caller holds the connection lock.
func (c *Connection) simpleQuery(sql string) (*execResult, error) {
	c.state = stateBusy
	c.writer.WriteQuery(sql)
	if err := c.flush(); err != nil {
		return nil, err
	}

	res := &execResult{rowsAffected: -1}
	var firstErr error
	for {
		tag, payload, err := c.receive()
		if err != nil {
			if firstErr != nil {
				return nil, firstErr
			}
			return nil, err
		}
		switch tag {
		case pgwire.MsgRowDescription:
			fields, err := pgwire.ParseRowDescription(payload)
			if err != nil {
				return nil, c.abort(err)
			}
			res.fields = fields
		case pgwire.MsgDataRow:
			if firstErr != nil {
				continue
			}
			row, err := c.decodeRow(res.fields, nil, payload)
			if err != nil {
				firstErr = err
				continue
			}
			res.rows = append(res.rows, row)
		case pgwire.MsgCommandComplete:
			cmdTag, err := pgwire.ParseCommandComplete(payload)
			if err == nil {
				res.tag = cmdTag
				res.applyTag(cmdTag)
			}
		case pgwire.MsgEmptyQueryResponse:
			res.rowsAffected = 0
		case pgwire.MsgCopyInResponse:
			c.writer.WriteCopyFail("COPY streaming is not supported")
			if err := c.flush(); err != nil {
				return nil, err
			}
		case pgwire.MsgCopyOutResponse, pgwire.MsgCopyData, pgwire.MsgCopyDone:
			if firstErr == nil {
				firstErr = &InterfaceError{Msg: "COPY streaming is not supported"}
			}
		case pgwire.MsgErrorResponse:
			if firstErr == nil {
				firstErr = c.parseError(payload)
			}
		case pgwire.MsgReadyForQuery:
			c.finishReady(payload)
			if firstErr != nil {
				return nil, firstErr
			}
			return res, nil
		default:
			return nil, c.abort(protocolErrorf("unexpected message %q during simple query", tag))
		}
	}
}

// abort handles a framing-level violation mid-response: the stream can no
// longer be trusted, so the connection is closed.
func (c *Connection) abort(err error) error {
	c.fail()
	if _, ok := err.(*ProtocolError); ok {
		return err
	}
	return &ProtocolError{Msg: err.Error()}
}

// decodeRow decodes one DataRow using the row descriptor and the type
// registry. formats carries the per-column formats requested at Bind time;
// nil falls back to the descriptor's format codes (the simple-query path,
// where everything is text).
func (c *Connection) decodeRow(fields []pgwire.FieldDescription, formats []int16, payload []byte) ([]any, error) {
	values, err := pgwire.ParseDataRow(payload)
	if err != nil {
		return nil, c.abort(err)
	}
	if len(values) != len(fields) {
		return nil, c.abort(protocolErrorf("DataRow has %d columns, descriptor has %d", len(values), len(fields)))
	}
	row := make([]any, len(values))
	for i, data := range values {
		f := fields[i]
		format := f.FormatCode
		if formats != nil {
			format = formats[i]
		}
		if data != nil && format == pgwire.FormatBinary && !c.registry.Known(f.DataTypeOID) {
			c.log.WithField("oid", f.DataTypeOID).Warn("binary data for unregistered type oid; passing through raw")
		}
		v, err := c.registry.Decode(f.DataTypeOID, data, format, &c.typeParams)
		if err != nil {
			return nil, &ProtocolError{Msg: "column " + f.Name + ": " + err.Error()}
		}
		row[i] = v
	}
	return row, nil
}

// Begin starts a transaction explicitly. It is a no-op in autocommit mode
// or when a transaction is already open.
func (c *Connection) Begin() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()
	if c.opts.Autocommit || c.txStatus != pgwire.TxIdle {
		return nil
	}
	_, err := c.simpleQuery("BEGIN")
	return err
}

// Commit commits the open transaction. In a failed transaction only
// rollback is permitted.
func (c *Connection) Commit() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()
	if c.opts.Autocommit {
		return nil
	}
	if c.txStatus == pgwire.TxFailed {
		return &InFailedTransactionError{}
	}
	_, err := c.simpleQuery("COMMIT")
	return err
}

// Rollback rolls back the open transaction.
func (c *Connection) Rollback() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()
	if c.opts.Autocommit {
		return nil
	}
	_, err := c.simpleQuery("ROLLBACK")
	return err
}

// beginIfNeeded opens the implicit transaction before the first execute
// when autocommit is off. Caller holds the lock.
func (c *Connection) beginIfNeeded() error {
	if c.opts.Autocommit || c.txStatus != pgwire.TxIdle {
		return nil
	}
	_, err := c.simpleQuery("BEGIN")
	return err
}

// leadingKeyword returns the first SQL keyword, skipping whitespace and
// comments, lowercased.
func leadingKeyword(sql string) string {
	s := sql
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
			} else {
				return ""
			}
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
			} else {
				return ""
			}
		default:
			end := 0
			for end < len(s) {
				ch := s[end]
				if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' {
					end++
					continue
				}
				break
			}
			return strings.ToLower(s[:end])
		}
	}
}

// simpleOnlyCommands must use the simple-query protocol: transaction
// control, plus statements that refuse to run inside the implicit
// transaction block the extended path would open.
var simpleOnlyCommands = map[string]bool{
	"begin":    true,
	"start":    true,
	"commit":   true,
	"end":      true,
	"abort":    true,
	"rollback": true,
	"vacuum":   true,
}
