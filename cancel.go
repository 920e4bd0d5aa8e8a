package pglet

import (
	"net"

	"pglet/pgwire"
)

// Cancel asks the server to abort the query currently running on this
// connection. The request travels on a transport of its own; the running
// query then fails on the main connection with SQLSTATE 57014 and the
// session returns to ready.
func (c *Connection) Cancel() error {
	network, addr := c.opts.addr()
	dial := c.opts.DialFunc
	if dial == nil {
		dial = net.DialTimeout
	}
	timeout := c.opts.SocketTimeout
	if timeout < 0 {
		timeout = 0
	}
	conn, err := dial(network, addr, timeout)
	if err != nil {
		return &TransportError{Op: "cancel connect", Err: err}
	}
	defer conn.Close()

	w := pgwire.NewWriter(conn)
	if err := w.WriteCancelRequest(c.backendPID, c.backendKey); err != nil {
		return &TransportError{Op: "cancel write", Err: err}
	}
	if err := w.Flush(); err != nil {
		return &TransportError{Op: "cancel write", Err: err}
	}
	return nil
}
