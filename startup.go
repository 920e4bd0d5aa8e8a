package pglet

import (
	"crypto/tls"

	"github.com/pkg/errors"

	"pglet/pgwire"
)

// startup runs the connection handshake: optional TLS upgrade, the
// StartupMessage, the authentication exchange, then parameter negotiation
// until the first ReadyForQuery.
func (c *Connection) startup() error {
	c.state = stateStartingUp

	if c.opts.SSL {
		if err := c.upgradeTLS(); err != nil {
			return err
		}
	}

	params := [][2]string{
		{"user", c.opts.User},
		{"database", c.opts.Database},
		{"client_encoding", c.opts.ClientEncoding},
		{"DateStyle", c.opts.DateStyle},
	}
	if err := c.writer.WriteStartup(params); err != nil {
		return errors.Wrap(err, "write startup message")
	}
	if err := c.flush(); err != nil {
		return err
	}

	if err := c.authenticatePhase(); err != nil {
		return err
	}
	return c.negotiatePhase()
}

// upgradeTLS sends SSLRequest and, on acceptance, wraps the transport in
// TLS. Refusal is fatal because the caller required encryption.
func (c *Connection) upgradeTLS() error {
	if err := c.writer.WriteSSLRequest(); err != nil {
		return errors.Wrap(err, "write ssl request")
	}
	if err := c.flush(); err != nil {
		return err
	}
	resp, err := c.reader.ReadSSLResponse()
	if err != nil {
		c.fail()
		return &TransportError{Op: "ssl negotiation", Err: err}
	}
	switch resp {
	case 'S':
	case 'N':
		return &ProtocolError{Msg: "SSL refused by server"}
	default:
		return protocolErrorf("unexpected SSL negotiation response %q", resp)
	}

	cfg := c.opts.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{ServerName: c.opts.Host}
	}
	tlsConn := tls.Client(c.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		c.fail()
		return &TransportError{Op: "tls handshake", Err: err}
	}
	c.conn = tlsConn
	c.reader = pgwire.NewReader(c.conn)
	c.writer = pgwire.NewWriter(c.conn)
	c.log = c.log.WithField("tls", true)
	return nil
}

// authenticatePhase answers Authentication* requests until AuthenticationOk.
// Anything else at this stage is a protocol violation; an ErrorResponse is
// fatal.
func (c *Connection) authenticatePhase() error {
	c.state = stateAuthenticating
	for {
		tag, payload, err := c.receive()
		if err != nil {
			return err
		}
		switch tag {
		case pgwire.MsgAuthentication:
			code, data, err := pgwire.ParseAuthentication(payload)
			if err != nil {
				return c.abort(err)
			}
			done, err := c.answerAuth(code, data)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case pgwire.MsgErrorResponse:
			return c.parseError(payload)
		default:
			return c.abort(protocolErrorf("unexpected message %q during authentication", tag))
		}
	}
}

// negotiatePhase stores BackendKeyData and server parameters until the
// session reaches ready.
func (c *Connection) negotiatePhase() error {
	c.state = stateNegotiating
	for {
		tag, payload, err := c.receive()
		if err != nil {
			return err
		}
		switch tag {
		case pgwire.MsgBackendKeyData:
			pid, secret, err := pgwire.ParseBackendKeyData(payload)
			if err != nil {
				return c.abort(err)
			}
			c.backendPID, c.backendKey = pid, secret
		case pgwire.MsgReadyForQuery:
			c.finishReady(payload)
			return nil
		case pgwire.MsgErrorResponse:
			return c.parseError(payload)
		default:
			return c.abort(protocolErrorf("unexpected message %q during negotiation", tag))
		}
	}
}
