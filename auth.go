package pglet

import (
	"crypto/md5"
	"encoding/hex"

	"pglet/pgwire"
)

// answerAuth responds to one Authentication* request. It returns true once
// the server reports AuthenticationOk.
func (c *Connection) answerAuth(code int32, data []byte) (bool, error) {
	switch code {
	case pgwire.AuthOk:
		return true, nil

	case pgwire.AuthCleartextPassword:
		if c.opts.Password == "" {
			return false, &InterfaceError{Msg: "server requested a password but none was configured"}
		}
		c.writer.WritePassword(c.opts.Password)
		return false, c.flush()

	case pgwire.AuthMD5Password:
		if len(data) != 4 {
			return false, c.abort(protocolErrorf("md5 auth request carries %d salt bytes, want 4", len(data)))
		}
		if c.opts.Password == "" {
			return false, &InterfaceError{Msg: "server requested md5 password authentication but none was configured"}
		}
		c.writer.WritePassword(md5Credential(c.opts.User, c.opts.Password, data))
		return false, c.flush()

	default:
		return false, protocolErrorf("unsupported authentication method %d", code)
	}
}

// md5Credential computes the salted double-MD5 response:
// "md5" + hex(md5(hex(md5(password + user)) + salt)).
func md5Credential(user, password string, salt []byte) string {
	inner := md5.Sum([]byte(password + user))
	outer := md5.New()
	outer.Write([]byte(hex.EncodeToString(inner[:])))
	outer.Write(salt)
	return "md5" + hex.EncodeToString(outer.Sum(nil))
}
