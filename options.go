package pglet

import (
	"crypto/tls"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgpassfile"
	"github.com/jackc/pgservicefile"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"pglet/sqlparam"
)

// Options configures a connection. The zero value plus a User is a valid
// TCP connection to localhost:5432.
type Options struct {
	User     string // required; PGUSER as fallback
	Database string // defaults to User
	Host     string // default localhost
	Port     int    // default 5432
	UnixSock string // when set, host/port are ignored
	Password string // cleartext or MD5 auth; ~/.pgpass as fallback
	Service  string // pg_service.conf service name to pull settings from

	// SocketTimeout bounds each transport read and write. Zero means the
	// 60 second default; negative disables the deadline.
	SocketTimeout time.Duration

	// SSL requires a TLS upgrade before the startup message. The
	// connection fails if the server refuses.
	SSL       bool
	TLSConfig *tls.Config

	ClientEncoding string // startup client_encoding, default UTF8
	DateStyle      string // startup DateStyle, default "ISO, MDY"

	// ParamStyle selects the placeholder convention cursors accept.
	// Defaults to format (%s).
	ParamStyle sqlparam.Style

	// MaxCachedStatements bounds the prepared-statement cache. Zero means
	// unbounded.
	MaxCachedStatements int

	// Autocommit skips the implicit BEGIN before the first execute.
	Autocommit bool

	Logger *logrus.Logger

	// NoticeHandler receives server notices. Defaults to logging them.
	NoticeHandler func(*DatabaseError)

	// NotificationHandler receives LISTEN/NOTIFY payloads as they arrive.
	// Regardless of the handler they are buffered on the connection.
	NotificationHandler func(Notification)

	// DialFunc overrides the transport dialer. Used by tests to connect
	// over an in-memory pipe.
	DialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)
}

const (
	defaultPort          = 5432
	defaultSocketTimeout = 60 * time.Second
)

// withDefaults resolves the effective options: service file settings, then
// environment variables, then built-in defaults, then a .pgpass lookup for
// a missing password.
func (o *Options) withDefaults() (*Options, error) {
	r := *o

	if r.Service == "" {
		r.Service = os.Getenv("PGSERVICE")
	}
	if r.Service != "" {
		if err := r.applyService(); err != nil {
			return nil, err
		}
	}

	if r.User == "" {
		r.User = os.Getenv("PGUSER")
	}
	if r.User == "" {
		return nil, &InterfaceError{Msg: "user is required"}
	}
	if r.Database == "" {
		r.Database = os.Getenv("PGDATABASE")
	}
	if r.Database == "" {
		r.Database = r.User
	}
	if r.Host == "" {
		r.Host = os.Getenv("PGHOST")
	}
	if r.Host == "" {
		r.Host = "localhost"
	}
	if r.Port == 0 {
		r.Port = envInt("PGPORT", defaultPort)
	}
	if r.Password == "" {
		r.Password = os.Getenv("PGPASSWORD")
	}
	if r.SocketTimeout == 0 {
		r.SocketTimeout = defaultSocketTimeout
	}
	if r.ClientEncoding == "" {
		r.ClientEncoding = "UTF8"
	}
	if r.DateStyle == "" {
		r.DateStyle = "ISO, MDY"
	}
	if r.ParamStyle == "" {
		r.ParamStyle = sqlparam.Format
	}
	if _, err := sqlparam.ParseStyle(string(r.ParamStyle)); err != nil {
		return nil, &InterfaceError{Msg: err.Error()}
	}
	if r.Logger == nil {
		r.Logger = defaultLogger()
	}

	if r.Password == "" {
		r.Password = lookupPassfile(&r)
	}
	return &r, nil
}

// applyService merges settings from the connection service file for the
// named service.
func (o *Options) applyService() error {
	path := os.Getenv("PGSERVICEFILE")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "locate pg_service.conf")
		}
		path = filepath.Join(home, ".pg_service.conf")
	}
	sf, err := pgservicefile.ReadServicefile(path)
	if err != nil {
		return errors.Wrapf(err, "read service file %s", path)
	}
	svc, err := sf.GetService(o.Service)
	if err != nil {
		return errors.Wrapf(err, "service %q", o.Service)
	}
	for k, v := range svc.Settings {
		switch k {
		case "host":
			if o.Host == "" {
				o.Host = v
			}
		case "port":
			if o.Port == 0 {
				if p, err := strconv.Atoi(v); err == nil {
					o.Port = p
				}
			}
		case "user":
			if o.User == "" {
				o.User = v
			}
		case "dbname":
			if o.Database == "" {
				o.Database = v
			}
		case "password":
			if o.Password == "" {
				o.Password = v
			}
		}
	}
	return nil
}

// lookupPassfile consults ~/.pgpass (or PGPASSFILE). Failures are treated
// as "no password found".
func lookupPassfile(o *Options) string {
	path := os.Getenv("PGPASSFILE")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		path = filepath.Join(home, ".pgpass")
	}
	pf, err := pgpassfile.ReadPassfile(path)
	if err != nil {
		return ""
	}
	host := o.Host
	if o.UnixSock != "" {
		host = "localhost"
	}
	return pf.FindPassword(host, strconv.Itoa(o.Port), o.Database, o.User)
}

// addr returns the dial network and address for the options.
func (o *Options) addr() (network, addr string) {
	if o.UnixSock != "" {
		return "unix", o.UnixSock
	}
	return "tcp", net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
