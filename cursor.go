package pglet

import (
	"iter"

	"pglet/pgtypes"
	"pglet/pgwire"
	"pglet/sqlparam"
)

// Cursor executes statements on its connection and buffers the resulting
// rows. Executions run the extended-query protocol with no row limit, so
// every row is on the client before the first fetch; fetching is pure
// buffer access.
type Cursor struct {
	conn *Connection

	closed   bool
	executed bool

	fields       []pgwire.FieldDescription
	rows         [][]any
	pos          int
	rowsAffected int64

	// arraySize is the default batch size for Fetchmany.
	arraySize int
}

// Execute runs one statement with positional parameters in the
// connection's paramstyle. Transaction-control verbs and statements that
// cannot run in a transaction block take the simple-query path when they
// are given no parameters.
func (cur *Cursor) Execute(sql string, args ...any) error {
	return cur.run(sql, func(q *sqlparam.Query) ([]any, error) {
		return q.Bind(args)
	})
}

// ExecuteMap runs one statement with named parameters (the named and
// pyformat styles).
func (cur *Cursor) ExecuteMap(sql string, args map[string]any) error {
	return cur.run(sql, func(q *sqlparam.Query) ([]any, error) {
		return q.BindMap(args)
	})
}

// ExecuteMany prepares the statement once and runs it for every parameter
// set, accumulating rows affected. An execution with an unknown count makes
// the total unknown.
func (cur *Cursor) ExecuteMany(sql string, paramSets [][]any) error {
	var total int64 = -1
	unknown := false
	for _, args := range paramSets {
		if err := cur.Execute(sql, args...); err != nil {
			cur.rowsAffected = total
			return err
		}
		switch {
		case unknown:
		case cur.rowsAffected == -1:
			unknown = true
			total = -1
		case total == -1:
			total = cur.rowsAffected
		default:
			total += cur.rowsAffected
		}
	}
	cur.rowsAffected = total
	return nil
}

func (cur *Cursor) run(sql string, bind func(*sqlparam.Query) ([]any, error)) error {
	if cur.closed {
		return &InterfaceError{Msg: "cursor is closed"}
	}
	c := cur.conn
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	kw := leadingKeyword(sql)
	if c.txStatus == pgwire.TxFailed && kw != "rollback" && kw != "abort" {
		return &InFailedTransactionError{}
	}

	q, err := sqlparam.Rewrite(c.opts.ParamStyle, sql)
	if err != nil {
		return &InterfaceError{Msg: err.Error()}
	}
	args, err := bind(q)
	if err != nil {
		return &InterfaceError{Msg: err.Error()}
	}

	values := make([]pgtypes.Value, len(args))
	for i, a := range args {
		v, err := pgtypes.FromGo(a)
		if err != nil {
			return &InterfaceError{Msg: err.Error()}
		}
		values[i] = v
	}

	txControl := kw == "begin" || kw == "start" || kw == "commit" ||
		kw == "end" || kw == "abort" || kw == "rollback"
	if !txControl {
		if err := c.beginIfNeeded(); err != nil {
			return err
		}
	}

	var res *execResult
	if len(values) == 0 && simpleOnlyCommands[kw] {
		res, err = c.simpleQuery(q.SQL)
	} else {
		res, err = c.execExtended(q.SQL, values)
	}
	if err != nil {
		return err
	}

	cur.executed = true
	cur.fields = res.fields
	cur.rows = res.rows
	cur.pos = 0
	cur.rowsAffected = res.rowsAffected
	return nil
}

// Fetchone returns the next row, or nil after the last one.
func (cur *Cursor) Fetchone() ([]any, error) {
	if err := cur.requireResult(); err != nil {
		return nil, err
	}
	if cur.pos >= len(cur.rows) {
		return nil, nil
	}
	row := cur.rows[cur.pos]
	cur.pos++
	return row, nil
}

// Fetchmany returns up to n rows; n <= 0 uses the cursor's array size. An
// empty slice means the rows are exhausted.
func (cur *Cursor) Fetchmany(n int) ([][]any, error) {
	if err := cur.requireResult(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = cur.arraySize
	}
	out := make([][]any, 0, n)
	for len(out) < n && cur.pos < len(cur.rows) {
		out = append(out, cur.rows[cur.pos])
		cur.pos++
	}
	return out, nil
}

// Fetchall returns every remaining row.
func (cur *Cursor) Fetchall() ([][]any, error) {
	if err := cur.requireResult(); err != nil {
		return nil, err
	}
	out := cur.rows[cur.pos:]
	cur.pos = len(cur.rows)
	return out, nil
}

// Rows yields the remaining rows in order. The sequence is finite and not
// restartable; each row is consumed from the buffer as it is yielded.
func (cur *Cursor) Rows() iter.Seq[[]any] {
	return func(yield func([]any) bool) {
		for cur.pos < len(cur.rows) {
			row := cur.rows[cur.pos]
			cur.pos++
			if !yield(row) {
				return
			}
		}
	}
}

// Description returns the row descriptor of the current result set, or nil
// when the statement returns no rows.
func (cur *Cursor) Description() []pgwire.FieldDescription {
	if !cur.executed || len(cur.fields) == 0 {
		return nil
	}
	out := make([]pgwire.FieldDescription, len(cur.fields))
	copy(out, cur.fields)
	return out
}

// RowCount returns the rows affected or returned by the last execute, or
// -1 when unknown.
func (cur *Cursor) RowCount() int64 { return cur.rowsAffected }

// SetArraySize sets the default Fetchmany batch size.
func (cur *Cursor) SetArraySize(n int) {
	if n > 0 {
		cur.arraySize = n
	}
}

// Close releases the cursor. Closing an already-closed cursor, or one on a
// closed connection, is a no-op.
func (cur *Cursor) Close() error {
	cur.closed = true
	cur.rows = nil
	cur.fields = nil
	return nil
}

func (cur *Cursor) requireResult() error {
	if cur.closed {
		return &InterfaceError{Msg: "cursor is closed"}
	}
	if !cur.executed {
		return &InterfaceError{Msg: "fetch on unexecuted cursor"}
	}
	if len(cur.fields) == 0 {
		return &InterfaceError{Msg: "statement returned no result set"}
	}
	return nil
}
