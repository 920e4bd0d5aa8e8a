package pglet

import (
	"strconv"
	"strings"

	"pglet/pgtypes"
	"pglet/pgwire"
)

// execResult is what one statement execution produced.
type execResult struct {
	fields       []pgwire.FieldDescription
	rows         [][]any
	rowsAffected int64 // -1 when unknown
	tag          string
}

// applyTag records rows-affected from a CommandComplete tag such as
// "SELECT 3" or "INSERT 0 1".
func (r *execResult) applyTag(tag string) {
	parts := strings.Split(tag, " ")
	switch parts[0] {
	case "INSERT", "DELETE", "UPDATE", "MOVE", "FETCH", "COPY", "SELECT":
		if n, err := strconv.ParseInt(parts[len(parts)-1], 10, 64); err == nil {
			r.rowsAffected = n
		}
	}
}

// encodedParam is one parameter ready for Bind.
type encodedParam struct {
	oid    uint32
	format int16
	data   []byte
}

// encodeParams runs each value through the registry's encoders, producing
// the OIDs that key the statement cache and the wire values for Bind.
func (c *Connection) encodeParams(values []pgtypes.Value) ([]encodedParam, error) {
	out := make([]encodedParam, len(values))
	for i, v := range values {
		oid, format, data, err := c.registry.Encode(v, &c.typeParams)
		if err != nil {
			return nil, &InterfaceError{Msg: "parameter " + strconv.Itoa(i+1) + ": " + err.Error()}
		}
		out[i] = encodedParam{oid: oid, format: format, data: data}
	}
	return out, nil
}

// execExtended runs one statement over the extended-query protocol,
// preparing it first on a cache miss. Caller holds the connection lock.
func (c *Connection) execExtended(sql string, values []pgtypes.Value) (*execResult, error) {
	params, err := c.encodeParams(values)
	if err != nil {
		return nil, err
	}
	oids := make([]uint32, len(params))
	for i, p := range params {
		oids[i] = p.oid
	}

	ps, err := c.prepare(sql, oids)
	if err != nil {
		return nil, err
	}
	return c.execPrepared(ps, params)
}

// prepare returns the cached statement for (sql, oids) or runs a
// Parse/Describe/Sync round-trip to create it.
func (c *Connection) prepare(sql string, oids []uint32) (*preparedStatement, error) {
	key := stmtKey(sql, oids)
	if ps, ok := c.cache.get(key); ok {
		return ps, nil
	}

	ps := &preparedStatement{
		name:      "pglet_s_" + strconv.FormatUint(c.stmtCounter, 10),
		sql:       sql,
		paramOIDs: oids,
	}
	c.stmtCounter++

	c.state = stateBusy
	c.writer.WriteParse(ps.name, sql, oids)
	c.writer.WriteDescribe(pgwire.KindStatement, ps.name)
	c.writer.WriteSync()
	if err := c.flush(); err != nil {
		return nil, err
	}

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
		case pgwire.MsgParseComplete:
		case pgwire.MsgParameterDescription:
			serverOIDs, err := pgwire.ParseParameterDescription(payload)
			if err != nil {
				return nil, c.abort(err)
			}
			if len(serverOIDs) != len(oids) {
				return nil, c.abort(protocolErrorf(
					"server described %d parameters, statement has %d", len(serverOIDs), len(oids)))
			}
		case pgwire.MsgRowDescription:
			fields, err := pgwire.ParseRowDescription(payload)
			if err != nil {
				return nil, c.abort(err)
			}
			ps.fields = fields
		case pgwire.MsgNoData:
			ps.fields = nil
		case pgwire.MsgErrorResponse:
			if firstErr == nil {
				firstErr = c.parseError(payload)
			}
		case pgwire.MsgReadyForQuery:
			c.finishReady(payload)
			if firstErr != nil {
				return nil, firstErr
			}
			// Result columns come back in each type's preferred format.
			ps.resultFormats = make([]int16, len(ps.fields))
			for i, f := range ps.fields {
				ps.resultFormats[i] = c.registry.PreferredFormat(f.DataTypeOID)
			}
			c.cache.add(key, ps)
			return ps, c.closeEvicted()
		default:
			return nil, c.abort(protocolErrorf("unexpected message %q during prepare", tag))
		}
	}
}

// closeEvicted frees server-side statements displaced from the cache:
// Close(Statement) for each plus a Sync, drained to ReadyForQuery. Caller
// holds the lock and the connection is at a request boundary.
func (c *Connection) closeEvicted() error {
	names := c.cache.takeEvicted()
	if len(names) == 0 {
		return nil
	}
	c.state = stateBusy
	for _, name := range names {
		c.writer.WriteClose(pgwire.KindStatement, name)
		c.log.WithField("statement", name).Debug("closing evicted prepared statement")
	}
	c.writer.WriteSync()
	if err := c.flush(); err != nil {
		return err
	}
	for {
		tag, payload, err := c.receive()
		if err != nil {
			return err
		}
		switch tag {
		case pgwire.MsgCloseComplete:
		case pgwire.MsgErrorResponse:
			// The statement is gone either way; log and keep draining.
			c.log.WithError(c.parseError(payload)).Warn("close evicted statement")
		case pgwire.MsgReadyForQuery:
			c.finishReady(payload)
			return nil
		default:
			return c.abort(protocolErrorf("unexpected message %q while closing statements", tag))
		}
	}
}

// execPrepared binds and runs one execution of a prepared statement as a
// single flush: Bind, Execute, Close(Portal), Sync.
func (c *Connection) execPrepared(ps *preparedStatement, params []encodedParam) (*execResult, error) {
	formats := make([]int16, len(params))
	values := make([][]byte, len(params))
	for i, p := range params {
		formats[i] = p.format
		values[i] = p.data
	}

	c.state = stateBusy
	c.writer.WriteBind("", ps.name, formats, values, ps.resultFormats)
	c.writer.WriteExecute("", 0)
	c.writer.WriteClose(pgwire.KindPortal, "")
	c.writer.WriteSync()
	if err := c.flush(); err != nil {
		return nil, err
	}

	res := &execResult{fields: ps.fields, rowsAffected: -1}
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
		case pgwire.MsgBindComplete, pgwire.MsgCloseComplete:
		case pgwire.MsgDataRow:
			if firstErr != nil {
				continue
			}
			row, err := c.decodeRow(ps.fields, ps.resultFormats, payload)
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
		case pgwire.MsgPortalSuspended:
			// Executions run with no row limit, so suspension only shows
			// up with a misbehaving server; the portal close already in
			// the pipeline ends the cycle either way.
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
			return nil, c.abort(protocolErrorf("unexpected message %q during execute", tag))
		}
	}
}
