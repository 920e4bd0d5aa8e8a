package pglet

import (
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"pglet/pgwire"
)

// preparedStatement is a server-side statement plus everything needed to
// bind and decode against it.
type preparedStatement struct {
	name          string
	sql           string
	paramOIDs     []uint32
	fields        []pgwire.FieldDescription
	resultFormats []int16
}

// returnsRows reports whether executions of the statement produce a result
// set or only a completion tag.
func (ps *preparedStatement) returnsRows() bool { return len(ps.fields) > 0 }

// stmtCache is the per-connection prepared-statement LRU, keyed by SQL
// text plus the inferred parameter OIDs. Evicted statements are collected
// and closed on the server at the next safe point.
type stmtCache struct {
	lru     *lru.Cache[string, *preparedStatement]
	evicted []string
}

func newStmtCache(bound int) *stmtCache {
	c := &stmtCache{}
	if bound <= 0 {
		bound = math.MaxInt32 // effectively unbounded
	}
	c.lru, _ = lru.NewWithEvict(bound, func(_ string, ps *preparedStatement) {
		c.evicted = append(c.evicted, ps.name)
	})
	return c
}

func (c *stmtCache) get(key string) (*preparedStatement, bool) {
	return c.lru.Get(key)
}

func (c *stmtCache) add(key string, ps *preparedStatement) {
	c.lru.Add(key, ps)
}

// takeEvicted returns and clears the statement names displaced since the
// last call.
func (c *stmtCache) takeEvicted() []string {
	out := c.evicted
	c.evicted = nil
	return out
}

// stmtKey builds the cache key from the SQL text and parameter OIDs.
func stmtKey(sql string, oids []uint32) string {
	var b strings.Builder
	b.WriteString(sql)
	for _, oid := range oids {
		b.WriteByte(0)
		b.WriteString(strconv.FormatUint(uint64(oid), 10))
	}
	return b.String()
}
