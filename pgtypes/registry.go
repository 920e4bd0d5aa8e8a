package pgtypes

import (
	"fmt"
)

// Params carries the negotiated connection settings decoders depend on.
// integer_datetimes changes the wire layout of every date/time type, so it
// must be consulted at decode time, never when the registry is built.
type Params struct {
	IntegerDatetimes bool
	ClientEncoding   string
	TimeZone         string
	DateStyle        string
}

// DecodeFunc turns wire bytes in the given format into a Go value. The
// registry is passed through so container types can recurse into their
// element codecs.
type DecodeFunc func(r *Registry, data []byte, format int16, p *Params) (any, error)

// TypeSpec describes how one PostgreSQL type OID travels the wire.
type TypeSpec struct {
	OID             uint32
	Name            string
	PreferredFormat int16 // format requested for result columns
	Decode          DecodeFunc
}

// OIDs below denseLimit live in a flat array; the rest go to a map.
const denseLimit = 4096

// Registry maps type OIDs to codecs. The process-wide default registry is
// frozen; connections clone it so per-connection overrides never leak.
type Registry struct {
	dense  [denseLimit]*TypeSpec
	sparse map[uint32]*TypeSpec
	frozen bool
}

var defaultRegistry = buildDefaultRegistry()

// Default returns the shared, frozen default registry.
func Default() *Registry {
	return defaultRegistry
}

// Clone returns a mutable copy of the registry.
func (r *Registry) Clone() *Registry {
	c := &Registry{dense: r.dense, sparse: make(map[uint32]*TypeSpec, len(r.sparse))}
	for oid, spec := range r.sparse {
		c.sparse[oid] = spec
	}
	return c
}

// Register installs or replaces the codec for spec.OID. It fails on the
// frozen default registry; Clone first.
func (r *Registry) Register(spec TypeSpec) error {
	if r.frozen {
		return fmt.Errorf("registry is frozen; clone it before registering type %d", spec.OID)
	}
	s := spec
	if s.OID < denseLimit {
		r.dense[s.OID] = &s
	} else {
		if r.sparse == nil {
			r.sparse = make(map[uint32]*TypeSpec)
		}
		r.sparse[s.OID] = &s
	}
	return nil
}

// Lookup returns the codec for oid, or nil if none is registered.
func (r *Registry) Lookup(oid uint32) *TypeSpec {
	if oid < denseLimit {
		return r.dense[oid]
	}
	return r.sparse[oid]
}

// Known reports whether oid has a registered codec.
func (r *Registry) Known(oid uint32) bool {
	return r.Lookup(oid) != nil
}

// PreferredFormat returns the result format to request for oid. Unknown
// OIDs default to text.
func (r *Registry) PreferredFormat(oid uint32) int16 {
	if spec := r.Lookup(oid); spec != nil {
		return spec.PreferredFormat
	}
	return formatText
}

// Decode converts wire bytes to a Go value using the codec registered for
// oid. Unregistered OIDs fall back to passing the bytes through as a
// string; on text format that includes client_encoding conversion.
func (r *Registry) Decode(oid uint32, data []byte, format int16, p *Params) (any, error) {
	if data == nil {
		return nil, nil
	}
	spec := r.Lookup(oid)
	if spec == nil {
		if format == formatText {
			return decodeString(r, data, format, p)
		}
		// Opaque passthrough; the caller is expected to surface an
		// advisory for binary data of unknown types.
		return string(data), nil
	}
	v, err := spec.Decode(r, data, format, p)
	if err != nil {
		return nil, fmt.Errorf("decode %s (oid %d): %w", spec.Name, oid, err)
	}
	return v, nil
}

func register(r *Registry, spec TypeSpec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

func buildDefaultRegistry() *Registry {
	r := &Registry{}

	text := func(oid uint32, name string) TypeSpec {
		return TypeSpec{OID: oid, Name: name, PreferredFormat: formatText, Decode: decodeString}
	}

	for _, spec := range []TypeSpec{
		{OID: OIDBool, Name: "bool", PreferredFormat: formatBinary, Decode: decodeBool},
		{OID: OIDBytea, Name: "bytea", PreferredFormat: formatText, Decode: decodeBytea},
		{OID: OIDInt2, Name: "int2", PreferredFormat: formatBinary, Decode: decodeInt2},
		{OID: OIDInt4, Name: "int4", PreferredFormat: formatBinary, Decode: decodeInt4},
		{OID: OIDInt8, Name: "int8", PreferredFormat: formatBinary, Decode: decodeInt8},
		{OID: OIDOid, Name: "oid", PreferredFormat: formatText, Decode: decodeOid},
		{OID: OIDFloat4, Name: "float4", PreferredFormat: formatBinary, Decode: decodeFloat4},
		{OID: OIDFloat8, Name: "float8", PreferredFormat: formatBinary, Decode: decodeFloat8},
		{OID: OIDNumeric, Name: "numeric", PreferredFormat: formatBinary, Decode: decodeNumeric},
		{OID: OIDDate, Name: "date", PreferredFormat: formatText, Decode: decodeDate},
		{OID: OIDTime, Name: "time", PreferredFormat: formatText, Decode: decodeTime},
		{OID: OIDTimestamp, Name: "timestamp", PreferredFormat: formatBinary, Decode: decodeTimestamp},
		{OID: OIDTimestampTz, Name: "timestamptz", PreferredFormat: formatBinary, Decode: decodeTimestampTz},
		{OID: OIDInterval, Name: "interval", PreferredFormat: formatBinary, Decode: decodeInterval},
		{OID: OIDUUID, Name: "uuid", PreferredFormat: formatBinary, Decode: decodeUUID},
		text(OIDName, "name"),
		text(OIDText, "text"),
		text(OIDBPChar, "bpchar"),
		text(OIDVarchar, "varchar"),
		text(OIDCString, "cstring"),
		text(OIDUnknown, "unknown"),
		text(OIDMacaddr, "macaddr"),
	} {
		register(r, spec)
	}

	// Array types: all decode through the generic array codec and recurse
	// into the registry for their elements.
	for arrOID, name := range map[uint32]string{
		OIDBoolArray:        "_bool",
		OIDByteaArray:       "_bytea",
		OIDNameArray:        "_name",
		OIDInt2Array:        "_int2",
		OIDInt4Array:        "_int4",
		OIDTextArray:        "_text",
		OIDBPCharArray:      "_bpchar",
		OIDVarcharArray:     "_varchar",
		OIDInt8Array:        "_int8",
		OIDFloat4Array:      "_float4",
		OIDFloat8Array:      "_float8",
		OIDTimestampArray:   "_timestamp",
		OIDDateArray:        "_date",
		OIDTimeArray:        "_time",
		OIDTimestampTzArray: "_timestamptz",
		OIDIntervalArray:    "_interval",
		OIDNumericArray:     "_numeric",
		OIDCStringArray:     "_cstring",
		OIDUUIDArray:        "_uuid",
	} {
		register(r, TypeSpec{OID: arrOID, Name: name, PreferredFormat: formatBinary, Decode: decodeArrayOf(elementOID[arrOID])})
	}

	r.frozen = true
	return r
}
