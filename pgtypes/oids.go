package pgtypes

// PostgreSQL type OIDs handled by the default registry.
const (
	OIDBool        uint32 = 16
	OIDBytea       uint32 = 17
	OIDName        uint32 = 19
	OIDInt8        uint32 = 20
	OIDInt2        uint32 = 21
	OIDInt4        uint32 = 23
	OIDText        uint32 = 25
	OIDOid         uint32 = 26
	OIDFloat4      uint32 = 700
	OIDFloat8      uint32 = 701
	OIDUnknown     uint32 = 705
	OIDMacaddr     uint32 = 829
	OIDBPChar      uint32 = 1042
	OIDVarchar     uint32 = 1043
	OIDDate        uint32 = 1082
	OIDTime        uint32 = 1083
	OIDTimestamp   uint32 = 1114
	OIDTimestampTz uint32 = 1184
	OIDInterval    uint32 = 1186
	OIDNumeric     uint32 = 1700
	OIDCString     uint32 = 2275
	OIDUUID        uint32 = 2950
)

// Array type OIDs.
const (
	OIDBoolArray        uint32 = 1000
	OIDByteaArray       uint32 = 1001
	OIDNameArray        uint32 = 1003
	OIDInt2Array        uint32 = 1005
	OIDInt4Array        uint32 = 1007
	OIDTextArray        uint32 = 1009
	OIDBPCharArray      uint32 = 1014
	OIDVarcharArray     uint32 = 1015
	OIDInt8Array        uint32 = 1016
	OIDFloat4Array      uint32 = 1021
	OIDFloat8Array      uint32 = 1022
	OIDTimestampArray   uint32 = 1115
	OIDDateArray        uint32 = 1182
	OIDTimeArray        uint32 = 1183
	OIDTimestampTzArray uint32 = 1185
	OIDIntervalArray    uint32 = 1187
	OIDNumericArray     uint32 = 1231
	OIDCStringArray     uint32 = 1263
	OIDUUIDArray        uint32 = 2951
)

// elementOID maps an array type OID to its element type OID.
var elementOID = map[uint32]uint32{
	OIDBoolArray:        OIDBool,
	OIDByteaArray:       OIDBytea,
	OIDNameArray:        OIDName,
	OIDInt2Array:        OIDInt2,
	OIDInt4Array:        OIDInt4,
	OIDTextArray:        OIDText,
	OIDBPCharArray:      OIDBPChar,
	OIDVarcharArray:     OIDVarchar,
	OIDInt8Array:        OIDInt8,
	OIDFloat4Array:      OIDFloat4,
	OIDFloat8Array:      OIDFloat8,
	OIDTimestampArray:   OIDTimestamp,
	OIDDateArray:        OIDDate,
	OIDTimeArray:        OIDTime,
	OIDTimestampTzArray: OIDTimestampTz,
	OIDIntervalArray:    OIDInterval,
	OIDNumericArray:     OIDNumeric,
	OIDCStringArray:     OIDCString,
	OIDUUIDArray:        OIDUUID,
}

// arrayOID maps an element type OID to its array type OID.
var arrayOID = map[uint32]uint32{}

func init() {
	for arr, elem := range elementOID {
		arrayOID[elem] = arr
	}
}
