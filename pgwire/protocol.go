package pgwire

// Protocol version 3.0.
const ProtocolVersion int32 = 196608 // 3 << 16

// SSL request code sent before the real startup message.
const SSLRequestCode int32 = 80877103

// Cancel request code, sent on a separate connection to abort a running
// query. The payload carries the backend PID and secret key.
const CancelRequestCode int32 = 80877102

// DefaultMaxMessageSize is the largest backend message the reader accepts.
// Anything bigger is treated as a framing error.
const DefaultMaxMessageSize int32 = 1 << 30 // 1 GiB

// Frontend (client → server) message types.
const (
	MsgBind            byte = 'B'
	MsgClose           byte = 'C'
	MsgCopyFail        byte = 'f'
	MsgDescribe        byte = 'D'
	MsgExecute         byte = 'E'
	MsgFlush           byte = 'H'
	MsgParse           byte = 'P'
	MsgPasswordMessage byte = 'p'
	MsgQuery           byte = 'Q'
	MsgSync            byte = 'S'
	MsgTerminate       byte = 'X'
)

// Backend (server → client) message types.
const (
	MsgAuthentication       byte = 'R'
	MsgBackendKeyData       byte = 'K'
	MsgBindComplete         byte = '2'
	MsgCloseComplete        byte = '3'
	MsgCommandComplete      byte = 'C'
	MsgCopyData             byte = 'd'
	MsgCopyDone             byte = 'c'
	MsgCopyInResponse       byte = 'G'
	MsgCopyOutResponse      byte = 'H'
	MsgDataRow              byte = 'D'
	MsgEmptyQueryResponse   byte = 'I'
	MsgErrorResponse        byte = 'E'
	MsgNoData               byte = 'n'
	MsgNoticeResponse       byte = 'N'
	MsgNotificationResponse byte = 'A'
	MsgParameterDescription byte = 't'
	MsgParameterStatus      byte = 'S'
	MsgParseComplete        byte = '1'
	MsgPortalSuspended      byte = 's'
	MsgReadyForQuery        byte = 'Z'
	MsgRowDescription       byte = 'T'
)

// Authentication sub-types (carried inside 'R' messages).
const (
	AuthOk                int32 = 0
	AuthKerberosV5        int32 = 2
	AuthCleartextPassword int32 = 3
	AuthCryptPassword     int32 = 4
	AuthMD5Password       int32 = 5
	AuthSCMCredential     int32 = 6
	AuthGSS               int32 = 7
	AuthGSSContinue       int32 = 8
	AuthSSPI              int32 = 9
	AuthSASL              int32 = 10
	AuthSASLContinue      int32 = 11
	AuthSASLFinal         int32 = 12
)

// Transaction status indicators in ReadyForQuery.
const (
	TxIdle   byte = 'I'
	TxInTx   byte = 'T'
	TxFailed byte = 'E'
)

// Object kinds for Describe and Close.
const (
	KindStatement byte = 'S'
	KindPortal    byte = 'P'
)

// Format codes used in Bind and RowDescription.
const (
	FormatText   int16 = 0
	FormatBinary int16 = 1
)

// Field codes inside ErrorResponse and NoticeResponse.
const (
	FieldSeverity         byte = 'S'
	FieldCode             byte = 'C'
	FieldMessage          byte = 'M'
	FieldDetail           byte = 'D'
	FieldHint             byte = 'H'
	FieldPosition         byte = 'P'
	FieldInternalPosition byte = 'p'
	FieldInternalQuery    byte = 'q'
	FieldWhere            byte = 'W'
	FieldSchema           byte = 's'
	FieldTable            byte = 't'
	FieldColumn           byte = 'c'
	FieldDataType         byte = 'd'
	FieldConstraint       byte = 'n'
	FieldFile             byte = 'F'
	FieldLine             byte = 'L'
	FieldRoutine          byte = 'R'
)
