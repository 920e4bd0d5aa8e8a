package pgtypes

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// serverEncodings maps PostgreSQL client_encoding names to character set
// codecs. A nil entry means the bytes are already valid as-is (UTF-8 or
// plain ASCII).
var serverEncodings = map[string]encoding.Encoding{
	"utf8":      nil,
	"utf-8":     nil,
	"unicode":   nil,
	"sql_ascii": nil,

	"latin1": charmap.ISO8859_1,
	"latin2": charmap.ISO8859_2,
	"latin3": charmap.ISO8859_3,
	"latin4": charmap.ISO8859_4,
	"latin5": charmap.ISO8859_9,
	"latin6": charmap.ISO8859_10,
	"latin7": charmap.ISO8859_13,
	"latin8": charmap.ISO8859_14,
	"latin9": charmap.ISO8859_15,

	"iso_8859_5": charmap.ISO8859_5,
	"iso_8859_6": charmap.ISO8859_6,
	"iso_8859_7": charmap.ISO8859_7,
	"iso_8859_8": charmap.ISO8859_8,

	"koi8":  charmap.KOI8R,
	"koi8r": charmap.KOI8R,
	"koi8u": charmap.KOI8U,

	"win866":  charmap.CodePage866,
	"win874":  charmap.Windows874,
	"win1250": charmap.Windows1250,
	"win1251": charmap.Windows1251,
	"win1252": charmap.Windows1252,
	"win1253": charmap.Windows1253,
	"win1254": charmap.Windows1254,
	"win1255": charmap.Windows1255,
	"win1256": charmap.Windows1256,
	"win1257": charmap.Windows1257,
	"win1258": charmap.Windows1258,

	"euc_jp":  japanese.EUCJP,
	"sjis":    japanese.ShiftJIS,
	"euc_kr":  korean.EUCKR,
	"uhc":     korean.EUCKR,
	"euc_cn":  simplifiedchinese.GBK,
	"gbk":     simplifiedchinese.GBK,
	"gb18030": simplifiedchinese.GB18030,
	"big5":    traditionalchinese.Big5,
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, ok := serverEncodings[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported client_encoding %q", name)
	}
	return enc, nil
}

// decodeText converts server bytes to a Go string honoring client_encoding.
func decodeText(data []byte, p *Params) (string, error) {
	if p == nil || p.ClientEncoding == "" {
		return string(data), nil
	}
	enc, err := lookupEncoding(p.ClientEncoding)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s text: %w", p.ClientEncoding, err)
	}
	return string(out), nil
}

// encodeText converts a Go string to server bytes honoring client_encoding.
func encodeText(s string, p *Params) ([]byte, error) {
	if p == nil || p.ClientEncoding == "" {
		return []byte(s), nil
	}
	enc, err := lookupEncoding(p.ClientEncoding)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return []byte(s), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode %s text: %w", p.ClientEncoding, err)
	}
	return out, nil
}
