package pgtypes

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// numeric binary layout: i16 ndigits, i16 weight, u16 sign, i16 dscale,
// then ndigits base-10000 digits. weight is the power of 10000 of the
// first digit.
const (
	numericPos uint16 = 0x0000
	numericNeg uint16 = 0x4000
	numericNaN uint16 = 0xC000
)

func decodeNumeric(_ *Registry, data []byte, format int16, _ *Params) (any, error) {
	if format == formatText {
		s := string(data)
		if s == "NaN" {
			return s, nil
		}
		return decimal.NewFromString(s)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("numeric: want at least 8 bytes, got %d", len(data))
	}
	ndigits := int(int16(binary.BigEndian.Uint16(data[0:2])))
	weight := int(int16(binary.BigEndian.Uint16(data[2:4])))
	sign := binary.BigEndian.Uint16(data[4:6])
	if sign == numericNaN {
		// No exact-decimal NaN exists; fall back to the string spelling.
		return "NaN", nil
	}
	if len(data) < 8+2*ndigits {
		return nil, fmt.Errorf("numeric: %d digits but only %d payload bytes", ndigits, len(data)-8)
	}

	coef := new(big.Int)
	tenK := big.NewInt(10000)
	d := new(big.Int)
	for i := 0; i < ndigits; i++ {
		coef.Mul(coef, tenK)
		d.SetInt64(int64(int16(binary.BigEndian.Uint16(data[8+2*i:]))))
		coef.Add(coef, d)
	}
	if sign == numericNeg {
		coef.Neg(coef)
	}
	exp := 4 * (weight + 1 - ndigits)
	return decimal.NewFromBigInt(coef, int32(exp)), nil
}

// encodeNumericWire converts an exact decimal to the base-10000 wire form.
// Ported from the server's set_var_from_str.
func encodeNumericWire(d decimal.Decimal) []byte {
	coef := new(big.Int).Abs(d.Coefficient())
	exp := int(d.Exponent())
	neg := d.Sign() < 0

	dscale := 0
	if exp < 0 {
		dscale = -exp
	}

	digits := coef.String()
	if coef.Sign() == 0 {
		out := make([]byte, 0, 8)
		out = appendInt16(out, 0) // ndigits
		out = appendInt16(out, 0) // weight
		out = binary.BigEndian.AppendUint16(out, numericPos)
		out = appendInt16(out, int16(dscale))
		return out
	}

	// Decimal weight of the most significant digit, then align groups of
	// four on the decimal point.
	dweight := len(digits) - 1 + exp
	weight := floorDiv(dweight, 4)
	pad := (weight+1)*4 - (dweight + 1)
	padded := strings.Repeat("0", pad) + digits
	if rem := len(padded) % 4; rem != 0 {
		padded += strings.Repeat("0", 4-rem)
	}

	groups := make([]int16, 0, len(padded)/4)
	for i := 0; i < len(padded); i += 4 {
		var g int16
		for _, c := range padded[i : i+4] {
			g = g*10 + int16(c-'0')
		}
		groups = append(groups, g)
	}

	// Strip zero groups at both ends; leading strips lower the weight.
	for len(groups) > 0 && groups[0] == 0 {
		groups = groups[1:]
		weight--
	}
	for len(groups) > 0 && groups[len(groups)-1] == 0 {
		groups = groups[:len(groups)-1]
	}

	sign := numericPos
	if neg {
		sign = numericNeg
	}

	out := make([]byte, 0, 8+2*len(groups))
	out = appendInt16(out, int16(len(groups)))
	out = appendInt16(out, int16(weight))
	out = binary.BigEndian.AppendUint16(out, sign)
	out = appendInt16(out, int16(dscale))
	for _, g := range groups {
		out = appendInt16(out, g)
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
