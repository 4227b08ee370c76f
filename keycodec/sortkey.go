// Package keycodec turns a row's ORDER BY fields into a byte string whose
// natural lexicographic order matches the logical ORDER BY order, and
// assembles the composite storage keys the backend scans over (spec §4.2).
package keycodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/INLOpen/nexusqbuf/core"
)

// leadNullsFirst, leadNonNull and leadNullsLast are the leading sentinel
// bytes that place NULLs before or after every non-null value under plain
// byte-order comparison.
// A non-null value is tagged with nonNullLead regardless of direction; NULL
// placement is controlled purely by which lead byte is chosen.
const (
	leadNullsFirst byte = 0x00
	leadNonNull    byte = 0x01
	leadNullsLast  byte = 0xFF
)

// EncodeSortKey writes the byte-comparable sort key for row, given its
// resolved ORDER BY fields. Byte-order comparison of two such keys always
// agrees with the logical multi-field ORDER BY comparison of the rows they
// were built from (spec §4.2, §8 ordering property).
func EncodeSortKey(row core.Row, orderBy []core.ResolvedOrderByField) ([]byte, error) {
	out := make([]byte, 0, 16*len(orderBy))
	for _, f := range orderBy {
		if f.Position < 0 || f.Position >= len(row) {
			return nil, fmt.Errorf("keycodec: order by position %d out of range for row of %d columns", f.Position, len(row))
		}
		v := row[f.Position]
		enc, err := encodeField(v, f)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

// encodeField encodes a single ORDER BY field's contribution to the sort
// key: one lead byte for null placement, followed by the value's
// fixed-width byte-comparable encoding (absent for NULL).
func encodeField(v core.Value, f core.ResolvedOrderByField) ([]byte, error) {
	if v.IsNull() {
		lead := leadNullsFirst
		if f.Nulls == core.NullsLast {
			lead = leadNullsLast
		}
		// A NULL is the lead byte alone. Its lead byte always differs from
		// leadNonNull, so a NULL against a non-null value is decided at this
		// byte, and two NULLs continue with the next field at the same offset.
		return []byte{lead}, nil
	}

	body, err := encodeValueBody(v)
	if err != nil {
		return nil, err
	}
	if f.Direction == core.Descending {
		invert(body)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, leadNonNull)
	out = append(out, body...)
	return out, nil
}

// encodeValueBody returns the ascending, byte-comparable encoding of v's
// payload, without any lead byte.
func encodeValueBody(v core.Value) ([]byte, error) {
	switch v.Type() {
	case core.ValueTypeInt:
		i, _ := v.Int64()
		buf := make([]byte, 8)
		// Flip the sign bit so that two's-complement negative integers sort
		// below positive ones under plain byte-order comparison.
		binary.BigEndian.PutUint64(buf, uint64(i)^(1<<63))
		return buf, nil
	case core.ValueTypeFloat:
		f, _ := v.Float64()
		if f == 0 {
			f = 0 // -0.0 equals +0.0, so both encode as +0.0
		}
		bits := math.Float64bits(f)
		if f < 0 {
			bits = ^bits
		} else {
			bits ^= 1 << 63
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, bits)
		return buf, nil
	case core.ValueTypeBool:
		b, _ := v.Bool()
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case core.ValueTypeString:
		s, _ := v.String_()
		// Escape-and-terminate rather than length-prefix: a length prefix
		// compares before the string's own bytes, so "ac" (len 2) would sort
		// before "abc" (len 3) even though "abc" < "ac" lexicographically.
		// Escaping embedded 0x00 bytes as 0x00 0xFF and terminating with
		// 0x00 0x00 keeps the encoding prefix-free and byte-comparable: a
		// string that ends here (terminator's second byte 0x00) always
		// sorts below one that continues with any further byte (an escaped
		// NUL's second byte 0xFF, or any non-zero byte), matching plain
		// string comparison.
		out := make([]byte, 0, len(s)+2)
		for i := 0; i < len(s); i++ {
			if s[i] == 0x00 {
				out = append(out, 0x00, 0xFF)
			} else {
				out = append(out, s[i])
			}
		}
		out = append(out, 0x00, 0x00)
		return out, nil
	default:
		return nil, fmt.Errorf("keycodec: cannot encode sort key for value type %d", v.Type())
	}
}

// invert bitwise-complements b in place, turning an ascending byte-order
// encoding into its descending counterpart.
func invert(b []byte) {
	for i := range b {
		b[i] = ^b[i]
	}
}
