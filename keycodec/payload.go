package keycodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/INLOpen/nexusqbuf/core"
)

// EncodeRowPayload serializes row as the value half of a composite key/value
// pair: a column count followed by each column's tag+payload Value encoding
// (spec §4.2 row payload encoding). Columns are stored in the schema's
// declared order, independent of which columns happen to be ORDER BY keys.
func EncodeRowPayload(row core.Row) ([]byte, error) {
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)

	var countBuf [4]byte
	putUint32(countBuf[:], uint32(len(row)))
	buf.Write(countBuf[:])

	for i, v := range row {
		if err := v.Encode(buf); err != nil {
			return nil, fmt.Errorf("keycodec: encode column %d: %w", i, err)
		}
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// DecodeRowPayload is the inverse of EncodeRowPayload.
func DecodeRowPayload(data []byte) (core.Row, error) {
	r := bytes.NewReader(data)
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, fmt.Errorf("keycodec: read column count: %w", err)
	}
	n := getUint32(countBuf[:])

	row := make(core.Row, n)
	for i := uint32(0); i < n; i++ {
		v, err := core.DecodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("keycodec: decode column %d: %w", i, err)
		}
		row[i] = v
	}
	return row, nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
