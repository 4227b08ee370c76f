package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ValueType tags the Go type carried by a Value.
type ValueType byte

const (
	ValueTypeNull ValueType = iota
	ValueTypeInt
	ValueTypeFloat
	ValueTypeString
	ValueTypeBool
)

// Value holds one typed column value. It is the unit both row payloads and
// ORDER BY sort keys are built from. The zero Value is null.
type Value struct {
	typ  ValueType
	data any
}

// NewValue builds a Value from a Go value, promoting int/float32 the same
// way the wire encoding expects (int64/float64 internally).
func NewValue(data any) (Value, error) {
	switch v := data.(type) {
	case nil:
		return Value{typ: ValueTypeNull}, nil
	case int:
		return Value{typ: ValueTypeInt, data: int64(v)}, nil
	case int64:
		return Value{typ: ValueTypeInt, data: v}, nil
	case float32:
		return Value{typ: ValueTypeFloat, data: float64(v)}, nil
	case float64:
		return Value{typ: ValueTypeFloat, data: v}, nil
	case string:
		return Value{typ: ValueTypeString, data: v}, nil
	case bool:
		return Value{typ: ValueTypeBool, data: v}, nil
	default:
		return Value{}, &UnsupportedTypeError{Message: fmt.Sprintf("unsupported value type: %T", data)}
	}
}

// Null returns the null Value.
func Null() Value { return Value{typ: ValueTypeNull} }

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsNull() bool    { return v.typ == ValueTypeNull }

func (v Value) Int64() (int64, bool) {
	i, ok := v.data.(int64)
	return i, ok
}

func (v Value) Float64() (float64, bool) {
	f, ok := v.data.(float64)
	return f, ok
}

func (v Value) String_() (string, bool) {
	s, ok := v.data.(string)
	return s, ok
}

func (v Value) Bool() (bool, bool) {
	b, ok := v.data.(bool)
	return b, ok
}

// SizeBytes estimates v's externalized storage cost, used for the manager's
// chunk-size / quota accounting (spec §4.4 "external_byte_size(rows)"). It
// need not match the exact encoded length, only be a stable, comparable
// proxy for it.
func (v Value) SizeBytes() int64 {
	switch v.typ {
	case ValueTypeNull:
		return 1
	case ValueTypeInt, ValueTypeFloat:
		return 9
	case ValueTypeBool:
		return 2
	case ValueTypeString:
		s, _ := v.String_()
		return int64(5 + len(s))
	default:
		return 1
	}
}

// Encode serializes v as a self-describing tag+payload byte string that
// round-trips exactly via DecodeValue (spec §4.2 row payload encoding).
func (v Value) Encode(buf *bytes.Buffer) error {
	buf.WriteByte(byte(v.typ))
	switch v.typ {
	case ValueTypeNull:
		return nil
	case ValueTypeInt:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.data.(int64)))
		_, err := buf.Write(tmp[:])
		return err
	case ValueTypeFloat:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.data.(float64)))
		_, err := buf.Write(tmp[:])
		return err
	case ValueTypeString:
		s := v.data.(string)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		if _, err := buf.Write(lenBuf[:]); err != nil {
			return err
		}
		_, err := buf.WriteString(s)
		return err
	case ValueTypeBool:
		if v.data.(bool) {
			return buf.WriteByte(1)
		}
		return buf.WriteByte(0)
	default:
		return &UnsupportedTypeError{Message: fmt.Sprintf("unknown value type tag: %d", v.typ)}
	}
}

// DecodeValue reads one tag+payload Value from r, the inverse of Encode.
func DecodeValue(r io.Reader) (Value, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return Value{}, fmt.Errorf("read value tag: %w", err)
	}
	typ := ValueType(tagBuf[0])
	switch typ {
	case ValueTypeNull:
		return Value{typ: ValueTypeNull}, nil
	case ValueTypeInt:
		var tmp [8]byte
		if _, err := io.ReadFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("read int value: %w", err)
		}
		return Value{typ: ValueTypeInt, data: int64(binary.BigEndian.Uint64(tmp[:]))}, nil
	case ValueTypeFloat:
		var tmp [8]byte
		if _, err := io.ReadFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("read float value: %w", err)
		}
		return Value{typ: ValueTypeFloat, data: math.Float64frombits(binary.BigEndian.Uint64(tmp[:]))}, nil
	case ValueTypeString:
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return Value{}, fmt.Errorf("read string length: %w", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		strBytes := make([]byte, n)
		if _, err := io.ReadFull(r, strBytes); err != nil {
			return Value{}, fmt.Errorf("read string value: %w", err)
		}
		return Value{typ: ValueTypeString, data: string(strBytes)}, nil
	case ValueTypeBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Value{}, fmt.Errorf("read bool value: %w", err)
		}
		return Value{typ: ValueTypeBool, data: b[0] == 1}, nil
	default:
		return Value{}, &UnsupportedTypeError{Message: fmt.Sprintf("unknown value type tag: %d", typ)}
	}
}
