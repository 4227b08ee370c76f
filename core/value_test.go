package core

import (
	"bytes"
	"testing"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []any{nil, int64(42), -7, 3.14, "hello", true, false}

	for _, c := range cases {
		v, err := NewValue(c)
		if err != nil {
			t.Fatalf("NewValue(%v): %v", c, err)
		}
		var buf bytes.Buffer
		if err := v.Encode(&buf); err != nil {
			t.Fatalf("Encode(%v): %v", c, err)
		}
		got, err := DecodeValue(&buf)
		if err != nil {
			t.Fatalf("DecodeValue(%v): %v", c, err)
		}
		if got.typ != v.typ {
			t.Fatalf("type mismatch for %v: got %v want %v", c, got.typ, v.typ)
		}
	}
}

func TestNewValueUnsupportedType(t *testing.T) {
	_, err := NewValue(struct{}{})
	if !IsUnsupportedError(err) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
}

func TestValueIsNull(t *testing.T) {
	if !Null().IsNull() {
		t.Fatal("Null() should be null")
	}
	v, _ := NewValue(int64(0))
	if v.IsNull() {
		t.Fatal("zero int should not be null")
	}
}
