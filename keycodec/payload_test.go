package keycodec

import (
	"testing"

	"github.com/INLOpen/nexusqbuf/core"
)

func TestRowPayloadRoundTrip(t *testing.T) {
	row := core.Row{
		mustValue(t, int64(42)),
		mustValue(t, "hello"),
		core.Null(),
		mustValue(t, 3.5),
		mustValue(t, true),
	}

	data, err := EncodeRowPayload(row)
	if err != nil {
		t.Fatalf("EncodeRowPayload: %v", err)
	}

	got, err := DecodeRowPayload(data)
	if err != nil {
		t.Fatalf("DecodeRowPayload: %v", err)
	}

	if len(got) != len(row) {
		t.Fatalf("column count mismatch: got %d want %d", len(got), len(row))
	}
	for i := range row {
		if got[i].Type() != row[i].Type() {
			t.Fatalf("column %d type mismatch: got %v want %v", i, got[i].Type(), row[i].Type())
		}
	}
}

func TestRowPayloadEmptyRow(t *testing.T) {
	data, err := EncodeRowPayload(core.Row{})
	if err != nil {
		t.Fatalf("EncodeRowPayload: %v", err)
	}
	got, err := DecodeRowPayload(data)
	if err != nil {
		t.Fatalf("DecodeRowPayload: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty row, got %d columns", len(got))
	}
}
