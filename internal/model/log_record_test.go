package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		ChainID:    31337,
		Sequence:   12,
		OpID:       "6f1c1d8e-3f0a-4c55-9b38-1f0d2f7a9e11",
		LogIndex:   2,
		Address:    "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
		Topics:     []string{"0xaaa", "0xbbb"},
		Data:       "0xdeadbeef",
		Timestamp:  1700000000,
		RecordedAt: "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(b), `"op_id":"6f1c1d8e`) {
		t.Fatalf("op_id missing from %s", b)
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestOperationOmitsUnsetFields(t *testing.T) {
	op := Operation{Op: "getReserves"}
	b, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != `{"op":"getReserves"}` {
		t.Fatalf("unexpected encoding: %s", b)
	}
}
