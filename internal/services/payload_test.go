package services

import (
	"testing"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

func TestDecodePayloadTolerance(t *testing.T) {
	if got := decodePayload(nil); len(got) != 0 {
		t.Fatalf("nil payload should decode to empty map, got %v", got)
	}
	if got := decodePayload(datatypes.JSON(`not json`)); len(got) != 0 {
		t.Fatalf("garbage payload should decode to empty map, got %v", got)
	}
	got := decodePayload(datatypes.JSON(`{"timeSpent": 120}`))
	if payloadInt(got, "timeSpent") != 120 {
		t.Fatalf("decoded payload lost timeSpent: %v", got)
	}
}

func TestPayloadAccessors(t *testing.T) {
	id := uuid.New()
	payload := decodePayload(datatypes.JSON(`{
		"count": 3,
		"countStr": " 7 ",
		"pct": 87.5,
		"pctStr": "42.5",
		"done": true,
		"doneStr": "TRUE",
		"name": "  intro  ",
		"videoId": "` + id.String() + `",
		"badId": "not-a-uuid"
	}`))

	if got := payloadInt(payload, "count"); got != 3 {
		t.Fatalf("int=%d, want 3", got)
	}
	if got := payloadInt(payload, "countStr"); got != 7 {
		t.Fatalf("int from string=%d, want 7", got)
	}
	if got := payloadInt(payload, "missing"); got != 0 {
		t.Fatalf("missing int=%d, want 0", got)
	}
	if got := payloadInt(payload, "name"); got != 0 {
		t.Fatalf("mistyped int=%d, want 0", got)
	}

	if got := payloadFloat(payload, "pct"); got != 87.5 {
		t.Fatalf("float=%v, want 87.5", got)
	}
	if got := payloadFloat(payload, "pctStr"); got != 42.5 {
		t.Fatalf("float from string=%v, want 42.5", got)
	}

	if !payloadBool(payload, "done") || !payloadBool(payload, "doneStr") {
		t.Fatalf("bool accessors failed: %v", payload)
	}
	if payloadBool(payload, "missing") {
		t.Fatalf("missing bool should be false")
	}

	if got := payloadString(payload, "name"); got != "intro" {
		t.Fatalf("string=%q, want trimmed %q", got, "intro")
	}

	parsed, ok := payloadUUID(payload, "videoId")
	if !ok || parsed != id {
		t.Fatalf("uuid=%v ok=%v, want %v", parsed, ok, id)
	}
	if _, ok := payloadUUID(payload, "badId"); ok {
		t.Fatalf("malformed uuid must not parse")
	}
	if _, ok := payloadUUID(payload, "missing"); ok {
		t.Fatalf("missing uuid must not parse")
	}
}
