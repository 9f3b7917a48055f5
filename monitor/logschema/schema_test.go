package logschema

import "testing"

func TestValidate(t *testing.T) {
	err := Validate(EventFetchResult, map[string]interface{}{
		"seq":        uint64(3),
		"background": true,
		"outcome":    "ok",
		"assets":     50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = Validate(EventFetchResult, map[string]interface{}{
		"seq": uint64(3),
	})
	if err == nil {
		t.Fatalf("expected error for missing fields")
	}
	if err := Validate("unknown_event", nil); err != nil {
		t.Fatalf("unknown events should pass: %v", err)
	}
}

func TestKnownEvents(t *testing.T) {
	names := Known()
	if len(names) != 4 {
		t.Fatalf("expected 4 schemas, got %v", names)
	}
	found := false
	for _, n := range names {
		if n == EventStreamStatus {
			found = true
		}
	}
	if !found {
		t.Fatalf("stream_status not found in schemas")
	}
}
