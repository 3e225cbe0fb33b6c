package eventstore

import (
	"path/filepath"
	"testing"

	"stairled-core/sensor"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestStore_EmitThenRecent(t *testing.T) {
	s := openTestStore(t)
	s.Emit(sensor.TriggerEvent{SensorName: "step-1", Value: 600, AnimationName: "fade-up", TimestampMs: 1000})
	s.Emit(sensor.TriggerEvent{SensorName: "step-2", Value: 700, AnimationName: "fade-up", TimestampMs: 2000})

	recs, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].SensorName != "step-2" {
		t.Fatalf("expected newest-first order, got %+v", recs[0])
	}
}

func TestStore_RecentRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		s.Emit(sensor.TriggerEvent{SensorName: "step-1", Value: int32(i), AnimationName: "fade-up", TimestampMs: int64(i)})
	}
	recs, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}
