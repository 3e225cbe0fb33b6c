package configstore

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.Set("pinmapper.pwm_hz", 52000); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, ok, err := s.Get("pinmapper.pwm_hz")
	if err != nil || !ok {
		t.Fatalf("Get: raw=%s ok=%v err=%v", raw, ok, err)
	}
	if string(raw) != "52000" {
		t.Fatalf("expected 52000, got %s", raw)
	}
}

func TestStore_GetMissingKey(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get("nope.nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing key")
	}
}

func TestStore_KeysReturnsMatchingPrefixOnly(t *testing.T) {
	s := openTestStore(t)
	_ = s.Set("animations.one", map[string]any{"name": "one"})
	_ = s.Set("animations.two", map[string]any{"name": "two"})
	_ = s.Set("sensors", []any{})

	keys, err := s.Keys("animations.")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}
}

func TestSeedDefaults_SkipsAlreadySetKeys(t *testing.T) {
	s := openTestStore(t)
	if err := s.Set("pinmapper.pwm_hz", 12345); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := SeedDefaults(s); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	raw, ok, err := s.Get("pinmapper.pwm_hz")
	if err != nil || !ok {
		t.Fatalf("Get: %v %v", ok, err)
	}
	if string(raw) != "12345" {
		t.Fatalf("expected pre-existing value preserved, got %s", raw)
	}

	raw, ok, err = s.Get("engine.tick_hz")
	if err != nil || !ok {
		t.Fatalf("expected engine.tick_hz seeded from defaults: ok=%v err=%v", ok, err)
	}
	if string(raw) != "60" {
		t.Fatalf("expected 60, got %s", raw)
	}
}
