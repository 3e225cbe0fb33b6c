package registry

import (
	"testing"

	"github.com/sirupsen/logrus"

	"stairled-core/anim"
	"stairled-core/internal/evbus"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func validAnimation(name string) *anim.NamedAnimation {
	im, _ := anim.NewImmediate(anim.ImmediateConfig{Leds: []int{1}, Brightness: 10, DurationMs: 100})
	tl := anim.NewLedstripAnimation()
	tl.Add(0, im)
	return &anim.NamedAnimation{Name: name, Timeline: tl}
}

type fakeSource struct {
	anims []*anim.NamedAnimation
	err   error
}

func (s fakeSource) LoadAnimations() ([]*anim.NamedAnimation, error) { return s.anims, s.err }

func TestRegistry_GetMiss(t *testing.T) {
	r := New(evbus.NewBus(4), quietLog())
	if _, ok := r.Get("nope"); ok {
		t.Fatal("expected miss for unknown name")
	}
}

func TestRegistry_UpsertAndGet(t *testing.T) {
	r := New(evbus.NewBus(4), quietLog())
	if err := r.Upsert(validAnimation("fade1")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	a, ok := r.Get("fade1")
	if !ok || a.Name != "fade1" {
		t.Fatalf("expected to find fade1, got %+v ok=%v", a, ok)
	}
}

func TestRegistry_UpsertRejectsEmptyTimeline(t *testing.T) {
	r := New(evbus.NewBus(4), quietLog())
	bad := &anim.NamedAnimation{Name: "empty", Timeline: anim.NewLedstripAnimation()}
	if err := r.Upsert(bad); err == nil {
		t.Fatal("expected validation error for an empty timeline")
	}
}

func TestRegistry_LoadFrom_PartialFailureStillLoadsValidEntries(t *testing.T) {
	r := New(evbus.NewBus(4), quietLog())
	src := fakeSource{anims: []*anim.NamedAnimation{
		validAnimation("good"),
		{Name: "bad", Timeline: anim.NewLedstripAnimation()},
	}}

	report, err := r.LoadFrom(src)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if report.Loaded != 1 {
		t.Fatalf("expected 1 loaded, got %d", report.Loaded)
	}
	if _, rejected := report.Rejected["bad"]; !rejected {
		t.Fatalf("expected 'bad' to be reported as rejected: %+v", report.Rejected)
	}
	if _, ok := r.Get("good"); !ok {
		t.Fatal("expected 'good' to be loaded and retrievable")
	}
	if _, ok := r.Get("bad"); ok {
		t.Fatal("expected 'bad' to be absent")
	}
}

func TestRegistry_Delete(t *testing.T) {
	r := New(evbus.NewBus(4), quietLog())
	_ = r.Upsert(validAnimation("fade1"))
	r.Delete("fade1")
	if _, ok := r.Get("fade1"); ok {
		t.Fatal("expected fade1 to be gone after Delete")
	}
}
