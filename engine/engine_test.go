package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"stairled-core/anim"
	"stairled-core/errcode"
	"stairled-core/pinmap"
	"stairled-core/x/timex"
)

type fakeMapper struct {
	mu       sync.Mutex
	writes   map[int]int
	allCalls int
}

func newFakeMapper() *fakeMapper { return &fakeMapper{writes: map[int]int{}} }

func (f *fakeMapper) SetBrightness(step, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes[step] = value
	return nil
}

// GetMappedPin fakes a single-chip sequential mapping: step N sits at
// channel N-1 on chip 0x40.
func (f *fakeMapper) GetMappedPin(step int) (pinmap.Pin, bool) {
	if step < 1 {
		return pinmap.Pin{}, false
	}
	return pinmap.Pin{ChipAddr: 0x40, Channel: step - 1}, true
}

func (f *fakeMapper) SetAll(value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allCalls++
	for s := range f.writes {
		f.writes[s] = value
	}
	return nil
}

func (f *fakeMapper) allCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allCalls
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func namedFadeIn(leds []int, durationMs int64) *anim.NamedAnimation {
	fi, _ := anim.NewFadeIn(anim.FadeInConfig{Leds: leds, StartBrightness: 0, EndBrightness: 4000, DurationMs: durationMs})
	tl := anim.NewLedstripAnimation()
	tl.Add(0, fi)
	return &anim.NamedAnimation{Name: "fade1", Timeline: tl}
}

func TestEngine_StopFromIdleIsNoop(t *testing.T) {
	m := newFakeMapper()
	e := New(m, timex.NewClock(), nil, Config{TickHz: 200}, quietLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := e.Stop(stopCtx); err != nil {
		t.Fatalf("Stop from IDLE: %v", err)
	}
}

func TestEngine_SingleFlightRejectsSecondStart(t *testing.T) {
	m := newFakeMapper()
	e := New(m, timex.NewClock(), nil, Config{TickHz: 200}, quietLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
	defer callCancel()

	if err := e.Start(callCtx, namedFadeIn([]int{1}, 2000)); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := e.Start(callCtx, namedFadeIn([]int{2}, 2000))
	if err == nil {
		t.Fatal("expected Busy on second Start while running")
	}
	if errcode.Of(err) != errcode.Busy {
		t.Fatalf("expected Busy code, got %v", errcode.Of(err))
	}
}

func TestEngine_RunsToCompletionAndAllOffs(t *testing.T) {
	m := newFakeMapper()
	e := New(m, timex.NewClock(), nil, Config{TickHz: 500}, quietLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
	defer callCancel()
	if err := e.Start(callCtx, namedFadeIn([]int{1}, 30)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.allCount() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if m.allCount() == 0 {
		t.Fatal("expected engine to call SetAll(0) after the animation completed")
	}

	// Now IDLE again: a fresh Start must succeed (single-flight released).
	if err := e.Start(callCtx, namedFadeIn([]int{1}, 30)); err != nil {
		t.Fatalf("Start after completion: %v", err)
	}
}
