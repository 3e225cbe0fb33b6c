// Package engine implements the Animation Engine (spec.md §4.6, C6):
// the periodic rendering loop that owns the single running timeline,
// advances it every tick, and fans rendered brightness out through the
// pin mapper.
//
// The re-armed-timer tick loop is grounded on the teacher's worker
// pattern (e.g. its measurement worker): rather than a free-running
// ticker, a single time.Timer is reset to the next deadline after each
// iteration, and commands arrive on a channel serviced by the same
// goroutine that owns the timer — so there is never a data race between
// "is a tick due" and "should I stop/start".
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"stairled-core/anim"
	"stairled-core/errcode"
	"stairled-core/internal/evbus"
	"stairled-core/pinmap"
)

// State is the engine's run state (spec.md §4.6).
type State int

const (
	IDLE State = iota
	RUNNING
	STOPPING
)

func (s State) String() string {
	switch s {
	case IDLE:
		return "idle"
	case RUNNING:
		return "running"
	case STOPPING:
		return "stopping"
	default:
		return "unknown"
	}
}

// Clock supplies monotonic milliseconds. *timex.Clock satisfies this;
// tests supply a fake.
type Clock interface {
	NowMs() int64
}

// Mapper is the subset of pinmap.Mapper the engine drives (spec.md §4.6
// step 4: "for every step present in merged, pin_mapper.set_brightness").
// GetMappedPin lets the engine resolve each step to its physical
// (chip,channel) so writes can be ordered the way the hardware wants
// them, independent of how the mapping assigns step numbers.
type Mapper interface {
	SetBrightness(step int, value int) error
	SetAll(value int) error
	GetMappedPin(step int) (pinmap.Pin, bool)
}

// Config configures an Engine.
type Config struct {
	TickHz int // default 60
}

type startCmd struct {
	anim  *anim.NamedAnimation
	reply chan error
}

type stopCmd struct{ reply chan struct{} }

// Engine is the single-flight animation scheduler (spec.md §4.6, §5).
type Engine struct {
	mapper Mapper
	clock  Clock
	bus    *evbus.Bus
	log    logrus.FieldLogger
	tickHz int

	cmds chan any
}

// New constructs an Engine; call Run to start its loop goroutine.
func New(mapper Mapper, clock Clock, bus *evbus.Bus, cfg Config, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	tickHz := cfg.TickHz
	if tickHz <= 0 {
		tickHz = 60
	}
	return &Engine{
		mapper: mapper,
		clock:  clock,
		bus:    bus,
		log:    log.WithField("component", "engine"),
		tickHz: tickHz,
		cmds:   make(chan any),
	}
}

// Run drives the tick loop until ctx is cancelled. Intended to be
// launched in its own goroutine; Start/Stop block on the command
// channel until a goroutine is running Run.
func (e *Engine) Run(ctx context.Context) {
	period := time.Second / time.Duration(e.tickHz)
	timer := time.NewTimer(period)
	defer timer.Stop()

	state := IDLE
	var active *anim.NamedAnimation
	var activeEndMs int64
	var lastWarnLog time.Time
	deadline := time.Now().Add(period)

	publishState := func() {
		if e.bus == nil {
			return
		}
		conn := e.bus.NewConnection("engine")
		conn.Publish(conn.NewMessage(evbus.EngineStateTopic(), state.String(), true))
	}
	publishState()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-e.cmds:
			switch cmd := c.(type) {
			case startCmd:
				if state != IDLE {
					cmd.reply <- errcode.New(errcode.Busy, "engine.Start", "an animation is already running")
					continue
				}
				now := e.clock.NowMs()
				cmd.anim.Timeline.SetAbsoluteStart(now)
				active = cmd.anim
				activeEndMs = now + active.Timeline.DurationMs()
				state = RUNNING
				publishState()
				cmd.reply <- nil

			case stopCmd:
				if state == RUNNING {
					state = STOPPING
				}
				close(cmd.reply)
			}

		case <-timer.C:
			// A late fire (this tick's wall-clock arrival is more than one
			// period past its scheduled deadline) is logged, rate-limited,
			// and the loop proceeds to "now" without trying to catch up
			// (spec.md §4.6: "it does NOT try to catch up").
			if late := time.Since(deadline); late > period {
				if time.Since(lastWarnLog) > time.Second {
					e.log.WithField("late_by", late).Warn("engine: tick missed by more than one period")
					lastWarnLog = time.Now()
				}
			}

			nowMs := e.clock.NowMs()
			switch state {
			case RUNNING:
				active.Timeline.SetCurrent(nowMs)
				merged := active.Timeline.Render()
				e.writeOrdered(merged)
				if nowMs > activeEndMs {
					state = STOPPING
					publishState()
				}
			case STOPPING:
				_ = e.mapper.SetAll(0)
				active = nil
				state = IDLE
				publishState()
			}

			deadline = deadline.Add(period)
			if d := time.Until(deadline); d > 0 {
				timer.Reset(d)
			} else {
				timer.Reset(0)
				deadline = time.Now()
			}
		}
	}
}

// writeOrdered writes merged brightness values to the pin mapper in
// ascending (chip_address, channel) order, as spec.md §5 requires,
// resolving each step's physical pin through the mapper rather than
// trusting step numbers to already be chip/channel ordered — a custom
// mapping (spec.md §3) is free to bind a low step to a high chip
// address. Steps the mapper no longer recognises (e.g. dropped by a
// mapping reload mid-animation) sort last, by step number, and are
// written in that trailing position.
func (e *Engine) writeOrdered(merged map[int]int) {
	steps := make([]int, 0, len(merged))
	for s := range merged {
		steps = append(steps, s)
	}
	pins := make(map[int]pinmap.Pin, len(steps))
	mapped := make(map[int]bool, len(steps))
	for _, s := range steps {
		if p, ok := e.mapper.GetMappedPin(s); ok {
			pins[s] = p
			mapped[s] = true
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		si, sj := steps[i], steps[j]
		pi, pj := mapped[si], mapped[sj]
		if pi != pj {
			return pi
		}
		if !pi {
			return si < sj
		}
		a, b := pins[si], pins[sj]
		if a.ChipAddr != b.ChipAddr {
			return a.ChipAddr < b.ChipAddr
		}
		return a.Channel < b.Channel
	})
	for _, s := range steps {
		if err := e.mapper.SetBrightness(s, merged[s]); err != nil {
			e.log.WithError(err).WithField("step", s).Debug("engine: set_brightness failed")
		}
	}
}

// Start requests a transition from IDLE to RUNNING with the given
// animation armed at "now" (spec.md §4.6). Returns Busy if the engine
// is not IDLE.
func (e *Engine) Start(ctx context.Context, a *anim.NamedAnimation) error {
	reply := make(chan error, 1)
	select {
	case e.cmds <- startCmd{anim: a, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop requests a transition to STOPPING, effective at the next tick
// boundary (spec.md §4.6 stop()). A no-op if the engine is IDLE.
func (e *Engine) Stop(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case e.cmds <- stopCmd{reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
