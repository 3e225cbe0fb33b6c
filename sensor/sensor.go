// Package sensor implements the Sensor Dispatcher (spec.md §4.7, C7):
// threshold evaluation over an inbound stream of sensor samples,
// single-flight animation activation, and trigger-event emission.
//
// The bounded, drop-oldest ingress queue is grounded on the teacher's
// gpioIRQWorker pattern: a fixed-capacity channel fed by a
// non-blocking send that drops the oldest queued sample on overflow
// (and the new one if another producer refills the freed slot first)
// rather than applying backpressure to the producer, since sensor
// samples are a lossy real-time stream, not a work queue that must
// never lose items.
package sensor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stairled-core/anim"
	"stairled-core/errcode"
	"stairled-core/internal/evbus"
)

// Operator is a threshold comparison (spec.md §3).
type Operator string

const (
	OpLE Operator = "<="
	OpGE Operator = ">="
	OpEQ Operator = "=="
)

func (op Operator) evaluate(value, threshold int32) bool {
	switch op {
	case OpLE:
		return value <= threshold
	case OpGE:
		return value >= threshold
	case OpEQ:
		return value == threshold
	default:
		return false
	}
}

// Sensor is one dispatcher table entry (spec.md §3).
type Sensor struct {
	Name                string
	ChannelID           string
	Threshold           int32
	Operator            Operator
	TargetAnimationName string
	Enabled             bool

	mu            sync.Mutex
	active        bool
	lastTriggerAt int64
}

// Sample is one inbound reading (spec.md §6 sensor ingress).
type Sample struct {
	SensorName  string
	Value       int32
	TimestampMs int64
}

// TriggerEvent is the sink-bound output record (spec.md §3).
type TriggerEvent struct {
	SensorName    string
	Value         int32
	AnimationName string
	TimestampMs   int64
}

// TriggerSink receives trigger events; persistence is external
// (spec.md §6).
type TriggerSink interface {
	Emit(TriggerEvent)
}

// EngineStarter is the subset of engine.Engine the dispatcher calls
// into; kept as a narrow interface so sensor doesn't import engine
// directly (spec.md §3 "sensors reference named animations by name,
// never by owning pointer").
type EngineStarter interface {
	Start(ctx context.Context, a *anim.NamedAnimation) error
}

// AnimationLookup resolves a name to its timeline duration and a
// startable handle, satisfied by registry.Registry.
type AnimationLookup interface {
	Get(name string) (*anim.NamedAnimation, bool)
}

// Clock supplies monotonic milliseconds.
type Clock interface {
	NowMs() int64
}

const defaultSensorPrefix = "stairled-sensor-"
const minAutoClearMs = 2000
const dropLogWindow = 2 * time.Second

// Dispatcher evaluates inbound samples against the sensor table and
// drives single-flight animation starts (spec.md §4.7).
type Dispatcher struct {
	engine   EngineStarter
	registry AnimationLookup
	sink     TriggerSink
	clock    Clock
	bus      *evbus.Bus
	log      logrus.FieldLogger
	prefix   string

	in chan Sample

	mu            sync.RWMutex
	sensors       map[string]*Sensor
	lastDropWarn  map[string]time.Time
}

// Config configures a Dispatcher.
type Config struct {
	QueueCapacity int    // default 64 (spec.md §5)
	NamePrefix    string // default "stairled-sensor-"
}

// New constructs a Dispatcher. Call Run to start its processing
// goroutine.
func New(engine EngineStarter, registry AnimationLookup, sink TriggerSink, clock Clock, bus *evbus.Bus, cfg Config, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	qcap := cfg.QueueCapacity
	if qcap <= 0 {
		qcap = 64
	}
	prefix := cfg.NamePrefix
	if prefix == "" {
		prefix = defaultSensorPrefix
	}
	return &Dispatcher{
		engine:       engine,
		registry:     registry,
		sink:         sink,
		clock:        clock,
		bus:          bus,
		log:          log.WithField("component", "sensor"),
		prefix:       prefix,
		in:           make(chan Sample, qcap),
		sensors:      map[string]*Sensor{},
		lastDropWarn: map[string]time.Time{},
	}
}

// LoadSensors atomically replaces the sensor table (spec.md §3
// "Sensors are instantiated from configuration; replaced atomically on
// reload"). In-flight handlers against the old table finish against
// their own *Sensor pointers (copy-on-write semantics).
func (d *Dispatcher) LoadSensors(sensors []*Sensor) {
	next := make(map[string]*Sensor, len(sensors))
	for _, s := range sensors {
		next[normalizeName(d.prefix, s.Name)] = s
	}
	d.mu.Lock()
	d.sensors = next
	d.mu.Unlock()
}

func normalizeName(prefix, name string) string {
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}

// Submit enqueues a sample, dropping the oldest queued sample if the
// bounded channel is full (spec.md §5).
func (d *Dispatcher) Submit(s Sample) {
	s.SensorName = normalizeName(d.prefix, s.SensorName)
	select {
	case d.in <- s:
	default:
		select {
		case <-d.in:
		default:
		}
		select {
		case d.in <- s:
		default:
		}
	}
}

// Run processes samples until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-d.in:
			d.handle(ctx, s)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, s Sample) {
	d.mu.RLock()
	sensor, ok := d.sensors[s.SensorName]
	d.mu.RUnlock()
	if !ok || !sensor.Enabled {
		return
	}

	if !sensor.Operator.evaluate(s.Value, sensor.Threshold) {
		return
	}

	sensor.mu.Lock()
	alreadyActive := sensor.active
	if !alreadyActive {
		sensor.active = true
		sensor.lastTriggerAt = s.TimestampMs
	}
	sensor.mu.Unlock()

	if alreadyActive {
		d.rateLimitedDrop(sensor.Name)
		return
	}

	target, found := d.registry.Get(sensor.TargetAnimationName)
	if !found {
		d.log.WithField("sensor", sensor.Name).WithField("animation", sensor.TargetAnimationName).
			Warn("sensor: target animation not found")
		sensor.mu.Lock()
		sensor.active = false
		sensor.mu.Unlock()
		return
	}

	if err := d.engine.Start(ctx, target); err != nil {
		if errcode.Of(err) == errcode.Busy {
			d.log.WithField("sensor", sensor.Name).Debug("sensor: start rejected, another animation is running")
		} else {
			d.log.WithError(err).WithField("sensor", sensor.Name).Warn("sensor: engine start failed")
		}
		sensor.mu.Lock()
		sensor.active = false
		sensor.mu.Unlock()
		return
	}

	d.emit(TriggerEvent{SensorName: sensor.Name, Value: s.Value, AnimationName: sensor.TargetAnimationName, TimestampMs: s.TimestampMs})

	autoClear := time.Duration(minAutoClearMs) * time.Millisecond
	if dur := target.Timeline.DurationMs(); dur > minAutoClearMs {
		autoClear = time.Duration(dur) * time.Millisecond
	}
	time.AfterFunc(autoClear, func() {
		sensor.mu.Lock()
		sensor.active = false
		sensor.mu.Unlock()
	})
}

func (d *Dispatcher) emit(ev TriggerEvent) {
	if d.sink != nil {
		d.sink.Emit(ev)
	}
	if d.bus != nil {
		conn := d.bus.NewConnection("sensor")
		conn.Publish(conn.NewMessage(evbus.TriggerEventTopic(ev.SensorName), ev, false))
	}
}

func (d *Dispatcher) rateLimitedDrop(name string) {
	d.mu.Lock()
	due := time.Since(d.lastDropWarn[name]) > dropLogWindow
	if due {
		d.lastDropWarn[name] = time.Now()
	}
	d.mu.Unlock()
	if due {
		d.log.WithField("sensor", name).Debug("sensor: dropping sample, sensor already active")
	}
}
