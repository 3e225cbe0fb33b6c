// Package mqttgw adapts an MQTT broker connection onto the core's
// sensor ingress and trigger-event egress (spec.md §1 "MQTT transport
// client — core consumes a subscribe/publish interface and a stream of
// sensor readings"; §22 Non-goals: wire framing of MQTT topics is
// explicitly left to this adapter, not the core).
package mqttgw

import (
	"encoding/json"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"stairled-core/errcode"
	"stairled-core/internal/evbus"
	"stairled-core/sensor"
)

const (
	defaultSampleTopic  = "stairled/sensors/+/sample"
	defaultTriggerTopic = "stairled/triggers"
)

// SampleSink is the subset of sensor.Dispatcher this gateway drives.
type SampleSink interface {
	Submit(sensor.Sample)
}

// Config configures a Gateway.
type Config struct {
	BrokerURL    string
	ClientID     string
	SampleTopic  string // default "stairled/sensors/+/sample"
	TriggerTopic string // default "stairled/triggers"
}

// wirePayload is the JSON body of one sample message published on
// SampleTopic; the sensor name is also carried in the topic itself
// (the "+" wildcard segment), the payload only needs value/timestamp.
type wirePayload struct {
	Value       int32 `json:"value"`
	TimestampMs int64 `json:"timestamp_ms"`
}

// Gateway bridges an MQTT broker to a sensor.Dispatcher and back out to
// evbus's trigger-event topic.
type Gateway struct {
	client mqtt.Client
	sink   SampleSink
	bus    *evbus.Bus
	log    logrus.FieldLogger
	cfg    Config
}

// New constructs a Gateway and opens the MQTT connection.
func New(cfg Config, sink SampleSink, bus *evbus.Bus, log logrus.FieldLogger) (*Gateway, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.SampleTopic == "" {
		cfg.SampleTopic = defaultSampleTopic
	}
	if cfg.TriggerTopic == "" {
		cfg.TriggerTopic = defaultTriggerTopic
	}

	g := &Gateway{sink: sink, bus: bus, log: log.WithField("component", "mqttgw"), cfg: cfg}

	opts := mqtt.NewClientOptions().AddBroker(cfg.BrokerURL).SetClientID(cfg.ClientID).SetAutoReconnect(true)
	opts.OnConnect = func(c mqtt.Client) {
		if token := c.Subscribe(cfg.SampleTopic, 1, g.onSample); token.Wait() && token.Error() != nil {
			g.log.WithError(token.Error()).Error("mqttgw: subscribe failed")
		}
	}
	g.client = mqtt.NewClient(opts)
	if token := g.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errcode.Wrap(errcode.BusIO, "mqttgw.New", token.Error())
	}
	return g, nil
}

// onSample decodes one MQTT sample message and submits it to the
// dispatcher. Malformed payloads are logged and dropped (spec.md §7
// propagation policy: a transport-edge malformed message never reaches
// the dispatcher).
func (g *Gateway) onSample(_ mqtt.Client, msg mqtt.Message) {
	name := sensorNameFromTopic(msg.Topic())
	if name == "" {
		g.log.WithField("topic", msg.Topic()).Warn("mqttgw: could not extract sensor name from topic")
		return
	}
	var wp wirePayload
	if err := json.Unmarshal(msg.Payload(), &wp); err != nil {
		g.log.WithError(err).WithField("topic", msg.Topic()).Warn("mqttgw: malformed sample payload")
		return
	}
	g.sink.Submit(sensor.Sample{SensorName: name, Value: wp.Value, TimestampMs: wp.TimestampMs})
}

// sensorNameFromTopic extracts the wildcard segment from a topic
// matching "stairled/sensors/<name>/sample".
func sensorNameFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i, p := range parts {
		if p == "sensors" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// PublishTriggers subscribes to evbus's trigger-event topic and
// republishes every event onto TriggerTopic, letting external
// subscribers (dashboards, other services) observe activations without
// talking to the core directly.
func (g *Gateway) PublishTriggers() {
	if g.bus == nil {
		return
	}
	conn := g.bus.NewConnection("mqttgw")
	sub := conn.Subscribe(evbus.T("trigger", "#"))
	go func() {
		for msg := range sub.Channel() {
			ev, ok := msg.Payload.(sensor.TriggerEvent)
			if !ok {
				continue
			}
			raw, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			g.client.Publish(g.cfg.TriggerTopic, 1, false, raw)
		}
	}()
}

// Close disconnects the MQTT client.
func (g *Gateway) Close() {
	g.client.Disconnect(250)
}
