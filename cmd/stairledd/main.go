// Command stairledd wires together the staircase LED controller: I²C
// bus access, pin mapping, the animation engine, the sensor dispatcher,
// and the external collaborators (config persistence, MQTT, mDNS
// discovery, trigger persistence, the designer UI).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"stairled-core/config"
	"stairled-core/engine"
	"stairled-core/i2cbus"
	"stairled-core/internal/configstore"
	"stairled-core/internal/discovery"
	"stairled-core/internal/evbus"
	"stairled-core/internal/eventstore"
	"stairled-core/internal/mqttgw"
	"stairled-core/internal/webui"
	"stairled-core/pinmap"
	"stairled-core/registry"
	"stairled-core/sensor"
	"stairled-core/x/timex"
)

func main() {
	var (
		busName     = flag.String("i2c-bus", "", "I²C bus name/path (empty picks the default host bus)")
		dbPath      = flag.String("config-db", "stairledd.db", "bbolt config database path")
		eventDBPath = flag.String("event-db", "stairledd-events.db", "sqlite trigger event database path")
		mqttBroker  = flag.String("mqtt-broker", "tcp://localhost:1883", "MQTT broker URL")
		httpAddr    = flag.String("http-addr", ":8080", "designer UI listen address")
		selfTest    = flag.Bool("self-test", false, "ramp every mapped step once at startup")
	)
	flag.Parse()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(*busName, *dbPath, *eventDBPath, *mqttBroker, *httpAddr, *selfTest, log); err != nil {
		log.WithError(err).Fatal("stairledd: fatal startup error")
	}
}

func run(busName, dbPath, eventDBPath, mqttBroker, httpAddr string, selfTest bool, log logrus.FieldLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return err
	}
	defer bus.Close()
	gw := i2cbus.New(busName, bus)

	store, err := configstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := configstore.SeedDefaults(store); err != nil {
		return err
	}

	busEvents := evbus.NewBus(8)

	pwmHz, err := config.DecodePWMHz(store)
	if err != nil {
		return err
	}
	mapper := pinmap.New(gw, busEvents, pinmap.Config{BusID: busName, PWMHz: pwmHz}, log)
	discovered, err := mapper.Discover()
	if err != nil {
		return err
	}
	var stored []pinmap.Entry
	if raw, ok, err := store.Get(config.KeyPinMapMapping); err == nil && ok {
		if decoded, derr := config.DecodePinMap(raw); derr == nil {
			stored = decoded
		}
	}
	if err := mapper.Initialize(discovered, stored); err != nil {
		return err
	}
	defer mapper.Cleanup()
	if selfTest {
		mapper.Test(visibleTestDuty, selfTestStepDelay)
	}

	reg := registry.New(busEvents, log)
	src := config.ConfigSource{Store: store, Reader: mapper}
	if _, err := reg.LoadFrom(src); err != nil {
		return err
	}

	tickHz, err := config.DecodeEngineTickHz(store)
	if err != nil {
		return err
	}
	eng := engine.New(mapper, timex.NewClock(), busEvents, engine.Config{TickHz: tickHz}, log)
	go eng.Run(ctx)

	events, err := eventstore.Open(eventDBPath)
	if err != nil {
		return err
	}

	dispatcher := sensor.New(eng, reg, events, timex.NewClock(), busEvents, sensor.Config{}, log)
	if raw, ok, err := store.Get(config.KeySensors); err == nil && ok {
		if sensors, derr := config.DecodeSensors(raw); derr == nil {
			dispatcher.LoadSensors(sensors)
		}
	}
	go dispatcher.Run(ctx)

	mq, err := mqttgw.New(mqttgw.Config{BrokerURL: mqttBroker, ClientID: "stairledd"}, dispatcher, busEvents, log)
	if err != nil {
		return err
	}
	defer mq.Close()
	mq.PublishTriggers()

	adv, err := discovery.Advertise("stairledd", 8080)
	if err != nil {
		log.WithError(err).Warn("stairledd: mDNS advertisement failed, continuing without it")
	} else {
		defer adv.Shutdown()
	}

	ui := webui.New(reg, mapper, busEvents, log)
	go func() {
		if err := ui.Run(httpAddr); err != nil {
			log.WithError(err).Error("stairledd: designer UI server stopped")
		}
	}()

	log.Info("stairledd: running")
	<-ctx.Done()
	log.Info("stairledd: shutting down")
	return nil
}

const (
	visibleTestDuty   = 1024
	selfTestStepDelay = 200 * time.Millisecond
)
