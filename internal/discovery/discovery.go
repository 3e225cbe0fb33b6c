// Package discovery advertises this controller and browses for sensor
// hosts on the local network via mDNS (spec.md §1: network discovery of
// sensor devices is external to the core; this adapter only publishes
// what it finds onto internal/evbus for any interested subscriber).
package discovery

import (
	"time"

	"github.com/hashicorp/mdns"
	"github.com/sirupsen/logrus"

	"stairled-core/errcode"
	"stairled-core/internal/evbus"
)

const (
	serviceType  = "_stairled-sensor._tcp"
	browseWindow = 2 * time.Second
)

// Host is one discovered sensor host.
type Host struct {
	Name string
	Addr string
	Port int
}

// Advertiser publishes this controller's own mDNS service record.
type Advertiser struct {
	server *mdns.Server
}

// Advertise registers an mDNS service record for this controller under
// serviceType so designer UIs and sensor bridges on the LAN can find it
// without static configuration.
func Advertise(instance string, port int) (*Advertiser, error) {
	info := []string{"stairled controller"}
	svc, err := mdns.NewMDNSService(instance, serviceType, "", "", port, nil, info)
	if err != nil {
		return nil, errcode.Wrap(errcode.Fatal, "discovery.Advertise", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, errcode.Wrap(errcode.Fatal, "discovery.Advertise", err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown stops advertising.
func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}

// Browse performs one mDNS lookup for sensor hosts advertising
// serviceType and publishes every host found as a retained message on
// evbus topic discovery/sensor-host/<name> (evbus.DiscoveryTopic, which
// carries the pin map, is not used) so the registry/dispatcher wiring
// layer can react without this
// package importing them directly.
func Browse(bus *evbus.Bus, log logrus.FieldLogger) ([]Host, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entries := make(chan *mdns.ServiceEntry, 8)
	var hosts []Host
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			h := Host{Name: e.Name, Addr: e.AddrV4.String(), Port: e.Port}
			hosts = append(hosts, h)
			if bus != nil {
				conn := bus.NewConnection("discovery")
				conn.Publish(conn.NewMessage(evbus.T("discovery", "sensor-host", h.Name), h, true))
			}
		}
	}()

	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	params.Timeout = browseWindow
	if err := mdns.Query(params); err != nil {
		close(entries)
		<-done
		return nil, errcode.Wrap(errcode.BusIO, "discovery.Browse", err)
	}
	close(entries)
	<-done
	return hosts, nil
}
