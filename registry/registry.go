// Package registry implements the Animation Registry (spec.md §4.8,
// C8): a named lookup of animations with atomic reload/upsert/delete
// and per-entity validation reporting.
//
// The RWMutex-guarded string-keyed map follows the teacher's own
// builder-registry pattern (a reader/writer lock around a
// string-keyed map of named constructors), generalized here from
// "named HAL device builders" to "named animations" — reads are
// lock-free relative to other reads and writes serialize against each
// other. Writes share no lock with the engine, so they are not
// serialized against engine.Start.
package registry

import (
	"sync"

	"github.com/sirupsen/logrus"

	"stairled-core/anim"
	"stairled-core/errcode"
	"stairled-core/internal/evbus"
)

// Source supplies NamedAnimation definitions for load_from; the
// concrete decoding of a configuration document into these values is
// an external-collaborator concern (spec.md §6), this package only
// consumes the already-parsed result.
type Source interface {
	LoadAnimations() ([]*anim.NamedAnimation, error)
}

// LoadReport aggregates the outcome of a load_from call: per-entity
// validation failures never abort the whole load (spec.md §4.8,
// §7 propagation policy).
type LoadReport struct {
	Loaded   int
	Rejected map[string]error
}

// Registry is the in-memory name→NamedAnimation map.
type Registry struct {
	bus *evbus.Bus
	log logrus.FieldLogger

	mu     sync.RWMutex
	byName map[string]*anim.NamedAnimation
}

// New constructs an empty Registry.
func New(bus *evbus.Bus, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		bus:    bus,
		log:    log.WithField("component", "registry"),
		byName: map[string]*anim.NamedAnimation{},
	}
}

// Get performs a lock-free-relative-to-other-reads lookup (spec.md
// §4.8).
func (r *Registry) Get(name string) (*anim.NamedAnimation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// LoadFrom replaces the map atomically; invalid entries are rejected
// individually and reported, valid entries are loaded (spec.md §4.8).
func (r *Registry) LoadFrom(source Source) (LoadReport, error) {
	candidates, err := source.LoadAnimations()
	if err != nil {
		return LoadReport{}, errcode.Wrap(errcode.Fatal, "registry.LoadFrom", err)
	}

	next := make(map[string]*anim.NamedAnimation, len(candidates))
	report := LoadReport{Rejected: map[string]error{}}
	for _, a := range candidates {
		if err := Validate(a); err != nil {
			report.Rejected[a.Name] = err
			r.log.WithError(err).WithField("animation", a.Name).Warn("registry: rejecting invalid animation")
			continue
		}
		next[a.Name] = a
		report.Loaded++
	}

	r.mu.Lock()
	r.byName = next
	r.mu.Unlock()
	r.publishReload()
	return report, nil
}

// Upsert validates and atomically replaces one entry (spec.md §4.8).
func (r *Registry) Upsert(a *anim.NamedAnimation) error {
	if err := Validate(a); err != nil {
		return err
	}
	r.mu.Lock()
	r.byName[a.Name] = a
	r.mu.Unlock()
	r.publishReload()
	return nil
}

// Delete removes an entry; sensors referencing the deleted name become
// effectively inert (the dispatcher's own NotFound logging handles
// that, per spec.md §4.8).
func (r *Registry) Delete(name string) {
	r.mu.Lock()
	delete(r.byName, name)
	r.mu.Unlock()
	r.publishReload()
}

func (r *Registry) publishReload() {
	if r.bus == nil {
		return
	}
	conn := r.bus.NewConnection("registry")
	conn.Publish(conn.NewMessage(evbus.ConfigReloadTopic("animations"), nil, false))
}

// Validate checks the structural rules spec.md §4.4 requires of any
// named animation: at least one timeline item, and every item's
// animation already having passed its own variant-level construction
// validation (enforced by the anim constructors themselves — by the
// time a *anim.NamedAnimation reaches the registry, its items were
// built via anim.NewFadeIn/NewFadeOut/etc., which already reject bad
// configuration at construction). Validate additionally rejects a
// missing name and an empty timeline, which only the registry — not
// any single variant constructor — is positioned to check.
func Validate(a *anim.NamedAnimation) error {
	if a == nil || a.Name == "" {
		return errcode.New(errcode.ConfigInvalid, "registry.Validate", "animation name must be non-empty")
	}
	if a.Timeline == nil || len(a.Timeline.Items()) == 0 {
		return errcode.New(errcode.ConfigInvalid, "registry.Validate", "animation timeline must have at least one item")
	}
	return nil
}
