package configstore

import (
	_ "embed"

	"github.com/andreyvit/tinyjson"

	"stairled-core/config"
	"stairled-core/errcode"
)

//go:embed defaults.json
var embeddedDefaults []byte

// SeedDefaults installs the bundled default configuration for any
// well-known key the store does not already hold, mirroring the
// teacher's own embedded-config publish step (services/config in the
// teacher repo reads an embedded per-device document and fans it out
// key by key, skipping nothing already present).
func SeedDefaults(store config.Store) error {
	r := tinyjson.Raw(embeddedDefaults)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return errcode.New(errcode.ConfigInvalid, "configstore.SeedDefaults", "embedded defaults is not a JSON object")
	}

	for k, v := range m {
		if _, ok, err := store.Get(k); err != nil {
			return errcode.Wrap(errcode.Fatal, "configstore.SeedDefaults", err)
		} else if ok {
			continue
		}
		if err := store.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}
