// Package manifest implements the adapter manifest loader of spec.md §6
// ("Manifest descriptor (consumed)"): a filesystem schema loader
// producing the ManifestDescriptor value the session/launcher layers
// consume. Out of scope for the core protocol logic, but every
// SPEC_FULL.md component needs a concrete producer of that value.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/nanashili/dap-client/internal/protoerr"
)

// Descriptor is the subset of manifest fields the core consumes, per
// spec.md §6: identifier, executable, arguments, working directory, and
// environment overlay. Everything else a manifest might carry
// (capabilities advertised, configuration schema, persistence flag) is
// peripheral and not modeled here.
type Descriptor struct {
	Identifier       string            `json:"identifier"`
	Executable       string            `json:"executable"`
	Arguments        []string          `json:"arguments"`
	WorkingDirectory string            `json:"workingDirectory"`
	Environment      map[string]string `json:"environment"`
}

// Load reads and validates the manifest named identifier (file
// "<identifier>.json") from dir.
func Load(dir, identifier string) (Descriptor, error) {
	path := filepath.Join(dir, identifier+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Descriptor{}, protoerr.Wrap(protoerr.KindConfigurationNotFound, "manifest "+identifier+" not found in "+dir, err)
		}
		return Descriptor{}, protoerr.Wrap(protoerr.KindConfigurationInvalid, "read manifest "+identifier, err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, protoerr.Wrap(protoerr.KindConfigurationInvalid, "parse manifest "+identifier, err)
	}
	if err := validate(d); err != nil {
		return Descriptor{}, err
	}
	if d.Identifier == "" {
		d.Identifier = identifier
	}
	return d, nil
}

func validate(d Descriptor) error {
	if d.Executable == "" {
		return protoerr.New(protoerr.KindConfigurationInvalid, "manifest is missing \"executable\"")
	}
	return nil
}
