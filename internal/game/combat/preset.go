package combat

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// presetFile is the on-disk shape of a move preset file.
type presetFile struct {
	Actions []Action `yaml:"actions"`
}

// LoadPresetsFromBytes parses a YAML preset document.
//
// Postcondition: Returns validated actions, or the first validation error.
func LoadPresetsFromBytes(data []byte) ([]Action, error) {
	var pf presetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing action presets: %w", err)
	}
	for i := range pf.Actions {
		if pf.Actions[i].TargetType == "" {
			pf.Actions[i].TargetType = TargetSingle
		}
		if pf.Actions[i].DieCount == 0 {
			pf.Actions[i].DieCount = 1
		}
		if err := pf.Actions[i].Validate(); err != nil {
			return nil, err
		}
	}
	return pf.Actions, nil
}

// LoadPresets reads every .yaml/.yml file in dir on fs and returns their
// actions in file-name order.
//
// Precondition: fs must be non-nil.
func LoadPresets(fs afero.Fs, dir string) ([]Action, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading preset dir %q: %w", dir, err)
	}
	var out []Action
	seen := make(map[string]string)
	for _, info := range infos {
		ext := strings.ToLower(filepath.Ext(info.Name()))
		if info.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, info.Name())
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		actions, err := LoadPresetsFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, a := range actions {
			if a.ID != "" {
				if prev, dup := seen[a.ID]; dup {
					return nil, fmt.Errorf("duplicate action id %q in %s and %s", a.ID, prev, path)
				}
				seen[a.ID] = path
			}
		}
		out = append(out, actions...)
	}
	return out, nil
}
