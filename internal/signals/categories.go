package signals

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

// categoryFile is the on-disk seed format:
//
//	signals:
//	  - signal: demo_request
//	    category: demo_request
//	    weight: 80
type categoryFile struct {
	Signals []model.SignalWeight `yaml:"signals"`
}

// LoadCategories reads the signal seed file.
func LoadCategories(path string) ([]model.SignalWeight, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "signals: read %s", path)
	}
	return ParseCategories(data)
}

// ParseCategories parses seed YAML and checks every weight is in bounds.
func ParseCategories(data []byte) ([]model.SignalWeight, error) {
	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "signals: parse categories")
	}

	seen := make(map[string]bool, len(f.Signals))
	for _, s := range f.Signals {
		if s.Signal == "" {
			return nil, eris.New("signals: entry without signal name")
		}
		if seen[s.Signal] {
			return nil, eris.Errorf("signals: duplicate signal %q", s.Signal)
		}
		seen[s.Signal] = true
		if s.Weight < 0 || s.Weight > MaxWeight {
			return nil, eris.Errorf("signals: weight for %q must be between 0 and %d", s.Signal, MaxWeight)
		}
	}
	return f.Signals, nil
}
