// Package scenario defines the fixed catalog of network-impairment test
// scenarios the harness drives.
package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Spec describes one network-impairment scenario. Specs are immutable:
// they are defined once in the catalog and never modified at runtime.
type Spec struct {
	// Name uniquely identifies the scenario within the catalog.
	Name string `yaml:"name"`

	// LossPct is the packet loss percentage to apply (0-100).
	LossPct float64 `yaml:"loss_pct"`

	// Delay is the one-way delay added to the loopback path.
	Delay time.Duration `yaml:"delay"`

	// Jitter is the delay variation. Only meaningful when Delay > 0.
	Jitter time.Duration `yaml:"jitter"`

	// Duration is how long the scenario traffic runs.
	Duration time.Duration `yaml:"duration"`

	// Clients overrides the configured client count for this scenario.
	// Zero means "use the configured default".
	Clients int `yaml:"clients"`
}

// Impaired reports whether the spec requests any network impairment.
func (s Spec) Impaired() bool {
	return s.LossPct > 0 || s.Delay > 0 || s.Jitter > 0
}

// NetworkLabel returns a short human-readable description of the
// impairment, used in run summaries ("none", "loss=5%", ...).
func (s Spec) NetworkLabel() string {
	if !s.Impaired() {
		return "none"
	}
	label := ""
	if s.LossPct > 0 {
		label = fmt.Sprintf("loss=%g%%", s.LossPct)
	}
	if s.Delay > 0 {
		if label != "" {
			label += " "
		}
		label += fmt.Sprintf("delay=%s", s.Delay)
		if s.Jitter > 0 {
			label += fmt.Sprintf("±%s", s.Jitter)
		}
	}
	return label
}

// Validate checks the spec against the catalog constraints.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name must not be empty")
	}
	if s.Duration <= 0 {
		return fmt.Errorf("scenario %q: duration must be positive (got %v)", s.Name, s.Duration)
	}
	if s.LossPct < 0 || s.LossPct > 100 {
		return fmt.Errorf("scenario %q: loss_pct must be in [0,100] (got %g)", s.Name, s.LossPct)
	}
	if s.Delay < 0 {
		return fmt.Errorf("scenario %q: delay must be >= 0 (got %v)", s.Name, s.Delay)
	}
	if s.Jitter < 0 {
		return fmt.Errorf("scenario %q: jitter must be >= 0 (got %v)", s.Name, s.Jitter)
	}
	if s.Clients < 0 {
		return fmt.Errorf("scenario %q: clients must be >= 0 (got %d)", s.Name, s.Clients)
	}
	return nil
}

// Catalog is an ordered, fixed sequence of scenarios plus a repetition
// count. It is never mutated after construction.
type Catalog struct {
	Specs       []Spec `yaml:"scenarios"`
	Repetitions int    `yaml:"repetitions"`
}

// Default returns the built-in catalog: baseline plus the loss, delay and
// delay+jitter profiles, in declaration order.
func Default(repetitions int) Catalog {
	return Catalog{
		Repetitions: repetitions,
		Specs: []Spec{
			{Name: "baseline", Duration: 40 * time.Second},
			{Name: "loss_2pct", LossPct: 2, Duration: 30 * time.Second},
			{Name: "loss_5pct", LossPct: 5, Duration: 30 * time.Second},
			{Name: "delay_100ms", Delay: 100 * time.Millisecond, Duration: 40 * time.Second},
			{Name: "delay_jitter", Delay: 100 * time.Millisecond, Jitter: 10 * time.Millisecond, Duration: 40 * time.Second},
		},
	}
}

// Load reads a catalog from a YAML file. Repetitions defaults to the
// given value when the file does not set it.
func Load(path string, defaultRepetitions int) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read scenario file: %w", err)
	}

	cat := Catalog{Repetitions: defaultRepetitions}
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("parse scenario file %s: %w", path, err)
	}
	if cat.Repetitions < 1 {
		cat.Repetitions = defaultRepetitions
	}
	return cat, nil
}

// Sanitize validates every spec and drops the invalid ones so a bad
// catalog entry cannot corrupt subsequent runs. Duplicate names are
// configuration errors and are dropped the same way. The returned slice
// preserves declaration order; the errors describe every dropped entry.
func (c Catalog) Sanitize() (valid []Spec, dropped []error) {
	seen := make(map[string]bool, len(c.Specs))
	for _, spec := range c.Specs {
		if err := spec.Validate(); err != nil {
			dropped = append(dropped, err)
			continue
		}
		if seen[spec.Name] {
			dropped = append(dropped, fmt.Errorf("scenario %q: duplicate name", spec.Name))
			continue
		}
		seen[spec.Name] = true
		valid = append(valid, spec)
	}
	return valid, dropped
}

// Find returns the named spec from the catalog.
func (c Catalog) Find(name string) (Spec, bool) {
	for _, spec := range c.Specs {
		if spec.Name == name {
			return spec, true
		}
	}
	return Spec{}, false
}

// Names returns the scenario names in declaration order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Specs))
	for _, spec := range c.Specs {
		names = append(names, spec.Name)
	}
	return names
}
