package advisory

import (
	"github.com/rs/zerolog"
)

// ClassifierConfig holds configuration for a Classifier.
type ClassifierConfig struct {
	// DefaultPreset is used when no preset is named. Default: five-tier.
	DefaultPreset string
	Logger        zerolog.Logger
}

// Classifier resolves presets by name and classifies values against them.
type Classifier struct {
	defaultPreset string
	logger        zerolog.Logger
}

// NewClassifier creates a classifier. It fails if the default preset is unknown.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if cfg.DefaultPreset == "" {
		cfg.DefaultPreset = PresetFiveTier
	}
	if _, err := Lookup(cfg.DefaultPreset); err != nil {
		return nil, err
	}
	return &Classifier{
		defaultPreset: cfg.DefaultPreset,
		logger:        cfg.Logger,
	}, nil
}

// DefaultPreset returns the configured default preset name.
func (c *Classifier) DefaultPreset() string {
	return c.defaultPreset
}

// Table resolves a preset name, falling back to the default for "".
func (c *Classifier) Table(name string) (*Table, error) {
	if name == "" {
		name = c.defaultPreset
	}
	t, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if t.Deprecated {
		c.logger.Warn().Str("preset", t.Name).Msg("deprecated advisory preset requested")
	}
	return t, nil
}

// Classify classifies value against the named preset. The profile is
// validated and normalised into a copy; the caller's value is not modified.
func (c *Classifier) Classify(preset string, value float64, p *Profile) (Advisory, error) {
	t, err := c.Table(preset)
	if err != nil {
		return Advisory{}, err
	}
	if p != nil {
		n, err := p.Normalize()
		if err != nil {
			return Advisory{}, err
		}
		p = &n
	}

	a, err := t.Classify(value, p)
	if err != nil {
		return Advisory{}, err
	}

	c.logger.Debug().
		Str("preset", a.Preset).
		Float64("aqi", value).
		Str("tier", a.Label).
		Msg("advisory classified")

	return a, nil
}
