package catalog

// extension.go loads operator-supplied catalog extensions from YAML.
//
// Extension files let a deployment teach the catalog about vendor codes the
// built-in table does not know, without a rebuild. Extensions are merged
// before the catalog is frozen; a file that collides with a built-in code
// or wires a code into two groups is rejected as a whole.
//
// Example:
//
//	codes:
//	  - code: ff5abc
//	    kind: temperature
//	    short_name: gearbox_oil_temp
//	    unit: "°C"
//	    names:
//	      en: Gearbox Oil Temperature
//	      fr: Température d'huile de boîte
//	    scale: 0.1
//	    precision: 1
//	groups:
//	  - name: gearbox-temp
//	    members:
//	      - code: ff5abc
//	        priority: 1
//	      - code: ff5abd
//	        priority: 2

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// extensionFile is the YAML document root.
type extensionFile struct {
	Codes  []extensionCode `yaml:"codes"`
	Groups []DerivedGroup  `yaml:"groups"`
}

// extensionCode is one definition in an extension file.
type extensionCode struct {
	Code      string            `yaml:"code"`
	Kind      string            `yaml:"kind"`
	ShortName string            `yaml:"short_name"`
	Unit      string            `yaml:"unit"`
	Names     map[string]string `yaml:"names"`
	Text      bool              `yaml:"text"`

	// Optional linear transform: value*scale, rounded to precision decimals.
	Scale     *float64 `yaml:"scale"`
	Precision *int     `yaml:"precision"`
}

// NewWithExtensions builds the catalog from the built-in table plus the
// extension file at path. An empty path returns the built-in catalog.
func NewWithExtensions(path string) (*Catalog, error) {
	if path == "" {
		return New(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog extensions: %w", err)
	}

	var file extensionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog extensions: %w", err)
	}

	defs := make([]Definition, 0, len(builtinDefinitions)+len(file.Codes))
	defs = append(defs, builtinDefinitions...)
	for i, ec := range file.Codes {
		d, err := ec.toDefinition()
		if err != nil {
			return nil, fmt.Errorf("catalog extensions: code %d: %w", i, err)
		}
		defs = append(defs, d)
	}

	groups := make([]DerivedGroup, 0, len(builtinGroups)+len(file.Groups))
	groups = append(groups, builtinGroups...)
	groups = append(groups, file.Groups...)

	c, err := build(defs, groups)
	if err != nil {
		return nil, fmt.Errorf("catalog extensions: %w", err)
	}
	return c, nil
}

func (ec extensionCode) toDefinition() (Definition, error) {
	if Normalize(ec.Code) == "" {
		return Definition{}, fmt.Errorf("missing code")
	}
	kind := KindUnknown
	if ec.Kind != "" {
		k, ok := KindFromString(ec.Kind)
		if !ok {
			return Definition{}, fmt.Errorf("unknown kind %q", ec.Kind)
		}
		kind = k
	}
	if ec.ShortName == "" {
		return Definition{}, fmt.Errorf("code %q: missing short_name", ec.Code)
	}
	if ec.Names["en"] == "" {
		return Definition{}, fmt.Errorf("code %q: missing en label", ec.Code)
	}

	var transform Transform
	if ec.Scale != nil || ec.Precision != nil {
		scale := 1.0
		if ec.Scale != nil {
			scale = *ec.Scale
		}
		precision := 2
		if ec.Precision != nil {
			precision = *ec.Precision
		}
		if precision < 0 || precision > 10 {
			return Definition{}, fmt.Errorf("code %q: precision out of range", ec.Code)
		}
		transform = func(v float64) float64 {
			return roundTo(v*scale, precision)
		}
	}

	return Definition{
		Code:      ec.Code,
		Kind:      kind,
		ShortName: ec.ShortName,
		Unit:      ec.Unit,
		Names:     ec.Names,
		Transform: transform,
		Text:      ec.Text,
	}, nil
}
