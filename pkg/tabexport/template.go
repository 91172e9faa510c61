package tabexport

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadTemplate reads an export configuration from a YAML file.
func LoadTemplate(path string) (*ExportConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template %s: %w", path, err)
	}
	defer f.Close()
	return LoadTemplateFromReader(f)
}

// LoadTemplateFromString reads an export configuration from YAML text.
func LoadTemplateFromString(s string) (*ExportConfig, error) {
	return LoadTemplateFromReader(strings.NewReader(s))
}

// LoadTemplateFromReader decodes a YAML template. Unknown fields are
// rejected. Data sources are not part of a template and must be attached
// before Preprocess.
func LoadTemplateFromReader(r io.Reader) (*ExportConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg ExportConfig
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return nil, configErrorf("", "template is empty")
		}
		return nil, &ConfigurationError{Field: "template", Err: err}
	}
	if err := validateTemplate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateTemplate(cfg *ExportConfig) error {
	if len(cfg.Sheets) == 0 {
		return configErrorf("sheets", "template defines no sheets")
	}
	ids := make(map[string]bool)
	for i, sheet := range cfg.Sheets {
		if sheet == nil {
			return configErrorf(fmt.Sprintf("sheets[%d]", i), "sheet is empty")
		}
		for j, comp := range sheet.Components {
			field := fmt.Sprintf("sheets[%d].components[%d]", i, j)
			if comp == nil {
				return configErrorf(field, "component is empty")
			}
			if comp.ID != "" {
				if ids[comp.ID] {
					return configErrorf(field+".id", "duplicate component id %q", comp.ID)
				}
				ids[comp.ID] = true
			}
			// query components may take their columns from the result set
			if len(comp.Columns) == 0 && comp.Query == "" {
				return configErrorf(field+".columns", "component defines no columns")
			}
		}
	}
	return nil
}

// Component returns the component with the given id, or nil.
func (c *ExportConfig) Component(id string) *ComponentConfig {
	for _, sheet := range c.Sheets {
		for _, comp := range sheet.Components {
			if comp.ID == id {
				return comp
			}
		}
	}
	return nil
}

// Components returns every component in sheet order.
func (c *ExportConfig) Components() []*ComponentConfig {
	var out []*ComponentConfig
	for _, sheet := range c.Sheets {
		out = append(out, sheet.Components...)
	}
	return out
}
