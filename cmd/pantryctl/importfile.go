package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"pantrypal-api/internal/service"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// itemFile is the layout of an import file: a list under "items".
type itemFile struct {
	Items []service.NewItem `json:"items" yaml:"items" toml:"items"`
}

// parseItemFile decodes an import file. The format follows the extension:
// .toml, .yaml/.yml or .json.
func parseItemFile(name string, r io.Reader) ([]service.NewItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	var f itemFile
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, &f); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported import format %q, use .toml, .yaml or .json", ext)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("%s has no items", name)
	}
	return f.Items, nil
}
