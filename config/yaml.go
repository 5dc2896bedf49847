package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/c360/flowkit/errors"
)

// LoadYAML parses YAML into a configuration, flattening nested mappings
// into dotted keys. Key order follows document order, which is why the
// decoder walks the yaml.Node tree instead of unmarshaling into a map.
func LoadYAML(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrBadConfiguration, err),
			"Config", "LoadYAML", "yaml parse")
	}

	cfg := New()
	if len(root.Content) == 0 {
		return cfg, nil
	}

	if err := flattenNode(root.Content[0], "", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadYAMLFile reads and parses a YAML configuration file
func LoadYAMLFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrBadConfiguration, err),
			"Config", "LoadYAMLFile", "file read")
	}
	return LoadYAML(data)
}

// FromYAMLNode flattens an already-parsed YAML mapping node into a
// configuration. A zero node yields an empty configuration.
func FromYAMLNode(n *yaml.Node) (*Config, error) {
	cfg := New()
	if n == nil || n.IsZero() {
		return cfg, nil
	}
	if err := flattenNode(n, "", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flattenNode walks a mapping node, joining nested keys with the separator
func flattenNode(n *yaml.Node, prefix string, cfg *Config) error {
	if n.Kind != yaml.MappingNode {
		return errors.WrapInvalid(
			fmt.Errorf("%w: expected mapping at %q, got %v", errors.ErrBadConfiguration, prefix, n.Kind),
			"Config", "LoadYAML", "structure check")
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode := n.Content[i]
		valNode := n.Content[i+1]

		key := keyNode.Value
		if prefix != "" {
			key = prefix + Separator + key
		}

		switch valNode.Kind {
		case yaml.MappingNode:
			if err := flattenNode(valNode, key, cfg); err != nil {
				return err
			}
		case yaml.ScalarNode:
			cfg.Set(key, valNode.Value)
		default:
			return errors.WrapInvalid(
				fmt.Errorf("%w: key %q has unsupported value kind", errors.ErrBadConfiguration, key),
				"Config", "LoadYAML", "value kind check")
		}
	}
	return nil
}
