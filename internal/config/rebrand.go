package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ideforge/internal/fsutil"
	"ideforge/internal/manifest"
)

// RebrandConfig drives the maintenance task that turns the tool into its
// test twin.
type RebrandConfig struct {
	TargetName     string                `yaml:"target_name"`
	Description    string                `yaml:"description"`
	RepositoryFrom string                `yaml:"repository_from"`
	RepositoryTo   string                `yaml:"repository_to"`
	AddPackages    []manifest.Dependency `yaml:"add_packages"`
	RemovePackages []string              `yaml:"remove_packages"`
	ProductFrom    string                `yaml:"product_from"`
	ProductTo      string                `yaml:"product_to"`
	MenuFile       string                `yaml:"menu_file"`
	MenuTo         string                `yaml:"menu_to"`
}

// DefaultRebrand returns the Mastermind IDE settings.
func DefaultRebrand() RebrandConfig {
	return RebrandConfig{
		TargetName:     "mastermind",
		Description:    "The Learn IDE's evil twin that we use for testing",
		RepositoryFrom: "learn-ide",
		RepositoryTo:   "mastermind",
		AddPackages:    []manifest.Dependency{{Name: "mirage", Version: "learn-co/mirage#master"}},
		RemovePackages: []string{"learn-ide-tree"},
		ProductFrom:    "Learn IDE",
		ProductTo:      "Mastermind IDE",
		MenuFile:       "menus/learn-ide.cson",
		MenuTo:         "Mastermind",
	}
}

// SetProductName rewrites product.name in the config file at path. Other keys
// and comments are kept. A missing or empty file is replaced by the defaults
// under the new name. It reports whether the file changed.
func SetProductName(path, name string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read config: %w", err)
	}

	var root yaml.Node
	if err == nil {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return false, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if len(root.Content) == 0 {
		cfg := DefaultConfig()
		cfg.Product.Name = name
		return true, cfg.Save(path)
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return false, fmt.Errorf("config %s is not a mapping", path)
	}
	product, err := mappingEntry(doc, "product", yaml.MappingNode)
	if err != nil {
		return false, err
	}
	value, err := mappingEntry(product, "name", yaml.ScalarNode)
	if err != nil {
		return false, err
	}
	if value.Kind != yaml.ScalarNode {
		return false, fmt.Errorf("config key product.name is not a string")
	}
	if value.Value == name {
		return false, nil
	}
	*value = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name, LineComment: value.LineComment}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}

// mappingEntry returns the value node under key in mapping m, adding an
// empty node of the given kind when the key is absent or null.
func mappingEntry(m *yaml.Node, key string, kind yaml.Kind) (*yaml.Node, error) {
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config key %q is inside a non-mapping value", key)
	}
	empty := yaml.Node{Kind: kind, Tag: "!!map"}
	if kind == yaml.ScalarNode {
		empty.Tag = "!!str"
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != key {
			continue
		}
		v := m.Content[i+1]
		if v.Kind == yaml.ScalarNode && v.Tag == "!!null" {
			*v = empty
		}
		return v, nil
	}
	v := &empty
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
	return v, nil
}
