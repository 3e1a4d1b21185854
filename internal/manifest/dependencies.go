package manifest

import (
	"fmt"

	"ideforge/internal/logging"
)

// DependenciesKey is the manifest field holding bundled editor packages.
const DependenciesKey = "packageDependencies"

// Dependency is one bundled package pin.
type Dependency struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

func (d Dependency) String() string { return d.Name + "@" + d.Version }

// Dependencies returns packageDependencies in document order. Non-string
// versions are returned as their raw JSON text.
func (d *Document) Dependencies() ([]Dependency, error) {
	deps, err := d.Object(DependenciesKey)
	if err != nil {
		return nil, err
	}
	out := make([]Dependency, 0, deps.Len())
	for _, name := range deps.keys {
		version, ok := deps.GetString(name)
		if !ok {
			version = string(deps.values[name])
		}
		out = append(out, Dependency{Name: name, Version: version})
	}
	return out, nil
}

// RemoveDependencies deletes the named packages. Names that are not present
// are ignored.
func (d *Document) RemoveDependencies(names ...string) error {
	if !d.Has(DependenciesKey) {
		return nil
	}
	deps, err := d.Object(DependenciesKey)
	if err != nil {
		return err
	}
	for _, name := range names {
		if deps.Delete(name) {
			logging.ManifestDebug("removed dependency %s", name)
		}
	}
	return d.Set(DependenciesKey, deps)
}

// AddDependencies inserts the given packages in order. A later entry with
// the same name wins; an existing name keeps its position.
func (d *Document) AddDependencies(add ...Dependency) error {
	deps, err := d.Object(DependenciesKey)
	if err != nil {
		return err
	}
	for _, dep := range add {
		if dep.Name == "" {
			return fmt.Errorf("dependency with empty name (version %q)", dep.Version)
		}
		if err := deps.Set(dep.Name, dep.Version); err != nil {
			return err
		}
		logging.ManifestDebug("injected dependency %s", dep)
	}
	return d.Set(DependenciesKey, deps)
}

// Patch loads the manifest at path, removes then inserts dependencies and
// writes the result back. On any error the file on disk is unchanged.
func Patch(path string, remove []string, add []Dependency) error {
	doc, err := Load(path)
	if err != nil {
		return err
	}
	if err := doc.RemoveDependencies(remove...); err != nil {
		return err
	}
	if err := doc.AddDependencies(add...); err != nil {
		return err
	}
	if err := doc.Save(path); err != nil {
		return err
	}
	logging.Manifest("patched %s: removed %d, injected %d packages", path, len(remove), len(add))
	return nil
}
