// Package zone resolves fully-qualified names to the zone that owns them.
//
// Zones are loaded once per run from the store. One of them is the root
// domain; every other managed zone is a subzone whose name ends with the
// root. A name is owned by the most specific subzone whose suffix it
// carries, or by the root when no subzone matches.
package zone

import (
	"log/slog"
	"sort"
	"strings"
)

// Zone is a DNS domain row as stored in the zone table.
type Zone struct {
	ID   int64
	Name string
}

// subzone is a suffix fragment (".dev.") and the zone it maps to.
type subzone struct {
	fragment string
	id       int64
	name     string
}

// Index maps fully-qualified names to zone ids using longest-suffix match.
// An Index is immutable once built and safe for concurrent use.
type Index struct {
	root     Zone
	subzones []subzone
}

// Option is a functional option for Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report skipped zone rows.
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Build creates an Index from the zone rows and the configured root name.
//
// Rows that do not fall under root are ignored with a warning. Returns a
// *ConfigError when no row is named exactly root.
func Build(zones []Zone, root string, opts ...Option) (*Index, error) {
	o := buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if root == "" {
		return nil, &ConfigError{Root: root, Message: "root domain is empty"}
	}

	idx := &Index{}
	foundRoot := false

	for _, z := range zones {
		switch {
		case z.Name == root:
			if foundRoot {
				o.logger.Warn("duplicate root zone row, keeping first",
					slog.String("zone", z.Name),
					slog.Int64("kept_id", idx.root.ID),
					slog.Int64("ignored_id", z.ID),
				)
				continue
			}
			idx.root = z
			foundRoot = true
		case strings.HasSuffix(z.Name, "."+root):
			idx.subzones = append(idx.subzones, subzone{
				fragment: "." + strings.TrimSuffix(z.Name, root),
				id:       z.ID,
				name:     z.Name,
			})
		default:
			o.logger.Warn("ignoring zone outside root domain",
				slog.String("zone", z.Name),
				slog.String("root", root),
			)
		}
	}

	if !foundRoot {
		return nil, &ConfigError{Root: root, Message: "root zone not found in zone table"}
	}

	// Longest fragment first; stable keeps input order for equal lengths.
	sort.SliceStable(idx.subzones, func(i, j int) bool {
		return len(idx.subzones[i].fragment) > len(idx.subzones[j].fragment)
	})

	o.logger.Debug("zone index built",
		slog.String("root", root),
		slog.Int64("root_id", idx.root.ID),
		slog.Int("subzones", len(idx.subzones)),
	)

	return idx, nil
}

// Resolve returns the id of the zone owning name.
//
// name must end with the root name, otherwise a *DomainMismatchError is
// returned. The longest matching subzone wins; the root is the fallback.
func (idx *Index) Resolve(name string) (int64, error) {
	if !strings.HasSuffix(name, idx.root.Name) {
		return 0, &DomainMismatchError{Name: name, Root: idx.root.Name}
	}

	prefix := strings.TrimSuffix(name, idx.root.Name)
	for _, sz := range idx.subzones {
		if strings.HasSuffix(prefix, sz.fragment) {
			return sz.id, nil
		}
	}

	return idx.root.ID, nil
}

// Contains reports whether name lies strictly below the root domain.
func (idx *Index) Contains(name string) bool {
	return strings.HasSuffix(name, "."+idx.root.Name)
}

// Root returns the root zone.
func (idx *Index) Root() Zone {
	return idx.root
}

// Len returns the number of zones in the index, root included.
func (idx *Index) Len() int {
	return len(idx.subzones) + 1
}

// ZoneName returns the name of the zone with the given id.
func (idx *Index) ZoneName(id int64) (string, bool) {
	if id == idx.root.ID {
		return idx.root.Name, true
	}
	for _, sz := range idx.subzones {
		if sz.id == id {
			return sz.name, true
		}
	}
	return "", false
}
