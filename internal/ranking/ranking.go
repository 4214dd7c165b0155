// Package ranking selects and filters the classes of a scanned project.
package ranking

import (
	"strings"

	"github.com/phobologic/docreflect/internal/model"
)

// SelectClasses returns a new ProjectMap with only the top-ranked classes.
// Classes must already be sorted by rank. If maxClasses is <= 0 or
// >= len(classes), pm is returned unchanged.
func SelectClasses(pm *model.ProjectMap, maxClasses int) *model.ProjectMap {
	if maxClasses <= 0 || maxClasses >= len(pm.Classes) {
		return pm
	}

	selected := pm.Classes[:maxClasses]
	names := make(map[string]struct{}, maxClasses)
	for i := range selected {
		names[selected[i].Name] = struct{}{}
	}

	return &model.ProjectMap{
		Name:         pm.Name,
		Root:         pm.Root,
		Classes:      selected,
		Dependencies: dependenciesWithin(pm.Dependencies, names, true),
	}
}

// FilterByName returns a new ProjectMap containing the classes whose name
// contains substr (case-insensitive), the classes they reference or are
// referenced by, and the edges touching a matched class.
func FilterByName(pm *model.ProjectMap, substr string) *model.ProjectMap {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	for i := range pm.Classes {
		if strings.Contains(strings.ToLower(pm.Classes[i].Name), lower) {
			matched[pm.Classes[i].Name] = struct{}{}
		}
	}

	deps := dependenciesWithin(pm.Dependencies, matched, false)

	related := make(map[string]struct{}, len(matched))
	for name := range matched {
		related[name] = struct{}{}
	}
	for i := range deps {
		related[deps[i].Source] = struct{}{}
		related[deps[i].Target] = struct{}{}
	}

	var classes []model.ClassReport
	for i := range pm.Classes {
		if _, ok := related[pm.Classes[i].Name]; ok {
			classes = append(classes, pm.Classes[i])
		}
	}

	return &model.ProjectMap{
		Name:         pm.Name,
		Root:         pm.Root,
		Classes:      classes,
		Dependencies: deps,
	}
}

// FilterByFile returns a new ProjectMap containing only classes declared in
// files whose path contains substr (case-insensitive), with all dependency
// edges touching those classes.
func FilterByFile(pm *model.ProjectMap, substr string) *model.ProjectMap {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	var classes []model.ClassReport
	for i := range pm.Classes {
		if strings.Contains(strings.ToLower(pm.Classes[i].File), lower) {
			matched[pm.Classes[i].Name] = struct{}{}
			classes = append(classes, pm.Classes[i])
		}
	}

	return &model.ProjectMap{
		Name:         pm.Name,
		Root:         pm.Root,
		Classes:      classes,
		Dependencies: dependenciesWithin(pm.Dependencies, matched, false),
	}
}

// dependenciesWithin keeps the edges with both ends in names, or with
// either end in names when both is false.
func dependenciesWithin(deps []model.Dependency, names map[string]struct{}, both bool) []model.Dependency {
	var out []model.Dependency
	for i := range deps {
		d := &deps[i]
		_, srcOK := names[d.Source]
		_, tgtOK := names[d.Target]
		if (both && srcOK && tgtOK) || (!both && (srcOK || tgtOK)) {
			out = append(out, *d)
		}
	}
	return out
}
