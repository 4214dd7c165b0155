package finder

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/phobologic/docreflect/internal/model"
)

type prefixDirs struct {
	prefix string
	dirs   []string
}

// PSR4 finds classes laid out by the PSR-4 autoloading standard: the class
// name minus a namespace prefix, with backslashes turned into directory
// separators, relative to one of the prefix's base directories.
type PSR4 struct {
	prefixes []prefixDirs
}

// NewPSR4 returns a finder for prefix -> base directories. Longer prefixes
// are tried first; an empty prefix acts as a fallback for every class.
func NewPSR4(prefixes map[string][]string) *PSR4 {
	f := &PSR4{}
	for prefix, dirs := range prefixes {
		prefix = strings.TrimPrefix(prefix, `\`)
		if prefix != "" && !strings.HasSuffix(prefix, `\`) {
			prefix += `\`
		}
		f.prefixes = append(f.prefixes, prefixDirs{prefix: prefix, dirs: dirs})
	}
	sort.SliceStable(f.prefixes, func(i, j int) bool {
		if len(f.prefixes[i].prefix) != len(f.prefixes[j].prefix) {
			return len(f.prefixes[i].prefix) > len(f.prefixes[j].prefix)
		}
		return f.prefixes[i].prefix < f.prefixes[j].prefix
	})
	return f
}

// Find implements Finder.
func (f *PSR4) Find(className string) (string, bool) {
	className = model.NormalizeClassName(className)
	if className == "" {
		return "", false
	}
	for _, p := range f.prefixes {
		if !strings.HasPrefix(className, p.prefix) {
			continue
		}
		relative := strings.ReplaceAll(className[len(p.prefix):], `\`, string(filepath.Separator)) + ".php"
		for _, dir := range p.dirs {
			file := filepath.Join(dir, relative)
			if isFile(file) {
				return file, true
			}
		}
	}
	return "", false
}
