package finder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/docreflect/internal/config"
	"github.com/phobologic/docreflect/internal/model"
)

// Composer finds classes the way Composer's autoloader would, from the
// psr-4, psr-0 and classmap sections of composer.json (autoload and
// autoload-dev) and of every installed package.
type Composer struct {
	dir       string
	vendorDir string

	psr4     *PSR4
	psr0     []prefixDirs
	classmap *Classmap
}

type composerAutoload struct {
	PSR4     map[string]stringList `json:"psr-4"`
	PSR0     map[string]stringList `json:"psr-0"`
	Classmap []string              `json:"classmap"`
}

type composerManifest struct {
	Autoload    composerAutoload `json:"autoload"`
	AutoloadDev composerAutoload `json:"autoload-dev"`
	Config      struct {
		VendorDir string `json:"vendor-dir"`
	} `json:"config"`
}

type installedPackage struct {
	Name        string           `json:"name"`
	InstallPath string           `json:"install-path"`
	Autoload    composerAutoload `json:"autoload"`
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = stringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// FindComposerDir returns the nearest directory at or above start that
// contains composer.json.
func FindComposerDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", &config.ConfigError{Field: "root", Err: err}
	}
	for {
		if isFile(filepath.Join(dir, "composer.json")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", config.Errorf("root", "composer root directory was not found above %s", start)
		}
		dir = parent
	}
}

// NewComposer locates composer.json at or above start and loads its
// autoload configuration.
func NewComposer(start string) (*Composer, error) {
	dir, err := FindComposerDir(start)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, "composer.json"))
	if err != nil {
		return nil, &config.ConfigError{Field: "composer.json", Err: err}
	}
	var manifest composerManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &config.ConfigError{Field: "composer.json", Err: fmt.Errorf("parsing %s: %w", filepath.Join(dir, "composer.json"), err)}
	}

	c := &Composer{dir: dir, vendorDir: filepath.Join(dir, "vendor")}
	if manifest.Config.VendorDir != "" {
		c.vendorDir = resolveDir(dir, manifest.Config.VendorDir)
	}

	psr4 := make(map[string][]string)
	var classmap []string
	add := func(base string, a composerAutoload) {
		for prefix, dirs := range a.PSR4 {
			for _, d := range dirs {
				psr4[prefix] = append(psr4[prefix], resolveDir(base, d))
			}
		}
		for prefix, dirs := range a.PSR0 {
			pd := prefixDirs{prefix: strings.TrimPrefix(prefix, `\`)}
			for _, d := range dirs {
				pd.dirs = append(pd.dirs, resolveDir(base, d))
			}
			c.psr0 = append(c.psr0, pd)
		}
		for _, p := range a.Classmap {
			classmap = append(classmap, resolveDir(base, p))
		}
	}

	add(dir, manifest.Autoload)
	add(dir, manifest.AutoloadDev)
	for _, pkg := range c.installedPackages() {
		add(pkg.InstallPath, pkg.Autoload)
	}

	c.psr4 = NewPSR4(psr4)
	if len(classmap) > 0 {
		c.classmap = NewClassmap(classmap, nil)
	}
	return c, nil
}

// installedPackages reads vendor/composer/installed.json in either the
// Composer 1 (array) or Composer 2 ({"packages": [...]}) layout. Install
// paths come back absolute.
func (c *Composer) installedPackages() []installedPackage {
	composerDir := filepath.Join(c.vendorDir, "composer")
	data, err := os.ReadFile(filepath.Join(composerDir, "installed.json"))
	if err != nil {
		return nil
	}

	var pkgs []installedPackage
	var v2 struct {
		Packages []installedPackage `json:"packages"`
	}
	if err := json.Unmarshal(data, &v2); err == nil {
		pkgs = v2.Packages
	} else if err := json.Unmarshal(data, &pkgs); err != nil {
		return nil
	}

	for i := range pkgs {
		if pkgs[i].InstallPath != "" {
			pkgs[i].InstallPath = resolveDir(composerDir, pkgs[i].InstallPath)
		} else {
			pkgs[i].InstallPath = filepath.Join(c.vendorDir, filepath.FromSlash(pkgs[i].Name))
		}
	}
	return pkgs
}

// Dir returns the directory holding composer.json.
func (c *Composer) Dir() string {
	return c.dir
}

// Find implements Finder.
func (c *Composer) Find(className string) (string, bool) {
	className = model.NormalizeClassName(className)
	if className == "" {
		return "", false
	}
	if c.classmap != nil {
		if path, ok := c.classmap.Find(className); ok {
			return path, true
		}
	}
	if path, ok := c.psr4.Find(className); ok {
		return path, true
	}
	return c.findPSR0(className)
}

// findPSR0 applies the PSR-0 rule: namespace separators and underscores in
// the class part both become directory separators, and the path includes
// the full class name rather than only the part after the prefix.
func (c *Composer) findPSR0(className string) (string, bool) {
	ns, class := "", className
	if i := strings.LastIndexByte(className, '\\'); i >= 0 {
		ns, class = className[:i+1], className[i+1:]
	}
	relative := strings.ReplaceAll(ns, `\`, string(filepath.Separator)) +
		strings.ReplaceAll(class, "_", string(filepath.Separator)) + ".php"

	for _, p := range c.psr0 {
		if !strings.HasPrefix(className, p.prefix) {
			continue
		}
		for _, dir := range p.dirs {
			file := filepath.Join(dir, relative)
			if isFile(file) {
				return file, true
			}
		}
	}
	return "", false
}

func resolveDir(base, path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
