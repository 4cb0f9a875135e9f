package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"modelproxy-http/internal/model"
)

// ErrPathUnreadable marks a failure to stat or list the profile path itself,
// as opposed to a failure of one profile file inside it.
var ErrPathUnreadable = errors.New("profile path unreadable")

// Extensions lists the file extensions read from a profile directory.
var Extensions = []string{".yaml", ".yml"}

// document is the on-disk layout of a profile file.
type document struct {
	Interfaces []model.RawProfile `yaml:"interfaces"`
}

// LoadFile reads the interface definitions in a single YAML file. Relative
// rule file paths are resolved against the file's directory.
func LoadFile(path string) ([]model.RawProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("profile: parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range doc.Interfaces {
		rf := doc.Interfaces[i].RuleFile
		if rf != "" && !filepath.IsAbs(rf) {
			doc.Interfaces[i].RuleFile = filepath.Join(dir, rf)
		}
	}
	return doc.Interfaces, nil
}

// LoadPath reads a profile file, or every profile file directly inside a
// directory in lexical order. Files that fail to load are skipped; their
// errors are combined into the returned error alongside the profiles that did load.
// Errors about the path itself wrap ErrPathUnreadable.
func LoadPath(path string) ([]model.RawProfile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("profile: %w: stat %s: %w", ErrPathUnreadable, path, err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("profile: %w: read dir %s: %w", ErrPathUnreadable, path, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !HasProfileExtension(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)

	var (
		all  []model.RawProfile
		errs error
	)
	for _, f := range files {
		raws, err := LoadFile(f)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		all = append(all, raws...)
	}
	return all, errs
}

// HasProfileExtension reports whether name looks like a profile file.
func HasProfileExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
