package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Filter selects dump files by base name. Exclude wins over Include; an
// empty Include accepts everything not excluded.
type Filter struct {
	Include []string
	Exclude []string
}

// Match reports whether the file at path passes the filter.
func (f Filter) Match(path string) bool {
	base := filepath.Base(path)
	if anyMatch(f.Exclude, base) {
		return false
	}
	return len(f.Include) == 0 || anyMatch(f.Include, base)
}

func anyMatch(patterns []string, name string) bool {
	return slices.ContainsFunc(patterns, func(p string) bool {
		ok, _ := filepath.Match(p, name)
		return ok
	})
}

// Discover expands files and directories into the dumps to decode. Explicit
// files keep argument order, directory listings are sorted, and a file
// reached twice is decoded once. Recursive walks skip hidden directories.
func Discover(args []string, recursive bool, filter Filter) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		key := filepath.Clean(p)
		if !seen[key] {
			seen[key] = true
			files = append(files, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if filter.Match(arg) {
				add(arg)
			}
			continue
		}
		found, err := walk(arg, recursive, filter)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			add(p)
		}
	}
	return files, nil
}

func walk(root string, recursive bool, filter Filter) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path == root:
			return nil
		case d.IsDir() && (!recursive || strings.HasPrefix(d.Name(), ".")):
			return filepath.SkipDir
		case d.IsDir():
			return nil
		case filter.Match(path):
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.Sort(found)
	return found, nil
}
