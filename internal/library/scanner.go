package library

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// File is a supported document found during a scan.
type File struct {
	Section string // top-level directory name
	RelPath string // relative to the library root, slash separated
	AbsPath string
}

// Scan walks the library and returns every supported file below a section
// directory, sorted by path. Files directly under the root belong to no section
// and are skipped, as are hidden files and directories.
func (l *Library) Scan(ctx context.Context) ([]File, error) {
	var files []File

	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if path != l.root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.extensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}

		relPath, err := filepath.Rel(l.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		section, _, found := strings.Cut(relPath, "/")
		if !found {
			return nil
		}
		files = append(files, File{Section: section, RelPath: relPath, AbsPath: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan library %s: %w", l.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
