package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
)

// Extension is the file extension of grid documents.
const Extension = ".hcl"

// ResolvePath returns the document files at path. A file path is returned
// as is; a directory is scanned recursively. The result is sorted.
func ResolvePath(ctx context.Context, path string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Resolving grid path.", "path", path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("grid path not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}

	if !info.IsDir() {
		if filepath.Ext(path) != Extension {
			return nil, fmt.Errorf("specified file is not an %s file: %s", Extension, path)
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == Extension {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	logger.Debug("Found grid files.", "count", len(files), "directory", path)
	return files, nil
}
