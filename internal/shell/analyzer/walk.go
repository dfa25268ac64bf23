package analyzer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/artpar/autodeploy/internal/core/analysis"
)

// readSnapshot collects the files and directories of a checkout that the
// analysis package inspects.
func readSnapshot(root, repositoryURL string) (analysis.Snapshot, error) {
	snap := analysis.Snapshot{
		RepositoryURL: repositoryURL,
		Files:         map[string]string{},
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/")

		if d.IsDir() {
			if analysis.SkipDir(d.Name()) || depth >= analysis.MaxDepth {
				return filepath.SkipDir
			}
			snap.Dirs = append(snap.Dirs, rel)
			return nil
		}
		if !d.Type().IsRegular() || !analysis.WantFile(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > analysis.MaxFileSize {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		snap.Files[rel] = string(data)
		return nil
	})
	if err != nil {
		return analysis.Snapshot{}, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(snap.Dirs)
	return snap, nil
}
