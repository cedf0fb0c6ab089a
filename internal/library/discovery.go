package library

import (
	"context"
	"os"
	"path/filepath"

	"github.com/llehouerou/earworm/internal/audio"
)

// discoverFiles walks the given source directories and returns all playable
// music files found, in walk order.
func discoverFiles(ctx context.Context, sources []string, progress chan<- ScanProgress) ([]fileInfo, error) {
	var files []fileInfo
	seen := make(map[string]bool)
	for _, src := range sources {
		err := filepath.WalkDir(src, func(path string, d os.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Skip any walk errors - intentionally continuing to scan other paths
			if walkErr != nil {
				return nil //nolint:nilerr // intentionally skipping errors
			}
			if d.IsDir() || !audio.IsSupportedFile(path) {
				return nil
			}

			abs, err := filepath.Abs(path)
			if err != nil || seen[abs] {
				return nil //nolint:nilerr // intentionally skipping errors
			}
			seen[abs] = true

			files = append(files, fileInfo{path: abs, source: src})

			if len(files)%100 == 0 {
				report(progress, ScanProgress{Phase: "scanning", Current: len(files)})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
