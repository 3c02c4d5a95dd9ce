package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/mp3grab/internal/logctx"
)

// DeleteStale removes workspaces under root that are older than maxAge. Such
// directories only exist when a process died before releasing them. Workspaces
// still held by this process are never removed, however long they have been idle.
// It returns the number of workspaces removed.
func DeleteStale(ctx context.Context, root string, maxAge time.Duration) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()

	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		if inUse(dir) {
			continue
		}


		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue // released while we were scanning
			}

			logger.ErrorContext(ctx, "failed to stat workspace", "dir", dir, "err", err)

			return removed, err
		}

		age := now.Sub(info.ModTime())
		if age <= maxAge {
			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			logger.ErrorContext(ctx, "failed to delete stale workspace", "dir", dir, "err", err)

			return removed, err
		}

		removed++

		logger.InfoContext(ctx, "deleted stale workspace", "dir", dir, "modified", humanize.Time(info.ModTime()))
	}

	return removed, nil
}
