package copydispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lakeferry/lakeferry/pkg/jobstore"
)

// listLocalFiles returns the regular files directly under dir whose name
// matches mask, sorted by name.
func listLocalFiles(dir, mask string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source folder %q does not exist", dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %q is not a folder", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source folder: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := doublestar.Match(mask, e.Name())
		if err != nil {
			return nil, fmt.Errorf("invalid file mask %q: %w", mask, err)
		}
		if ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// copyFile duplicates src to dst preserving mode and modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// copyFS handles the filesystem-to-filesystem routes (local and mounted smb).
func copyFS(ctx context.Context, _ *Dispatcher, job *jobstore.Job) (*Result, error) {
	m := mask(job)
	sourceFiles, err := listLocalFiles(job.Source, m)
	if err != nil {
		return nil, err
	}
	if len(sourceFiles) == 0 {
		return nil, fmt.Errorf("no files matching %q found in folder %q", m, job.Source)
	}
	if err := os.MkdirAll(job.Target, 0755); err != nil {
		return nil, fmt.Errorf("create target folder: %w", err)
	}

	copied := make([]string, 0, len(sourceFiles))
	for _, src := range sourceFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dst := filepath.Join(job.Target, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		copied = append(copied, dst)
	}
	return &Result{CopiedFiles: copied, SourceFiles: sourceFiles}, nil
}
