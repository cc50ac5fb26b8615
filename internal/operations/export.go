package operations

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ExportAll bundles every location's collected history into one
// zstd-compressed tarball per location under outDir, for offsite
// shipping. The state store is only read, never modified.
func ExportAll(configPath, outDir string) error {
	op, err := NewOperator(configPath)
	if err != nil {
		return err
	}
	return Aggregate(op.Export(outDir))
}

// Export writes <outDir>/<location>.tar.zst for each location that has
// collected state. Locations never collected are skipped.
func (op *Operator) Export(outDir string) []Result {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return []Result{{
			Location: outDir,
			Outcome:  OutcomeFailed,
			Err:      fmt.Errorf("create export directory: %w", err),
		}}
	}

	locations := op.cfg.ExpandLocations()
	results := make([]Result, 0, len(locations))
	for _, loc := range locations {
		name := loc.Name()
		srcDir := filepath.Join(op.store.Root(), name)
		if _, err := os.Stat(srcDir); os.IsNotExist(err) {
			op.log.Info("no collected state, skipping", "location", name)
			results = append(results, Result{Location: name, Outcome: OutcomeSkipped})
			continue
		}

		dest := filepath.Join(outDir, name+".tar.zst")
		if err := exportLocation(srcDir, dest); err != nil {
			op.log.Error("export failed", "location", name, "error", err.Error())
			results = append(results, Result{Location: name, Outcome: OutcomeFailed, Err: err})
			continue
		}
		op.log.Info("exported", "location", name, "archive", dest)
		results = append(results, Result{Location: name, Outcome: OutcomeExported})
	}
	return results
}

// exportLocation archives one location directory into a .tar.zst file.
// Latest references are preserved as the symlinks they are.
func exportLocation(srcDir, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", dest, err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = rel
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if link != "" {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	if err := filepath.WalkDir(srcDir, walk); err != nil {
		return fmt.Errorf("archive %s: %w", srcDir, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zstd: %w", err)
	}
	return nil
}
