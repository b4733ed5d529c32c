package provisioner

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxEntryBytes caps a single extracted file (500 MB) to guard against
// decompression bombs in a tampered archive.
const maxEntryBytes = 500 << 20

// extractArchive unpacks the tar.gz archive into destDir. Entry names are
// sanitized so an archive can never write outside destDir.
func extractArchive(archivePath, destDir string) error {
	f, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read gzip stream: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}

		if err := extractEntry(tr, header, destDir); err != nil {
			return err
		}
	}
}

// extractEntry writes a single archive entry under destDir. Only directories
// and regular files are materialized; links and special files are skipped.
func extractEntry(tr *tar.Reader, header *tar.Header, destDir string) error {
	name := filepath.Clean(header.Name)
	if filepath.IsAbs(name) || strings.HasPrefix(name, "..") {
		return fmt.Errorf("%q: %w", header.Name, errUnsafeArchivePath)
	}

	target := filepath.Join(destDir, name)

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, DefaultFileMode)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), DefaultFileMode); err != nil {
			return err
		}

		out, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, header.FileInfo().Mode().Perm())
		if err != nil {
			return err
		}

		written, err := io.Copy(out, io.LimitReader(tr, maxEntryBytes+1))
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}

		if err != nil {
			return fmt.Errorf("extract %s: %w", header.Name, err)
		}

		if written > maxEntryBytes {
			return fmt.Errorf("%q: %w", header.Name, errEntryTooLarge)
		}

		return nil
	default:
		return nil
	}
}

// findExtracted locates a file by base name anywhere under root. Release
// archives have shipped both flat and nested layouts, so matching by base
// name keeps the provisioner indifferent to that.
func findExtracted(root, name string) (string, error) {
	var found string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && d.Name() == name {
			found = path

			return fs.SkipAll
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	if found == "" {
		return "", fmt.Errorf("%q: %w", name, errMissingArchiveEntry)
	}

	return found, nil
}
