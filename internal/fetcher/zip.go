package fetcher

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// zipSignature opens every ZIP local file header.
var zipSignature = []byte("PK\x03\x04")

// IsZIP sniffs the first bytes of path. Files shorter than the signature
// are not ZIPs.
func IsZIP(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, eris.Wrapf(err, "zip: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	head := make([]byte, len(zipSignature))
	_, err = io.ReadFull(f, head)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return false, nil
	case err != nil:
		return false, eris.Wrapf(err, "zip: read %s", path)
	}
	return bytes.Equal(head, zipSignature), nil
}

// ExtractZIP unpacks every regular file of the archive under destDir,
// keeping the archive's folders, and returns the written paths. Entries
// whose names would land outside destDir fail the whole extraction.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var written []string
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if !filepath.IsLocal(entry.Name) {
			return written, eris.Errorf("zip: entry %q escapes the extract directory", entry.Name)
		}
		dest := filepath.Join(destDir, filepath.FromSlash(entry.Name))
		if err := writeEntry(entry, dest); err != nil {
			return written, err
		}
		written = append(written, dest)
	}
	return written, nil
}

func writeEntry(entry *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrapf(err, "zip: create folder for %s", entry.Name)
	}

	src, err := entry.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", entry.Name)
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "zip: create %s", dest)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "zip: write %s", dest)
	}
	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "zip: close %s", dest)
	}
	return nil
}

// FindByExt returns a file under dir with the first of exts that any file
// has. Ties within an extension go to the lexically smallest path.
func FindByExt(dir string, exts ...string) (string, error) {
	found := make(map[string][]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		found[ext] = append(found[ext], path)
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "zip: walk %s", dir)
	}

	for _, ext := range exts {
		if paths := found[strings.ToLower(ext)]; len(paths) > 0 {
			return slices.Min(paths), nil
		}
	}
	return "", eris.Errorf("zip: no %s file under %s", strings.Join(exts, " or "), dir)
}
