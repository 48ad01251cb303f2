// Package archive packages a generated project tree into a single zip file.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// ErrSourceNotDirectory is returned when the archive source is not a directory.
var ErrSourceNotDirectory = errors.New("archive source is not a directory")

// Archiver compresses directory trees into zip files.
type Archiver interface {
	// Archive writes every file and subdirectory of sourceDir into destFile,
	// with entry names relative to sourceDir.
	Archive(sourceDir, destFile string) error
}

// ZipArchiver is an Archiver producing deflate-compressed zip files at
// maximum compression.
type ZipArchiver struct {
	level int
}

// PartialPattern is the name pattern, relative to the directory of destFile,
// of the temporary file an unfinished archive is written to. The "*" makes
// it usable both with os.CreateTemp and filepath.Glob.
func PartialPattern(destFile string) string {
	return "." + filepath.Base(destFile) + ".*.tmp"
}

// NewZipArchiver returns a ZipArchiver using flate.BestCompression.
func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{level: flate.BestCompression}
}

// Archive implements Archiver. The destination only appears once the archive
// has been completely written, flushed and closed; on failure nothing is left
// at destFile.
func (a *ZipArchiver) Archive(sourceDir, destFile string) (err error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to stat archive source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceNotDirectory, sourceDir)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destFile), PartialPattern(destFile))
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, a.level)
	})

	if err = addTree(zw, sourceDir); err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if err = os.Rename(tmpName, destFile); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

// addTree walks root in lexical order and writes one entry per path below it.
func addTree(zw *zip.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("failed to read %s: %w", path, walkErr)
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("failed to build header for %s: %w", rel, err)
		}
		header.Name = filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			header.Name += "/"
			header.Method = zip.Store
			_, err = zw.CreateHeader(header)
			return err

		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("failed to read link %s: %w", rel, err)
			}
			header.Method = zip.Store
			w, err := zw.CreateHeader(header)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, filepath.ToSlash(target))
			return err

		case info.Mode().IsRegular():
			header.Method = zip.Deflate
			w, err := zw.CreateHeader(header)
			if err != nil {
				return err
			}
			return copyFile(w, path)

		default:
			return fmt.Errorf("unsupported file type %s for %s", info.Mode().Type(), rel)
		}
	})
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// Entries lists the entry names of a zip file in archive order.
func Entries(archivePath string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}
