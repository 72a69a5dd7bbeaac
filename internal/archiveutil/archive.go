// Package archiveutil bundles a directory tree into a compressed tar
// archive. The unpack command uses it to hand an extracted firmware
// tree around as a single file.
package archiveutil

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"

	ierrors "github.com/openixwty/imagewty/internal/errors"
)

// Supported archive formats.
const (
	FormatTarGz  = "tar.gz"
	FormatTarBz2 = "tar.bz2"
	FormatTarXz  = "tar.xz"
)

// CompressDir writes src's contents as a compressed tar archive at dst.
// format selects the compressor: tar.gz, tar.bz2, or tar.xz.
func CompressDir(src, dst, format string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", ierrors.ErrFileWriteError, err)
	}
	defer out.Close()

	var compressor io.WriteCloser
	switch format {
	case FormatTarGz:
		compressor = gzip.NewWriter(out)
	case FormatTarBz2:
		compressor, err = bzip2.NewWriter(out, nil)
		if err != nil {
			return fmt.Errorf("creating bzip2 writer: %w", err)
		}
	case FormatTarXz:
		compressor, err = xz.NewWriter(out)
		if err != nil {
			return fmt.Errorf("creating xz writer: %w", err)
		}
	default:
		return fmt.Errorf("%w: archive format %q", ierrors.ErrUnsupportedFormat, format)
	}

	tw := tar.NewWriter(compressor)
	if err := tarDir(tw, src); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar stream: %w", err)
	}
	return compressor.Close()
}

func tarDir(tw *tar.Writer, src string) error {
	base := filepath.Dir(src)
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, relPath)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(relPath)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tw, file)
		return err
	})
}
