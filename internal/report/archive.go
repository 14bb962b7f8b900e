package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
)

// Archive zips files into path with Deflate, flat, under their base names.
// Files that cannot be read are logged and left out. It returns the names
// that were added.
func Archive(path string, files []string) ([]string, error) {
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	var added []string
	for _, file := range files {
		ok, err := addFile(zw, file)
		if err != nil {
			_ = zw.Close()
			_ = out.Close()
			return added, fmt.Errorf("archive %s: %w", file, err)
		}
		if ok {
			added = append(added, filepath.Base(file))
		}
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		return added, fmt.Errorf("finish archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return added, fmt.Errorf("close archive: %w", err)
	}
	return added, nil
}

// addFile copies one file into the archive. A file that cannot be opened
// is skipped; a failure after the entry was started is returned.
func addFile(zw *zip.Writer, file string) (bool, error) {
	f, err := os.Open(file)
	if err != nil {
		log.Warn().Err(err).Str("file", file).Msg("Leaving file out of the archive")
		return false, nil
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		log.Warn().Err(err).Str("file", file).Msg("Leaving file out of the archive")
		return false, nil
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return false, err
	}
	hdr.Name = filepath.Base(file)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(w, f); err != nil {
		return false, err
	}
	return true, nil
}
