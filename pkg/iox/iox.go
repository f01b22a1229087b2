package iox

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// WriteStreamToFile writes src to a temporary file next to dstFilename, and then
// renames it into place. A reader never sees a half-written dstFilename.
func WriteStreamToFile(dstFilename string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dstFilename), 0755); err != nil {
		return err
	}
	tmpFilename := dstFilename + ".tmp"
	dstFile, err := os.Create(tmpFilename)
	if err != nil {
		return err
	}
	_, err = io.Copy(dstFile, src)
	if closeErr := dstFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpFilename)
		return err
	}
	return os.Rename(tmpFilename, dstFilename)
}

// WriteFile is WriteStreamToFile for a byte slice
func WriteFile(dstFilename string, data []byte) error {
	return WriteStreamToFile(dstFilename, bytes.NewReader(data))
}
