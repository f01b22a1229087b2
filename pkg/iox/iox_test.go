package iox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("broken")
}

func TestWriteStreamToFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "sub", "a.txt")
	require.NoError(t, WriteStreamToFile(fn, strings.NewReader("hello")))
	b, err := os.ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	require.NoError(t, WriteFile(fn, []byte("again")))
	b, _ = os.ReadFile(fn)
	require.Equal(t, "again", string(b))

	// A failed write leaves the previous file intact
	require.Error(t, WriteStreamToFile(fn, failingReader{}))
	b, _ = os.ReadFile(fn)
	require.Equal(t, "again", string(b))
	_, err = os.Stat(fn + ".tmp")
	require.True(t, os.IsNotExist(err))
}
