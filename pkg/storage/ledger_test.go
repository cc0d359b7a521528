package storage

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*Ledger, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	l, err := NewLedger(fs, "/mirror", 0755, 0644)
	require.NoError(t, err)
	return l, fs
}

func TestNewLedgerCreatesDirectory(t *testing.T) {
	_, fs := newLedger(t)
	ok, err := afero.DirExists(fs, "/mirror")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPaths(t *testing.T) {
	l, _ := newLedger(t)
	assert.Equal(t, filepath.Join("/mirror", "123.png"), l.BinaryPath("123", "png"))
	assert.Equal(t, filepath.Join("/mirror", "123.json"), l.MetadataPath("123"))
}

func TestSaveBinary(t *testing.T) {
	l, fs := newLedger(t)

	has, err := l.HasBinary("123", "png")
	require.NoError(t, err)
	assert.False(t, has)

	n, err := l.SaveBinary("123", "png", func(w io.Writer) error {
		_, err := w.Write([]byte("PNGDATA"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	data, err := afero.ReadFile(fs, "/mirror/123.png")
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))

	has, err = l.HasBinary("123", "png")
	require.NoError(t, err)
	assert.True(t, has)

	exists, _ := afero.Exists(fs, "/mirror/123.png.part")
	assert.False(t, exists)
}

func TestSaveBinaryFailureLeavesNothing(t *testing.T) {
	l, fs := newLedger(t)

	_, err := l.SaveBinary("123", "jpg", func(w io.Writer) error {
		w.Write([]byte("half"))
		return errors.New("connection reset")
	})
	require.Error(t, err)

	for _, p := range []string{"/mirror/123.jpg", "/mirror/123.jpg.part"} {
		exists, _ := afero.Exists(fs, p)
		assert.False(t, exists, p)
	}
}

func TestSaveMetadataAtomic(t *testing.T) {
	l, fs := newLedger(t)

	require.NoError(t, l.SaveMetadata("123", []byte(`{"id": "123"}`)))

	has, err := l.HasMetadata("123")
	require.NoError(t, err)
	assert.True(t, has)

	data, err := l.ReadMetadata("123")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"123"}`, string(data))

	entries, err := afero.ReadDir(fs, "/mirror")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestInvalidNames(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.HasBinary("../etc/passwd", "jpg")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = l.HasBinary("1", "")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.ErrorIs(t, l.SaveMetadata("a/b", nil), ErrInvalidName)
}

func TestScan(t *testing.T) {
	l, fs := newLedger(t)
	files := map[string]string{
		"/mirror/1.jpg":                "a",
		"/mirror/1.json":               "{}",
		"/mirror/2.png":                "b",
		"/mirror/3.json":               "{}",
		"/mirror/4.jpg.part":           "partial",
		"/mirror/5.json.123456789.tmp": "{",
		"/mirror/.DS_Store":            "",
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	require.NoError(t, fs.MkdirAll("/mirror/nested", 0755))

	report, err := l.Scan()
	require.NoError(t, err)

	assert.Equal(t, 1, report.Complete)
	assert.Equal(t, 1, report.BinaryOnly)
	assert.Equal(t, 1, report.MetadataOnly)
	assert.Equal(t, []string{"4.jpg.part", "5.json.123456789.tmp"}, report.Stray)
	require.Len(t, report.Items, 3)
	assert.Equal(t, ItemStatus{ID: "2", BinaryExt: "png", HasBinary: true}, report.Items[1])

	removed, err := l.RemoveStray()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	report, err = l.Scan()
	require.NoError(t, err)
	assert.Empty(t, report.Stray)
}
