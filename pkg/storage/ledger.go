package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	metadataExt = "json"
	partSuffix  = ".part"
	tmpSuffix   = ".tmp"
)

// ErrInvalidName is returned for ids or formats that are not plain file name parts
var ErrInvalidName = errors.New("invalid artifact name")

// Ledger is the filesystem record of which artifacts exist for each item.
// Presence of a finalized file is the only completion marker.
type Ledger struct {
	fs       afero.Fs
	dir      string
	filePerm os.FileMode
}

// NewLedger creates a Ledger rooted at dir, creating the directory if needed
func NewLedger(fs afero.Fs, dir string, dirPerm, filePerm os.FileMode) (*Ledger, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Ledger{fs: fs, dir: dir, filePerm: filePerm}, nil
}

// Dir returns the mirror directory
func (l *Ledger) Dir() string { return l.dir }

// BinaryPath returns the final path of an item's original file
func (l *Ledger) BinaryPath(id, format string) string {
	return filepath.Join(l.dir, id+"."+format)
}

// MetadataPath returns the final path of an item's sidecar
func (l *Ledger) MetadataPath(id string) string {
	return filepath.Join(l.dir, id+"."+metadataExt)
}

// HasBinary reports whether the original file of id is on disk
func (l *Ledger) HasBinary(id, format string) (bool, error) {
	if err := validName(id, format); err != nil {
		return false, err
	}
	return l.isFile(l.BinaryPath(id, format))
}

// HasMetadata reports whether the sidecar of id is on disk
func (l *Ledger) HasMetadata(id string) (bool, error) {
	if err := validName(id, metadataExt); err != nil {
		return false, err
	}
	return l.isFile(l.MetadataPath(id))
}

func (l *Ledger) isFile(path string) (bool, error) {
	info, err := l.fs.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// SaveBinary streams an original into {id}.{format}.part via fill and renames it
// into place once fill returns without error. On failure the part file is removed.
func (l *Ledger) SaveBinary(id, format string, fill func(w io.Writer) error) (int64, error) {
	if err := validName(id, format); err != nil {
		return 0, err
	}

	final := l.BinaryPath(id, format)
	part := final + partSuffix

	out, err := l.fs.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, l.filePerm)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	counter := &countingWriter{w: out}
	fillErr := fill(counter)
	syncErr := out.Sync()
	closeErr := out.Close()

	switch {
	case fillErr != nil:
		l.fs.Remove(part)
		return counter.n, fillErr
	case syncErr != nil:
		l.fs.Remove(part)
		return counter.n, fmt.Errorf("failed to sync file: %w", syncErr)
	case closeErr != nil:
		l.fs.Remove(part)
		return counter.n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := l.fs.Rename(part, final); err != nil {
		l.fs.Remove(part)
		return counter.n, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return counter.n, nil
}

// SaveMetadata writes a fully built sidecar atomically
func (l *Ledger) SaveMetadata(id string, data []byte) error {
	if err := validName(id, metadataExt); err != nil {
		return err
	}

	tmp, err := afero.TempFile(l.fs, l.dir, id+"."+metadataExt+".*"+tmpSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		l.fs.Remove(tmpName)
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := l.fs.Chmod(tmpName, l.filePerm); err != nil {
		l.fs.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := l.fs.Rename(tmpName, l.MetadataPath(id)); err != nil {
		l.fs.Remove(tmpName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// ReadMetadata returns the raw sidecar of id
func (l *Ledger) ReadMetadata(id string) ([]byte, error) {
	if err := validName(id, metadataExt); err != nil {
		return nil, err
	}
	return afero.ReadFile(l.fs, l.MetadataPath(id))
}

// ItemStatus records which artifacts of one item exist
type ItemStatus struct {
	ID          string
	BinaryExt   string
	HasBinary   bool
	HasMetadata bool
}

// Report summarizes the mirror directory
type Report struct {
	Items        []ItemStatus
	Complete     int
	BinaryOnly   int
	MetadataOnly int
	// Stray holds interrupted transfers and unfinished sidecar writes
	Stray []string
}

// Scan walks the mirror directory and classifies every file
func (l *Ledger) Scan() (*Report, error) {
	entries, err := afero.ReadDir(l.fs, l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	items := make(map[string]*ItemStatus)
	get := func(id string) *ItemStatus {
		st, ok := items[id]
		if !ok {
			st = &ItemStatus{ID: id}
			items[id] = st
		}
		return st
	}

	report := &Report{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, partSuffix) || strings.HasSuffix(name, tmpSuffix) {
			report.Stray = append(report.Stray, name)
			continue
		}

		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if ext == "" || id == "" || strings.HasPrefix(name, ".") {
			continue
		}

		st := get(id)
		if ext == metadataExt {
			st.HasMetadata = true
		} else {
			st.HasBinary = true
			st.BinaryExt = ext
		}
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		st := items[id]
		report.Items = append(report.Items, *st)
		switch {
		case st.HasBinary && st.HasMetadata:
			report.Complete++
		case st.HasBinary:
			report.BinaryOnly++
		default:
			report.MetadataOnly++
		}
	}
	sort.Strings(report.Stray)
	return report, nil
}

// RemoveStray deletes leftovers of interrupted writes and returns how many were removed
func (l *Ledger) RemoveStray() (int, error) {
	report, err := l.Scan()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range report.Stray {
		if err := l.fs.Remove(filepath.Join(l.dir, name)); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

func validName(id, ext string) error {
	for _, part := range []string{id, ext} {
		if part == "" || part == "." || part == ".." ||
			strings.ContainsAny(part, `/\`) || strings.ContainsRune(part, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidName, part)
		}
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
