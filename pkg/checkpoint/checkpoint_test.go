package checkpoint

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, userID string) (*Manager, afero.Fs, clockwork.FakeClock) {
	t.Helper()
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	m, err := NewManagerAt(fs, "/data/checkpoints", userID, "", nil)
	require.NoError(t, err)
	return m.WithClock(clock), fs, clock
}

func TestLoadMissing(t *testing.T) {
	m, _, _ := newTestManager(t, "me")

	cp, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.False(t, m.Exists())
}

func TestRecordStallAndLoad(t *testing.T) {
	m, fs, clock := newTestManager(t, "12345678@N00")

	require.NoError(t, m.RecordStall("12345678@N00", 7, 20, errors.New("503 Service Unavailable")))
	assert.True(t, m.Exists())
	assert.Equal(t, filepath.Join("/data/checkpoints", "12345678@N00.checkpoint.json"), m.Path())

	tmp, _ := afero.Exists(fs, m.Path()+".tmp")
	assert.False(t, tmp)

	cp, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 7, cp.NextPage)
	assert.Equal(t, 20, cp.TotalPages)
	assert.Equal(t, "503 Service Unavailable", cp.LastError)
	assert.True(t, cp.StalledAt.Equal(clock.Now()))
	assert.Equal(t, 1, cp.Version)
}

func TestDelete(t *testing.T) {
	m, _, _ := newTestManager(t, "me")

	require.NoError(t, m.RecordStall("me", 2, 0, nil))
	require.NoError(t, m.Delete())
	assert.False(t, m.Exists())

	// deleting twice is fine
	require.NoError(t, m.Delete())
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	m, fs, _ := newTestManager(t, "me")

	require.NoError(t, afero.WriteFile(fs, m.Path(), []byte("{not json"), 0644))
	_, err := m.Load()
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, m.Path(), []byte(`{"next_page": 0}`), 0644))
	_, err = m.Load()
	assert.Error(t, err)
}

func TestFileNameSanitized(t *testing.T) {
	assert.Equal(t, "me.checkpoint.json", fileName("", ""))
	assert.Equal(t, "a_b_c.checkpoint.json", fileName("a/b\\c", ""))
}

func TestCheckpointsAreKeptPerDestination(t *testing.T) {
	fs := afero.NewMemMapFs()
	photos, err := NewManagerAt(fs, "/data/checkpoints", "me", "/srv/photos", nil)
	require.NoError(t, err)
	archive, err := NewManagerAt(fs, "/data/checkpoints", "me", "/srv/archive", nil)
	require.NoError(t, err)
	again, err := NewManagerAt(fs, "/data/checkpoints", "me", "/srv/photos/", nil)
	require.NoError(t, err)

	assert.NotEqual(t, photos.Path(), archive.Path())
	assert.Equal(t, photos.Path(), again.Path())

	require.NoError(t, photos.RecordStall("me", 5, 12, nil))
	assert.False(t, archive.Exists())

	cp, err := again.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 5, cp.NextPage)
	assert.Equal(t, "/srv/photos", cp.Destination)

	cp, err = archive.Load()
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestDataDirectoryHonoursXDG(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG only applies on unix-like systems")
	}
	t.Setenv("XDG_DATA_HOME", "/xdg")

	dir, err := DataDirectory()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "flickrmirror"), dir)
}
