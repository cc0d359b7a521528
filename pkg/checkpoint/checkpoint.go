package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"flickrmirror/pkg/logger"
)

const appName = "flickrmirror"

// Checkpoint records the catalog page at which enumeration stalled.
// Item completion is never stored here; the mirror directory is authoritative.
type Checkpoint struct {
	UserID      string    `json:"user_id"`
	Destination string    `json:"destination,omitempty"`
	NextPage    int       `json:"next_page"`
	TotalPages  int       `json:"total_pages,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	StalledAt   time.Time `json:"stalled_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	fs             afero.Fs
	checkpointPath string
	destination    string
	clock          clockwork.Clock
	logger         logger.Logger
}

// NewManager creates a manager storing the checkpoint of userID mirrored into
// destination under the user data directory
func NewManager(fs afero.Fs, userID, destination string, log logger.Logger) (*Manager, error) {
	dataDir, err := DataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(fs, filepath.Join(dataDir, "checkpoints"), userID, destination, log)
}

// NewManagerAt creates a manager storing checkpoints in dir
func NewManagerAt(fs afero.Fs, dir, userID, destination string, log logger.Logger) (*Manager, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		fs:             fs,
		checkpointPath: filepath.Join(dir, fileName(userID, destination)),
		destination:    destination,
		clock:          clockwork.NewRealClock(),
		logger:         log,
	}, nil
}

// WithClock replaces the clock used for timestamps
func (m *Manager) WithClock(clock clockwork.Clock) *Manager {
	m.clock = clock
	return m
}

// Path returns the checkpoint file path
func (m *Manager) Path() string { return m.checkpointPath }

// Load returns the stored checkpoint, or nil when there is none
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := afero.ReadFile(m.fs, m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.NextPage < 1 {
		return nil, fmt.Errorf("checkpoint %s has invalid next_page %d", m.checkpointPath, cp.NextPage)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"user_id":    cp.UserID,
		"next_page":  cp.NextPage,
		"stalled_at": cp.StalledAt,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = m.clock.Now()
	if cp.Version == 0 {
		cp.Version = 1
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := m.fs.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := m.fs.Rename(tempPath, m.checkpointPath); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"user_id":   cp.UserID,
		"next_page": cp.NextPage,
	})
	return nil
}

// RecordStall saves a checkpoint pointing at the page that could not be fetched
func (m *Manager) RecordStall(userID string, page, totalPages int, cause error) error {
	cp := &Checkpoint{
		UserID:      userID,
		Destination: m.destination,
		NextPage:    page,
		TotalPages:  totalPages,
		StalledAt:   m.clock.Now(),
	}
	if cause != nil {
		cp.LastError = cause.Error()
	}
	return m.Save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := m.fs.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	ok, err := afero.Exists(m.fs, m.checkpointPath)
	return err == nil && ok
}

// fileName maps a user id and destination directory to a safe file name.
// Each destination gets its own checkpoint.
func fileName(userID, destination string) string {
	if userID == "" {
		userID = "me"
	}
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, userID)
	if destination == "" {
		return safe + ".checkpoint.json"
	}
	if abs, err := filepath.Abs(destination); err == nil {
		destination = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(destination)))
	return safe + "-" + hex.EncodeToString(sum[:4]) + ".checkpoint.json"
}

// DataDirectory returns the per-user data directory for the current OS
func DataDirectory() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, appName), nil
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
}
