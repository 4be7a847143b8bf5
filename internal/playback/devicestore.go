package playback

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/scythe504/tunebingo-backend/internal"
)

// Credentials is the persisted device selection plus authorization state.
// The core treats these as opaque capability inputs.
type Credentials struct {
	DeviceID     string    `json:"device_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// DeviceStore persists the locked device and tokens to a single JSON file.
// Room state is memory-resident and volatile; this file is the only thing
// that survives a restart.
type DeviceStore struct {
	path string
	mu   sync.Mutex
	cur  *Credentials
}

func NewDeviceStore(path string) *DeviceStore {
	return &DeviceStore{path: path}
}

// Load reads the persisted credentials. A missing file is not an error;
// LockedDevice reports the missing-device precondition separately.
func (s *DeviceStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read device file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return fmt.Errorf("parse device file %s: %w", s.path, err)
	}
	s.cur = &creds
	return nil
}

// Save persists the credentials and keeps them as the current set.
func (s *DeviceStore) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write device file: %w", err)
	}
	s.cur = &creds
	return nil
}

// LockedDevice returns the persisted device id. No persisted device is a
// hard precondition failure; the scheduler never guesses a device.
func (s *DeviceStore) LockedDevice() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil || s.cur.DeviceID == "" {
		return "", internal.ErrNoLockedDevice
	}
	return s.cur.DeviceID, nil
}

// Credentials returns a copy of the current credential set, or nil.
func (s *DeviceStore) Credentials() *Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil
	}
	copied := *s.cur
	return &copied
}

// SetAccessToken swaps in a refreshed access token and persists it.
func (s *DeviceStore) SetAccessToken(token string, expiresAt time.Time) error {
	s.mu.Lock()
	cur := s.cur
	s.mu.Unlock()

	creds := Credentials{}
	if cur != nil {
		creds = *cur
	}
	creds.AccessToken = token
	creds.ExpiresAt = expiresAt
	return s.Save(creds)
}
