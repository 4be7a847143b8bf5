package playback

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/scythe504/tunebingo-backend/internal"
)

func TestDeviceStoreMissingFile(t *testing.T) {
	store := NewDeviceStore(filepath.Join(t.TempDir(), "device.json"))
	if err := store.Load(); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if _, err := store.LockedDevice(); !errors.Is(err, internal.ErrNoLockedDevice) {
		t.Fatalf("err = %v, want ErrNoLockedDevice", err)
	}
}

func TestDeviceStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")

	store := NewDeviceStore(path)
	creds := Credentials{
		DeviceID:     "device-42",
		AccessToken:  "tok",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := store.Save(creds); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh store sees the persisted selection, as it would after restart.
	reloaded := NewDeviceStore(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	device, err := reloaded.LockedDevice()
	if err != nil {
		t.Fatalf("LockedDevice: %v", err)
	}
	if device != "device-42" {
		t.Fatalf("device = %s, want device-42", device)
	}
	got := reloaded.Credentials()
	if got == nil || got.RefreshToken != "refresh" {
		t.Fatalf("credentials = %+v, want refresh token preserved", got)
	}
}

func TestSetAccessTokenKeepsDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	store := NewDeviceStore(path)
	if err := store.Save(Credentials{DeviceID: "device-1", AccessToken: "old", RefreshToken: "r"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	expires := time.Now().Add(time.Hour)
	if err := store.SetAccessToken("new", expires); err != nil {
		t.Fatalf("SetAccessToken: %v", err)
	}

	got := store.Credentials()
	if got.AccessToken != "new" || got.DeviceID != "device-1" || got.RefreshToken != "r" {
		t.Fatalf("credentials = %+v, want token swapped and everything else kept", got)
	}
}
