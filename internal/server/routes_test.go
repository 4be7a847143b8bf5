package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal"
	"github.com/scythe504/tunebingo-backend/internal/config"
	"github.com/scythe504/tunebingo-backend/internal/game"
	"github.com/scythe504/tunebingo-backend/internal/playback"
)

func testServer(t *testing.T) (*httptest.Server, *game.Service) {
	t.Helper()
	cfg := &config.Config{MetricsEnabled: true, SnippetSeconds: 30}
	devices := playback.NewDeviceStore(filepath.Join(t.TempDir(), "device.json"))
	store := game.NewStore(zerolog.Nop())
	gw := game.NewWSGateway(zerolog.Nop())
	svc := game.NewService(store, gw, nil, devices, cfg.SnippetSeconds, zerolog.Nop())

	srv := httptest.NewServer(New(cfg, svc, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %q, want ok", body.Status)
	}
}

func TestRoomLookup(t *testing.T) {
	srv, svc := testServer(t)

	resp, err := http.Get(srv.URL + "/rooms/nowhere")
	if err != nil {
		t.Fatalf("GET missing room: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing room status = %d, want 404", resp.StatusCode)
	}

	svc.Store().GetOrCreate("lobby-1", 30)

	resp, err = http.Get(srv.URL + "/rooms/lobby-1")
	if err != nil {
		t.Fatalf("GET room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var snap internal.GameStateData
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.RoomID != "lobby-1" || snap.State != internal.StateWaiting {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := testServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/health", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
