package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal"
)

const defaultRequestTimeout = 10 * time.Second

// transient marks errors worth retrying with backoff (rate limits, 5xx,
// network failures). Everything else is surfaced immediately.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// SpotifyClient implements Controller against a Spotify-Connect-shaped HTTP
// API. Tokens and the locked device come from the file-backed DeviceStore;
// a 401 triggers exactly one refresh-and-retry, restriction responses get one
// device re-activation retry and then degrade instead of propagating.
type SpotifyClient struct {
	apiURL       string
	tokenURL     string
	clientID     string
	clientSecret string
	store        *DeviceStore
	httpClient   *http.Client
	log          zerolog.Logger
}

func NewSpotifyClient(apiURL, tokenURL, clientID, clientSecret string, store *DeviceStore, logger zerolog.Logger) *SpotifyClient {
	return &SpotifyClient{
		apiURL:       strings.TrimRight(apiURL, "/"),
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		store:        store,
		httpClient:   &http.Client{Timeout: defaultRequestTimeout},
		log:          logger.With().Str("component", "playback").Logger(),
	}
}

func (c *SpotifyClient) Play(ctx context.Context, deviceID, songID string, positionMs int) error {
	if deviceID == "" {
		return internal.ErrNoLockedDevice
	}
	body := map[string]any{
		"uris":        []string{"spotify:track:" + songID},
		"position_ms": positionMs,
	}
	path := "/me/player/play?device_id=" + url.QueryEscape(deviceID)

	err := c.do(ctx, http.MethodPut, path, body, nil)
	var restricted *internal.DeviceRestrictedError
	if !errors.As(err, &restricted) {
		return err
	}

	// Known restriction response: re-activate the device once, retry, and if
	// that still fails degrade by muting so the round can continue.
	c.log.Warn().Err(err).Str("device_id", deviceID).Msg("play restricted, re-activating device")
	if terr := c.Transfer(ctx, deviceID); terr == nil {
		if rerr := c.do(ctx, http.MethodPut, path, body, nil); rerr == nil {
			return nil
		}
	}
	c.log.Warn().Str("device_id", deviceID).Str("song_id", songID).Msg("device still restricted, muting instead of failing")
	if verr := c.SetVolume(ctx, 0); verr != nil {
		c.log.Error().Err(verr).Msg("failed to mute restricted device")
	}
	return nil
}

func (c *SpotifyClient) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/me/player/pause", nil, nil)
}

func (c *SpotifyClient) Resume(ctx context.Context, deviceID string) error {
	path := "/me/player/play"
	if deviceID != "" {
		path += "?device_id=" + url.QueryEscape(deviceID)
	}
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

func (c *SpotifyClient) Seek(ctx context.Context, positionMs int) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/me/player/seek?position_ms=%d", positionMs), nil, nil)
}

func (c *SpotifyClient) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/me/player/volume?volume_percent=%d", percent), nil, nil)
}

func (c *SpotifyClient) SetShuffle(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/me/player/shuffle?state=%t", enabled), nil, nil)
}

func (c *SpotifyClient) SetRepeat(ctx context.Context, mode string) error {
	return c.do(ctx, http.MethodPut, "/me/player/repeat?state="+url.QueryEscape(mode), nil, nil)
}

func (c *SpotifyClient) Queue(ctx context.Context, songID string) error {
	uri := url.QueryEscape("spotify:track:" + songID)
	return c.do(ctx, http.MethodPost, "/me/player/queue?uri="+uri, nil, nil)
}

// Transfer moves playback to the device, checking the currently active
// device first so redundant transfers (which interrupt audio) are skipped.
func (c *SpotifyClient) Transfer(ctx context.Context, deviceID string) error {
	if state, err := c.State(ctx); err == nil && state.DeviceID == deviceID {
		return nil
	}
	body := map[string]any{"device_ids": []string{deviceID}, "play": true}
	return c.do(ctx, http.MethodPut, "/me/player", body, nil)
}

func (c *SpotifyClient) State(ctx context.Context) (*PlayerState, error) {
	var raw struct {
		IsPlaying  bool `json:"is_playing"`
		ProgressMs int  `json:"progress_ms"`
		Item       *struct {
			ID string `json:"id"`
		} `json:"item"`
		Device *struct {
			ID            string `json:"id"`
			VolumePercent int    `json:"volume_percent"`
		} `json:"device"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/player", nil, &raw); err != nil {
		return nil, err
	}
	state := &PlayerState{
		IsPlaying:  raw.IsPlaying,
		ProgressMs: raw.ProgressMs,
	}
	if raw.Item != nil {
		state.SongID = raw.Item.ID
	}
	if raw.Device != nil {
		state.DeviceID = raw.Device.ID
		state.VolumePercent = raw.Device.VolumePercent
	}
	return state, nil
}

func (c *SpotifyClient) Devices(ctx context.Context) ([]Device, error) {
	var raw struct {
		Devices []Device `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/player/devices", nil, &raw); err != nil {
		return nil, err
	}
	return raw.Devices, nil
}

// do issues one API call with bounded exponential backoff on transient
// failures and a single refresh-and-retry on an expired token.
func (c *SpotifyClient) do(ctx context.Context, method, path string, body, out any) error {
	refreshed := false

	operation := func() error {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, internal.ErrTokenExpired) && !refreshed {
			refreshed = true
			if rerr := c.refreshToken(ctx); rerr != nil {
				return backoff.Permanent(fmt.Errorf("token refresh: %w", rerr))
			}
			return err // retry with the fresh token
		}
		var transient *transientError
		if errors.As(err, &transient) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var transient *transientError
		if errors.As(err, &transient) {
			return transient.err
		}
		return err
	}
	return nil
}

func (c *SpotifyClient) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds := c.store.Credentials(); creds != nil {
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transientError{fmt.Errorf("%s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return internal.ErrTokenExpired
	case resp.StatusCode == http.StatusForbidden:
		return &internal.DeviceRestrictedError{Reason: apiErrorReason(resp.Body)}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &transientError{fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)}
	default:
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
}

// refreshToken exchanges the stored refresh token for a new access token and
// persists it through the device store.
func (c *SpotifyClient) refreshToken(ctx context.Context) error {
	creds := c.store.Credentials()
	if creds == nil || creds.RefreshToken == "" {
		return errors.New("no refresh token available")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}

	expiresAt := time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	if err := c.store.SetAccessToken(payload.AccessToken, expiresAt); err != nil {
		return fmt.Errorf("persist refreshed token: %w", err)
	}
	c.log.Debug().Time("expires_at", expiresAt).Msg("access token refreshed")
	return nil
}

func apiErrorReason(body io.Reader) string {
	var payload struct {
		Error struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	if payload.Error.Reason != "" {
		return payload.Error.Reason
	}
	return payload.Error.Message
}
