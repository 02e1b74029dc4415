package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "cloudwaves/1.0 (https://github.com/llehouerou/cloudwaves)"

// maxAudioBytes bounds a single download.
const maxAudioBytes = 512 << 20

// Client talks to a catalog gateway over HTTP.
//
// Endpoints (all JSON):
//
//	GET  /song/url?id=&br=            {"url": "...", "type": "mp3"}
//	POST /like?id=&like=              {"code": 200}
//	GET  /likelist                    {"ids": ["..."]}
//	GET  /user/playlist               {"playlists": [{"id","name"}]}
//	GET  /playlist/detail?id=         {"tracks": [{"id","name","artist","album"}]}
//	POST /playlist/tracks?op=&pid=&tracks=
//	GET  /recommend?id=&pid=          {"tracks": [...]}
//	POST /login                       {"code": 200, "profile": {...}}
//	POST /daily_signin, POST /logout  {"code": 200}
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Verify Client implements Service at compile time.
var _ Service = (*Client)(nil)

const defaultTimeout = 30 * time.Second

// NewClient creates a client for the gateway at baseURL.
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, defaultTimeout)
}

// NewClientWithTimeout creates a client whose requests give up after
// timeout.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type statusResponse struct {
	Code int `json:"code"`
}

func (r statusResponse) ok() bool { return r.Code == http.StatusOK }

// ResolveAudioSource asks the gateway for the track URL at the given bitrate.
func (c *Client) ResolveAudioSource(ctx context.Context, trackID string, quality Quality) (Audio, error) {
	params := url.Values{}
	params.Set("id", trackID)
	params.Set("br", quality.Bitrate())

	var result struct {
		URL  string `json:"url"`
		Type string `json:"type"`
	}
	if err := c.do(ctx, http.MethodGet, "/song/url", params, nil, &result); err != nil {
		return Audio{}, err
	}
	if result.URL == "" {
		return Audio{}, ErrNoSource
	}
	return Audio{URL: result.URL, Format: strings.ToLower(result.Type)}, nil
}

// Download fetches raw bytes from an audio URL.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// SetLikeStatus likes or unlikes a track.
func (c *Client) SetLikeStatus(ctx context.Context, trackID string, like bool) (bool, error) {
	params := url.Values{}
	params.Set("id", trackID)
	params.Set("like", fmt.Sprint(like))

	var result statusResponse
	if err := c.do(ctx, http.MethodPost, "/like", params, nil, &result); err != nil {
		return false, err
	}
	return result.ok(), nil
}

// LikeList returns the IDs of the liked tracks.
func (c *Client) LikeList(ctx context.Context) ([]string, error) {
	var result struct {
		IDs []string `json:"ids"`
	}
	if err := c.do(ctx, http.MethodGet, "/likelist", nil, nil, &result); err != nil {
		return nil, err
	}
	return result.IDs, nil
}

// UserPlaylists lists the playlists of the signed-in user.
func (c *Client) UserPlaylists(ctx context.Context) ([]Playlist, error) {
	var result struct {
		Playlists []Playlist `json:"playlists"`
	}
	if err := c.do(ctx, http.MethodGet, "/user/playlist", nil, nil, &result); err != nil {
		return nil, err
	}
	return result.Playlists, nil
}

// PlaylistTracks returns the tracks of a playlist in order.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	params := url.Values{}
	params.Set("id", playlistID)

	var result struct {
		Tracks []Track `json:"tracks"`
	}
	if err := c.do(ctx, http.MethodGet, "/playlist/detail", params, nil, &result); err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

// MutatePlaylistTracks adds or removes tracks from a playlist.
func (c *Client) MutatePlaylistTracks(ctx context.Context, op PlaylistOp, playlistID string, trackIDs []string) (bool, error) {
	params := url.Values{}
	params.Set("op", string(op))
	params.Set("pid", playlistID)
	params.Set("tracks", strings.Join(trackIDs, ","))

	var result statusResponse
	if err := c.do(ctx, http.MethodPost, "/playlist/tracks", params, nil, &result); err != nil {
		return false, err
	}
	return result.ok(), nil
}

// Recommend returns tracks similar to trackID.
func (c *Client) Recommend(ctx context.Context, trackID, playlistID string) ([]Track, error) {
	params := url.Values{}
	params.Set("id", trackID)
	params.Set("pid", playlistID)

	var result struct {
		Tracks []Track `json:"tracks"`
	}
	if err := c.do(ctx, http.MethodGet, "/recommend", params, nil, &result); err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

// Login signs in and returns the user profile.
func (c *Client) Login(ctx context.Context, creds Credentials) (Profile, error) {
	var result struct {
		statusResponse
		Profile Profile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", nil, creds, &result); err != nil {
		return Profile{}, err
	}
	if !result.ok() {
		return Profile{}, fmt.Errorf("login rejected with code %d", result.Code)
	}
	return result.Profile, nil
}

// DailySignin performs the daily check-in.
func (c *Client) DailySignin(ctx context.Context) error {
	var result statusResponse
	if err := c.do(ctx, http.MethodPost, "/daily_signin", nil, nil, &result); err != nil {
		return err
	}
	if !result.ok() {
		return fmt.Errorf("daily sign-in rejected with code %d", result.Code)
	}
	return nil
}

// Logout ends the remote session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
