package catalog

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Service backed by maps. It serves tests and the
// offline mode of the command.
type Memory struct {
	mu        sync.Mutex
	audio     map[string][]byte // trackID -> bytes
	urls      map[string][]byte // url -> bytes
	tracks    map[string]Track
	playlists map[string][]string // playlistID -> track IDs
	names     map[string]string   // playlistID -> name
	likes     map[string]bool

	resolveErr  error
	resolveHits map[string]int
	profile     Profile
	signins     int
}

// Verify Memory implements Service at compile time.
var _ Service = (*Memory)(nil)

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		audio:       make(map[string][]byte),
		urls:        make(map[string][]byte),
		tracks:      make(map[string]Track),
		playlists:   make(map[string][]string),
		names:       make(map[string]string),
		likes:       make(map[string]bool),
		resolveHits: make(map[string]int),
		profile:     Profile{UserID: "1", Nickname: "listener"},
	}
}

// AddTrack registers a track and its audio bytes.
func (m *Memory) AddTrack(t Track, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[t.ID] = t
	m.audio[t.ID] = data
}

// AddURL serves data at url through Download.
func (m *Memory) AddURL(url string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[url] = data
}

// AddPlaylist registers a playlist of existing tracks.
func (m *Memory) AddPlaylist(id, name string, trackIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[id] = name
	m.playlists[id] = slices.Clone(trackIDs)
}

// SetResolveError makes every ResolveAudioSource call fail with err.
func (m *Memory) SetResolveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveErr = err
}

// ResolveCount returns how many times the audio of trackID was resolved.
func (m *Memory) ResolveCount(trackID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveHits[trackID]
}

// SigninCount returns the number of daily sign-ins performed.
func (m *Memory) SigninCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signins
}

func (m *Memory) ResolveAudioSource(_ context.Context, trackID string, _ Quality) (Audio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveHits[trackID]++
	if m.resolveErr != nil {
		return Audio{}, m.resolveErr
	}
	data, ok := m.audio[trackID]
	if !ok {
		return Audio{}, ErrNotFound
	}
	return Audio{Data: slices.Clone(data)}, nil
}

func (m *Memory) Download(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.urls[url]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

func (m *Memory) SetLikeStatus(_ context.Context, trackID string, like bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracks[trackID]; !ok {
		return false, nil
	}
	if like {
		m.likes[trackID] = true
	} else {
		delete(m.likes, trackID)
	}
	return true, nil
}

func (m *Memory) LikeList(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.likes))
	for id := range m.likes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) UserPlaylists(_ context.Context) ([]Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lists := make([]Playlist, 0, len(m.names))
	for id, name := range m.names {
		lists = append(lists, Playlist{ID: id, Name: name})
	}
	slices.SortFunc(lists, func(a, b Playlist) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return lists, nil
}

func (m *Memory) PlaylistTracks(_ context.Context, playlistID string) ([]Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.playlists[playlistID]
	if !ok {
		return nil, ErrNotFound
	}
	tracks := make([]Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, m.tracks[id])
	}
	return tracks, nil
}

func (m *Memory) MutatePlaylistTracks(_ context.Context, op PlaylistOp, playlistID string, trackIDs []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.playlists[playlistID]
	if !ok {
		return false, nil
	}
	switch op {
	case OpAdd:
		m.playlists[playlistID] = append(ids, trackIDs...)
	case OpDel:
		m.playlists[playlistID] = slices.DeleteFunc(ids, func(id string) bool {
			return slices.Contains(trackIDs, id)
		})
	default:
		return false, nil
	}
	return true, nil
}

// Recommend returns the other tracks of the playlist, or nothing.
func (m *Memory) Recommend(_ context.Context, trackID, playlistID string) ([]Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tracks []Track
	for _, id := range m.playlists[playlistID] {
		if id != trackID {
			tracks = append(tracks, m.tracks[id])
		}
	}
	return tracks, nil
}

func (m *Memory) Login(_ context.Context, creds Credentials) (Profile, error) {
	if creds.Account == "" || creds.Password == "" {
		return Profile{}, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profile
	p.Nickname = creds.Account
	return p, nil
}

func (m *Memory) DailySignin(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signins++
	return nil
}

func (m *Memory) Logout(_ context.Context) error { return nil }
