// Package catalog defines the contracts of the remote music catalog and
// account service, plus an HTTP client implementing them.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the catalog has no such track or playlist.
var ErrNotFound = errors.New("not found")

// ErrNoSource is returned when the catalog cannot provide audio for a track.
var ErrNoSource = errors.New("no audio source")

// Track is a catalog track with its display metadata.
type Track struct {
	ID     string `json:"id"`
	Title  string `json:"name"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

// Playlist is a user playlist summary.
type Playlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Audio is a resolved audio source: either the bytes themselves or a URL
// they can be downloaded from.
type Audio struct {
	Data   []byte
	URL    string
	Format string // "mp3" or "flac"; empty when unknown
}

// PlaylistOp is a playlist track mutation.
type PlaylistOp string

const (
	OpAdd PlaylistOp = "add"
	OpDel PlaylistOp = "del"
)

// Credentials identify an account. Phone selects cellphone sign-in
// instead of email.
type Credentials struct {
	Phone    bool   `json:"phone"`
	Account  string `json:"account"`
	Password string `json:"password"`
}

// Profile describes the signed-in user.
type Profile struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

// Resolver resolves the audio of a track at a given quality.
type Resolver interface {
	ResolveAudioSource(ctx context.Context, trackID string, quality Quality) (Audio, error)
}

// Downloader fetches the bytes behind an Audio URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Likes manages the liked-tracks list.
type Likes interface {
	SetLikeStatus(ctx context.Context, trackID string, like bool) (bool, error)
	LikeList(ctx context.Context) ([]string, error)
}

// Playlists reads and mutates user playlists.
type Playlists interface {
	UserPlaylists(ctx context.Context) ([]Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error)
	MutatePlaylistTracks(ctx context.Context, op PlaylistOp, playlistID string, trackIDs []string) (bool, error)
	// Recommend returns tracks similar to trackID, seeded by the playlist it
	// was played from.
	Recommend(ctx context.Context, trackID, playlistID string) ([]Track, error)
}

// Accounts signs users in and out.
type Accounts interface {
	Login(ctx context.Context, creds Credentials) (Profile, error)
	DailySignin(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Service is the full remote surface the player talks to.
type Service interface {
	Resolver
	Downloader
	Likes
	Playlists
	Accounts
}
