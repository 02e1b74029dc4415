// internal/player/session.go
package player

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupportedFormat is returned by Load for audio it cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DefaultVolume is the volume a freshly started session plays at.
const DefaultVolume = 85

// Source is a resolved track ready to be played.
type Source struct {
	TrackID string
	Title   string
	Artist  string
	Album   string
	Data    []byte
	Format  string // "mp3", "flac"; detected from Data when empty
}

// TrackInfo describes the loaded track.
type TrackInfo struct {
	TrackID    string
	Title      string
	Artist     string
	Album      string
	Format     string
	Duration   time.Duration
	SampleRate int
}

// Session is the single audio output of the process. Only one track is
// loaded at a time; Load replaces it.
type Session interface {
	// Start opens the audio output. It is idempotent.
	Start(ctx context.Context) error
	// Load starts playing src, replacing the current track.
	Load(ctx context.Context, src Source) error
	TogglePlay()
	// SetVolume sets the volume in percent, clamped to 0..100.
	SetVolume(percent int)
	Volume() int
	// Quit stops playback and closes the output. A later Start reopens it.
	Quit()
	State() State
	Now() *TrackInfo
	// Finished receives once each time a track plays to its end.
	Finished() <-chan struct{}
}

func clampPercent(percent int) int {
	return min(max(percent, 0), 100)
}
