//go:build linux

package mpris

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/llehouerou/cloudwaves/internal/player"
	"github.com/llehouerou/cloudwaves/internal/playback"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

// Adapter connects the playback service to MPRIS over D-Bus, so media keys
// and desktop widgets can drive it.
type Adapter struct {
	server *server.Server
	cancel context.CancelFunc
}

// New creates and starts a new MPRIS adapter. Commands received over D-Bus
// run with ctx.
func New(ctx context.Context, service playback.Service) (*Adapter, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &Adapter{cancel: cancel}

	a.server = server.NewServer("cloudwaves", &rootAdapter{}, &playerAdapter{ctx: ctx, service: service})

	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	a.cancel()
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - app manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return "cloudwaves", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter and optional interfaces.
type playerAdapter struct {
	ctx     context.Context
	service playback.Service
}

func (p *playerAdapter) Next() error {
	return p.service.Next(p.ctx)
}

func (p *playerAdapter) Previous() error {
	return p.service.Previous(p.ctx)
}

func (p *playerAdapter) Pause() error {
	if p.service.State() == player.Playing {
		p.service.TogglePlay()
	}
	return nil
}

func (p *playerAdapter) PlayPause() error {
	if p.service.State() == player.Stopped {
		return p.Play()
	}
	p.service.TogglePlay()
	return nil
}

// Stop pauses; the session has no stopped-but-loaded state.
func (p *playerAdapter) Stop() error {
	return p.Pause()
}

func (p *playerAdapter) Play() error {
	switch p.service.State() {
	case player.Paused:
		p.service.TogglePlay()
	case player.Stopped:
		head, ok := p.service.Queue().Head()
		if !ok {
			return nil
		}
		return p.service.PlaySong(p.ctx, head.Entry)
	}
	return nil
}

func (p *playerAdapter) Seek(_ types.Microseconds) error {
	return nil // Not supported
}

func (p *playerAdapter) SetPosition(_ string, _ types.Microseconds) error {
	return nil // Not supported
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.service.State() {
	case player.Playing:
		return types.PlaybackStatusPlaying, nil
	case player.Paused:
		return types.PlaybackStatusPaused, nil
	case player.Stopped:
		return types.PlaybackStatusStopped, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	now := p.service.Now()
	if now == nil {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(now.TrackID)),
		Length:  types.Microseconds(now.Duration.Microseconds()),
		Title:   now.Title,
		Album:   now.Album,
	}
	if now.Artist != "" {
		meta.Artist = []string{now.Artist}
	}
	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return float64(p.service.Volume()) / 100, nil
}

func (p *playerAdapter) SetVolume(v float64) error {
	p.service.SetVolume(int(math.Round(v * 100)))
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	return 0, nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	_, ok := p.service.Queue().Peek(1)
	return ok, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	_, ok := p.service.Queue().Peek(-1)
	return ok, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return !p.service.Queue().IsEmpty(), nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
// Only a wrapping queue loops.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	if p.service.Queue().Policy() == queue.Wrap {
		return types.LoopStatusPlaylist, nil
	}
	return types.LoopStatusNone, nil
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	switch status {
	case types.LoopStatusNone:
		p.service.Queue().SetPolicy(queue.Clamp)
	case types.LoopStatusPlaylist:
		p.service.Queue().SetPolicy(queue.Wrap)
	case types.LoopStatusTrack:
		// Not supported
	}
	return nil
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle. Shuffling
// is a one-shot reorder, so there is no mode to report.
func (p *playerAdapter) Shuffle() (bool, error) {
	return false, nil
}

// SetShuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) SetShuffle(shuffle bool) error {
	if shuffle {
		p.service.RandomQueue()
	}
	return nil
}

func formatTrackID(trackID string) string {
	h := fnv.New64a()
	h.Write([]byte(trackID))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
