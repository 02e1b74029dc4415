package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

const (
	outputSampleRate = beep.SampleRate(44100)
	outputBuffer     = time.Second / 10
)

// BeepSession plays audio through the system speaker. Tracks whose sample
// rate differs from the output are resampled.
type BeepSession struct {
	logger *slog.Logger

	mu       sync.Mutex
	started  bool
	state    State
	percent  int
	streamer beep.StreamSeekCloser
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	info     *TrackInfo
	loadSeq  uint64

	finishedCh chan struct{}
}

// Verify BeepSession implements Session at compile time.
var _ Session = (*BeepSession)(nil)

// NewBeepSession creates a stopped session. The speaker is opened by Start.
func NewBeepSession(logger *slog.Logger) *BeepSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &BeepSession{
		logger:     logger,
		percent:    DefaultVolume,
		finishedCh: make(chan struct{}, 1),
	}
}

func (s *BeepSession) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *BeepSession) startLocked() error {
	if s.started {
		return nil
	}
	if err := speaker.Init(outputSampleRate, outputSampleRate.N(outputBuffer)); err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	s.started = true
	s.logger.Info("audio output started", "sample_rate", int(outputSampleRate))
	return nil
}

func (s *BeepSession) Load(ctx context.Context, src Source) error {
	streamer, format, name, err := decode(src.Data, src.Format)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		streamer.Close()
		return err
	}

	info := &TrackInfo{
		TrackID:    src.TrackID,
		Title:      src.Title,
		Artist:     src.Artist,
		Album:      src.Album,
		Format:     name,
		Duration:   format.SampleRate.D(streamer.Len()),
		SampleRate: int(format.SampleRate),
	}
	fillFromTags(info, src.Data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.startLocked(); err != nil {
		streamer.Close()
		return err
	}
	s.stopLocked()

	// Drop a finish signal left by the previous track
	select {
	case <-s.finishedCh:
	default:
	}

	var out beep.Streamer = streamer
	if format.SampleRate != outputSampleRate {
		out = beep.Resample(4, format.SampleRate, outputSampleRate, streamer)
	}
	s.streamer = streamer
	s.ctrl = &beep.Ctrl{Streamer: out}
	s.volume = &effects.Volume{Streamer: s.ctrl, Base: 2, Volume: percentToGain(s.percent)}
	s.info = info
	s.state = Playing
	s.loadSeq++
	seq := s.loadSeq

	speaker.Play(beep.Seq(s.volume, beep.Callback(func() {
		s.trackEnded(seq)
	})))
	return nil
}

// trackEnded runs on the speaker goroutine when a track drains.
func (s *BeepSession) trackEnded(seq uint64) {
	go func() {
		s.mu.Lock()
		if seq != s.loadSeq || s.state == Stopped {
			s.mu.Unlock()
			return
		}
		s.state = Stopped
		s.mu.Unlock()

		select {
		case s.finishedCh <- struct{}{}:
		default:
		}
	}()
}

func (s *BeepSession) TogglePlay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil || !s.state.IsActive() {
		return
	}
	s.state = s.state.toggled()
	speaker.Lock()
	s.ctrl.Paused = s.state == Paused
	speaker.Unlock()
}

func (s *BeepSession) SetVolume(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.percent = clampPercent(percent)
	if s.volume != nil {
		speaker.Lock()
		s.volume.Volume = percentToGain(s.percent)
		s.volume.Silent = s.percent == 0
		speaker.Unlock()
	}
}

func (s *BeepSession) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

func (s *BeepSession) Quit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	if s.started {
		speaker.Close()
		s.started = false
		s.logger.Info("audio output closed")
	}
}

func (s *BeepSession) stopLocked() {
	if s.streamer == nil {
		return
	}
	speaker.Clear()
	s.streamer.Close()
	s.streamer = nil
	s.ctrl = nil
	s.volume = nil
	s.info = nil
	s.state = Stopped
	s.loadSeq++
}

func (s *BeepSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *BeepSession) Now() *TrackInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return nil
	}
	info := *s.info
	return &info
}

func (s *BeepSession) Finished() <-chan struct{} {
	return s.finishedCh
}
