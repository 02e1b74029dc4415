// internal/player/mock.go
package player

import (
	"context"
	"sync"
)

// Mock is a test double for Session.
type Mock struct {
	mu         sync.Mutex
	started    bool
	startCalls int
	quitCalls  int
	state      State
	percent    int
	now        *TrackInfo
	loads      []Source
	loadErr    error
	gate       chan struct{}
	entered    chan struct{}
	finishedCh chan struct{}
}

// NewMock creates a new mock session for testing.
func NewMock() *Mock {
	return &Mock{
		percent:    DefaultVolume,
		entered:    make(chan struct{}, 16),
		finishedCh: make(chan struct{}, 1),
	}
}

func (m *Mock) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	m.started = true
	return nil
}

// Load records src. When a gate is set it blocks until the gate is
// released or ctx is done.
func (m *Mock) Load(ctx context.Context, src Source) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()

	select {
	case m.entered <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, src)
	if m.loadErr != nil {
		return m.loadErr
	}
	m.started = true
	m.state = Playing
	m.now = &TrackInfo{
		TrackID: src.TrackID,
		Title:   src.Title,
		Artist:  src.Artist,
		Album:   src.Album,
		Format:  src.Format,
	}
	return nil
}

func (m *Mock) TogglePlay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.state.toggled()
}

func (m *Mock) SetVolume(percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.percent = clampPercent(percent)
}

func (m *Mock) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.percent
}

func (m *Mock) Quit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quitCalls++
	m.started = false
	m.state = Stopped
	m.now = nil
}

func (m *Mock) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mock) Now() *TrackInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.now == nil {
		return nil
	}
	info := *m.now
	return &info
}

func (m *Mock) Finished() <-chan struct{} {
	return m.finishedCh
}

// Test helpers

func (m *Mock) SetState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// BlockLoads makes Load wait until the returned function is called.
func (m *Mock) BlockLoads() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()
	return sync.OnceFunc(func() {
		m.mu.Lock()
		m.gate = nil
		m.mu.Unlock()
		close(gate)
	})
}

// LoadEntered receives each time a Load call begins.
func (m *Mock) LoadEntered() <-chan struct{} {
	return m.entered
}

func (m *Mock) Loads() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Source(nil), m.loads...)
}

// LoadedIDs returns the track IDs passed to Load, in order.
func (m *Mock) LoadedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.loads))
	for i, src := range m.loads {
		ids[i] = src.TrackID
	}
	return ids
}

func (m *Mock) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Mock) StartCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls
}

func (m *Mock) QuitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quitCalls
}

// SimulateFinished simulates a track playing to its end.
func (m *Mock) SimulateFinished() {
	m.mu.Lock()
	m.state = Stopped
	m.mu.Unlock()
	select {
	case m.finishedCh <- struct{}{}:
	default:
	}
}

// Verify Mock implements Session at compile time.
var _ Session = (*Mock)(nil)
