// Package ui is the terminal interface: the queue, a playlist browser, a
// status bar and key handling. It observes the queue and the playback
// service and never mutates the queue except through service commands.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/cloudwaves/internal/cache"
	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/keymap"
	"github.com/llehouerou/cloudwaves/internal/playback"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

const volumeStep = 5

// Cache reports cache usage and which tracks are stored.
type Cache interface {
	Stats() cache.Stats
	Quality() catalog.Quality
	Key(trackID string) cache.Key
	Contains(key cache.Key) bool
}

// Library lists the playlists of the signed-in user.
type Library interface {
	UserPlaylists(ctx context.Context) ([]catalog.Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]catalog.Track, error)
}

// queueChangedMsg is sent when the queue observers are refreshed.
type queueChangedMsg struct{}

// eventMsg carries one playback event.
type eventMsg struct {
	event any
}

// commandDoneMsg is sent when a background command returns. Failures are
// reported through playback error events; done is shown on success.
type commandDoneMsg struct {
	err  error
	done string
}

type statusLine struct {
	text string
	err  bool
}

type page int

const (
	pageQueue page = iota
	pagePlaylists
	pageTracks
)

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	svc     playback.Service
	cache   Cache
	library Library
	keys    keymap.KeyMap
	help    help.Model

	queueSub *queue.Subscription
	events   *playback.Subscription

	page    page
	items   []queue.Item
	pos     listPos
	browser browser

	width  int
	height int
	status statusLine
}

// New creates the model. Commands run with ctx. library may be nil when
// no catalog is reachable.
func New(ctx context.Context, svc playback.Service, c Cache, library Library) Model {
	return Model{
		ctx:      ctx,
		svc:      svc,
		cache:    c,
		library:  library,
		keys:     keymap.Default(),
		help:     help.New(),
		queueSub: svc.Queue().Subscribe(),
		events:   svc.Subscribe(),
		items:    svc.Queue().Items(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitQueue(m.queueSub), waitEvent(m.events))
}

func waitQueue(sub *queue.Subscription) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-sub.Changed:
			return queueChangedMsg{}
		case <-sub.Done:
			return nil
		}
	}
}

func waitEvent(sub *playback.Subscription) tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-sub.StateChanged:
			return eventMsg{e}
		case e := <-sub.TrackChanged:
			return eventMsg{e}
		case e := <-sub.LikeChanged:
			return eventMsg{e}
		case e := <-sub.Error:
			return eventMsg{e}
		case <-sub.Done:
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.ensureCursorVisible()
		return m, nil

	case queueChangedMsg:
		m.syncItems()
		return m, waitQueue(m.queueSub)

	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitEvent(m.events)

	case commandDoneMsg:
		if msg.err == nil && msg.done != "" {
			m.status = statusLine{text: msg.done}
		}
		return m, nil

	case playlistsLoadedMsg:
		m.handlePlaylistsLoaded(msg)
		return m, nil

	case tracksLoadedMsg:
		m.handleTracksLoaded(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleEvent(e any) {
	switch e := e.(type) {
	case playback.ErrorEvent:
		m.status = statusLine{text: e.Message(), err: true}
	case playback.LikeChange:
		if e.Liked {
			m.status = statusLine{text: "Added to liked songs"}
		} else {
			m.status = statusLine{text: "Removed from liked songs"}
		}
	case playback.TrackChange:
		m.status = statusLine{}
		m.pos = listPos{}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.keys.Resolve(msg)
	switch action {
	case keymap.ActionQuit:
		return m, tea.Quit
	case keymap.ActionHelp:
		m.help.ShowAll = !m.help.ShowAll
		m.ensureCursorVisible()

	case keymap.ActionPlayPause:
		m.svc.TogglePlay()
	case keymap.ActionNextTrack:
		return m, m.run(m.svc.Next)
	case keymap.ActionPrevTrack:
		return m, m.run(m.svc.Previous)
	case keymap.ActionVolumeUp:
		m.svc.SetVolume(m.svc.Volume() + volumeStep)
	case keymap.ActionVolumeDown:
		m.svc.SetVolume(m.svc.Volume() - volumeStep)
	case keymap.ActionLike:
		return m, m.run(m.svc.Like)

	case keymap.ActionMoveDown:
		m.moveCursor(1)
	case keymap.ActionMoveUp:
		m.moveCursor(-1)
	case keymap.ActionJumpStart:
		m.moveCursor(-m.listLen())
	case keymap.ActionJumpEnd:
		m.moveCursor(m.listLen())

	case keymap.ActionPlaylists:
		if m.page != pageQueue {
			m.closeBrowser()
			return m, nil
		}
		return m.openBrowser(queue.Item{})

	default:
		if m.page != pageQueue {
			return m.handleBrowserKey(action)
		}
		return m.handleQueueKey(action)
	}
	return m, nil
}

func (m Model) handleQueueKey(action keymap.Action) (tea.Model, tea.Cmd) {
	item, ok := m.cursorItem()
	switch action {
	case keymap.ActionClear:
		m.svc.ClearQueue()
		m.syncItems()
		return m, nil
	case keymap.ActionShuffle:
		m.svc.RandomQueue()
		m.syncItems()
		return m, nil
	}
	if !ok {
		return m, nil
	}

	switch action {
	case keymap.ActionSelect:
		return m, m.run(func(ctx context.Context) error {
			return m.svc.PlaySong(ctx, item.Entry)
		})
	case keymap.ActionDelete:
		return m, m.run(func(ctx context.Context) error {
			return m.svc.DeleteSong(ctx, item.Entry)
		})
	case keymap.ActionIntelligence:
		return m, m.run(func(ctx context.Context) error {
			return m.svc.Intelligence(ctx, item.Entry)
		})
	case keymap.ActionSaveTo:
		return m.openBrowser(item)
	case keymap.ActionUnlist:
		if item.PlaylistID == "" {
			m.status = statusLine{text: "'" + item.Title + "' was not queued from a playlist"}
			return m, nil
		}
		return m, m.runStatus("Removed '"+item.Title+"' from its playlist", func(ctx context.Context) error {
			return m.svc.DeleteFromPlaylist(ctx, item.Entry)
		})
	}
	return m, nil
}

// run executes a blocking service command off the update loop.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	return m.runStatus("", fn)
}

// runStatus is run with a status line shown once fn succeeds.
func (m Model) runStatus(done string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return commandDoneMsg{err: fn(ctx), done: done}
	}
}

// syncItems refreshes the queue view. The cursor stays on its entry when
// the entry moved, unless it sat on the head.
func (m *Model) syncItems() {
	prev, ok := m.cursorItem()
	m.items = m.svc.Queue().Items()
	if ok && m.pos.cursor > 0 {
		if i := m.svc.Queue().Index(prev.Entry); i >= 0 {
			m.pos.cursor = i
		}
	}
	m.pos.clamp(len(m.items), m.listHeight())
}

func (m Model) cursorItem() (queue.Item, bool) {
	if m.pos.cursor < 0 || m.pos.cursor >= len(m.items) {
		return queue.Item{}, false
	}
	return m.items[m.pos.cursor], true
}

// listLen is the length of the list on the current page.
func (m Model) listLen() int {
	switch m.page {
	case pagePlaylists:
		return len(m.browser.playlists)
	case pageTracks:
		return len(m.browser.tracks)
	default:
		return len(m.items)
	}
}

func (m *Model) current() *listPos {
	switch m.page {
	case pagePlaylists:
		return &m.browser.playlistPos
	case pageTracks:
		return &m.browser.trackPos
	default:
		return &m.pos
	}
}

func (m *Model) moveCursor(delta int) {
	m.current().move(delta, m.listLen(), m.listHeight())
}

func (m *Model) ensureCursorVisible() {
	m.current().scroll(m.listHeight())
}

// Close releases the subscriptions of the model.
func (m Model) Close() {
	m.svc.Queue().Unsubscribe(m.queueSub)
}

// listPos is a cursor and scroll offset into a list.
type listPos struct {
	cursor int
	offset int
}

func (p *listPos) move(delta, n, height int) {
	if n == 0 {
		return
	}
	p.cursor = min(max(p.cursor+delta, 0), n-1)
	p.scroll(height)
}

// clamp keeps the cursor inside a list of n rows.
func (p *listPos) clamp(n, height int) {
	if p.cursor >= n {
		p.cursor = max(n-1, 0)
	}
	p.scroll(height)
}

func (p *listPos) scroll(height int) {
	if height <= 0 {
		return
	}
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+height {
		p.offset = p.cursor - height + 1
	}
}
