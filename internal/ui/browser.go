package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/errmsg"
	"github.com/llehouerou/cloudwaves/internal/keymap"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

// browser is the playlist list and the track list of one playlist. With a
// target set, picking a playlist saves the target into it instead.
type browser struct {
	playlists   []catalog.Playlist
	playlistPos listPos

	open     catalog.Playlist
	tracks   []catalog.Track
	trackPos listPos

	target  queue.Item
	loading bool
}

func (b browser) picking() bool {
	return b.target.TrackID != ""
}

type playlistsLoadedMsg struct {
	playlists []catalog.Playlist
	err       error
}

type tracksLoadedMsg struct {
	playlist catalog.Playlist
	tracks   []catalog.Track
	err      error
}

// openBrowser shows the playlists of the user. A non-zero target turns
// the browser into a picker for it.
func (m Model) openBrowser(target queue.Item) (tea.Model, tea.Cmd) {
	if m.library == nil {
		m.status = statusLine{text: "Playlists are unavailable offline", err: true}
		return m, nil
	}
	m.page = pagePlaylists
	m.browser.target = target
	m.browser.loading = true

	ctx, lib := m.ctx, m.library
	return m, func() tea.Msg {
		lists, err := lib.UserPlaylists(ctx)
		return playlistsLoadedMsg{playlists: lists, err: err}
	}
}

func (m *Model) closeBrowser() {
	m.page = pageQueue
	m.browser.target = queue.Item{}
	m.browser.loading = false
}

func (m Model) openPlaylist(pl catalog.Playlist) tea.Cmd {
	ctx, lib := m.ctx, m.library
	return func() tea.Msg {
		tracks, err := lib.PlaylistTracks(ctx, pl.ID)
		return tracksLoadedMsg{playlist: pl, tracks: tracks, err: err}
	}
}

func (m *Model) handlePlaylistsLoaded(msg playlistsLoadedMsg) {
	m.browser.loading = false
	if msg.err != nil {
		m.status = statusLine{text: errmsg.Format(errmsg.OpPlaylistList, msg.err), err: true}
		return
	}
	m.browser.playlists = msg.playlists
	m.browser.playlistPos.clamp(len(msg.playlists), m.listHeight())
}

func (m *Model) handleTracksLoaded(msg tracksLoadedMsg) {
	m.browser.loading = false
	if msg.err != nil {
		m.status = statusLine{text: errmsg.FormatWith(errmsg.OpPlaylistLoad, msg.playlist.Name, msg.err), err: true}
		return
	}
	if m.page != pagePlaylists {
		return
	}
	m.page = pageTracks
	m.browser.open = msg.playlist
	m.browser.tracks = msg.tracks
	m.browser.trackPos = listPos{}
}

func (m Model) handleBrowserKey(action keymap.Action) (tea.Model, tea.Cmd) {
	if action == keymap.ActionBack {
		if m.page == pageTracks {
			m.page = pagePlaylists
		} else {
			m.closeBrowser()
		}
		return m, nil
	}
	if m.page == pageTracks {
		return m.handleTrackKey(action)
	}

	pl, ok := m.cursorPlaylist()
	if !ok {
		return m, nil
	}
	switch action {
	case keymap.ActionSelect:
		if m.browser.picking() {
			target := m.browser.target
			m.closeBrowser()
			return m, m.runStatus("Added '"+target.Title+"' to "+pl.Name, func(ctx context.Context) error {
				return m.svc.AddToPlaylist(ctx, target.Entry, pl.ID)
			})
		}
		m.closeBrowser()
		return m, m.run(func(ctx context.Context) error {
			return m.svc.PlayPlaylist(ctx, pl.ID)
		})
	case keymap.ActionEnqueue:
		if m.browser.picking() {
			return m, nil
		}
		return m, m.runStatus("Queued "+pl.Name, func(ctx context.Context) error {
			return m.svc.AddPlaylist(ctx, pl.ID)
		})
	case keymap.ActionOpen:
		if m.browser.picking() {
			return m, nil
		}
		m.browser.loading = true
		return m, m.openPlaylist(pl)
	}
	return m, nil
}

func (m Model) handleTrackKey(action keymap.Action) (tea.Model, tea.Cmd) {
	t, ok := m.cursorTrack()
	if !ok {
		return m, nil
	}
	pid := m.browser.open.ID
	switch action {
	case keymap.ActionSelect:
		m.closeBrowser()
		return m, m.run(func(ctx context.Context) error {
			return m.svc.PlaySongWithPlaylist(ctx, pid, t.ID)
		})
	case keymap.ActionEnqueue:
		m.svc.AddSong(queue.NewItem(t, m.cache.Quality(), pid))
		m.status = statusLine{text: "Queued '" + t.Title + "'"}
	}
	return m, nil
}

func (m Model) cursorPlaylist() (catalog.Playlist, bool) {
	i := m.browser.playlistPos.cursor
	if i < 0 || i >= len(m.browser.playlists) {
		return catalog.Playlist{}, false
	}
	return m.browser.playlists[i], true
}

func (m Model) cursorTrack() (catalog.Track, bool) {
	i := m.browser.trackPos.cursor
	if i < 0 || i >= len(m.browser.tracks) {
		return catalog.Track{}, false
	}
	return m.browser.tracks[i], true
}
