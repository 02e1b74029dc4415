package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/player"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

const (
	// panelOverhead is border plus header plus separator.
	panelOverhead = 4
	// statusBarHeight is the bordered single status line.
	statusBarHeight = 3
	messageHeight   = 1
)

func (m Model) listHeight() int {
	return m.height - panelOverhead - statusBarHeight - messageHeight - m.helpHeight()
}

func (m Model) helpHeight() int {
	return strings.Count(m.help.View(m.keys), "\n") + 1
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	list := m.renderQueue()
	if m.page != pageQueue {
		list = m.renderBrowser()
	}
	parts := []string{
		list,
		m.renderStatusBar(),
		m.renderMessage(),
		m.help.View(m.keys),
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderQueue() string {
	innerWidth := max(m.width-2, 0)
	listHeight := max(m.listHeight(), 0)

	left := fmt.Sprintf("Queue (%d)", len(m.items))
	right := m.svc.Queue().Policy().String() + " "
	header := headerStyle.Render(row(left, right, innerWidth))

	active := m.svc.State().IsActive()
	lines := make([]string, 0, listHeight)
	for i := range listHeight {
		idx := m.pos.offset + i
		if idx >= len(m.items) {
			lines = append(lines, strings.Repeat(" ", innerWidth))
			continue
		}
		lines = append(lines, m.renderItem(m.items[idx], idx, active, innerWidth))
	}

	return panel(header, lines, innerWidth)
}

func panel(header string, lines []string, innerWidth int) string {
	separator := subtleStyle.Render(strings.Repeat("─", innerWidth))
	content := header + "\n" + separator
	if len(lines) > 0 {
		content += "\n" + strings.Join(lines, "\n")
	}
	return panelStyle.Width(innerWidth).Render(content)
}

func (m Model) renderItem(item queue.Item, idx int, active bool, width int) string {
	playing := idx == 0 && active

	prefix := "  "
	if playing {
		prefix = playSymbol + " "
	}
	line := prefix + m.trackColumns(item.TrackID, item.Title, item.Artist, width-2)

	switch {
	case idx == m.pos.cursor && playing:
		return cursorStyle.Inherit(playingStyle).Render(line)
	case idx == m.pos.cursor:
		return cursorStyle.Render(line)
	case playing:
		return playingStyle.Render(line)
	default:
		return trackStyle.Render(line)
	}
}

// trackColumns lays out title and artist followed by the cached and
// liked markers.
func (m Model) trackColumns(trackID, title, artist string, width int) string {
	cached := "  "
	if m.cache.Contains(m.cache.Key(trackID)) {
		cached = " " + cachedSymbol
	}
	liked := "  "
	if m.svc.IsLiked(trackID) {
		liked = " " + likedSymbol
	}

	contentWidth := max(width-4, 0)
	titleWidth := contentWidth / 2
	return fit(title, titleWidth) + fit(artist, contentWidth-titleWidth) + cached + liked
}

func (m Model) renderBrowser() string {
	innerWidth := max(m.width-2, 0)
	listHeight := max(m.listHeight(), 0)

	var left string
	var rows []string
	var pos listPos
	switch {
	case m.page == pageTracks:
		left = fmt.Sprintf("%s (%d)", m.browser.open.Name, len(m.browser.tracks))
		pos = m.browser.trackPos
		for _, t := range m.browser.tracks {
			rows = append(rows, "  "+m.trackColumns(t.ID, t.Title, t.Artist, innerWidth-2))
		}
	case m.browser.picking():
		left = "Save '" + m.browser.target.Title + "' to playlist"
		pos = m.browser.playlistPos
		rows = playlistRows(m.browser.playlists, innerWidth)
	default:
		left = fmt.Sprintf("Playlists (%d)", len(m.browser.playlists))
		pos = m.browser.playlistPos
		rows = playlistRows(m.browser.playlists, innerWidth)
	}
	right := ""
	if m.browser.loading {
		right = "loading… "
	}
	header := headerStyle.Render(row(fit(left, innerWidth-lipgloss.Width(right)-1), right, innerWidth))

	lines := make([]string, 0, listHeight)
	for i := range listHeight {
		idx := pos.offset + i
		switch {
		case idx >= len(rows):
			lines = append(lines, strings.Repeat(" ", innerWidth))
		case idx == pos.cursor:
			lines = append(lines, cursorStyle.Render(rows[idx]))
		default:
			lines = append(lines, trackStyle.Render(rows[idx]))
		}
	}
	return panel(header, lines, innerWidth)
}

func playlistRows(lists []catalog.Playlist, width int) []string {
	rows := make([]string, len(lists))
	for i, pl := range lists {
		rows[i] = "  " + fit(pl.Name, max(width-2, 0))
	}
	return rows
}

func (m Model) renderStatusBar() string {
	innerWidth := max(m.width-6, 0)

	var left string
	switch now := m.svc.Now(); {
	case now == nil || m.svc.State() == player.Stopped:
		left = mutedStyle.Render(stopSymbol + "  Nothing playing")
	default:
		symbol := playSymbol
		if m.svc.State() == player.Paused {
			symbol = pauseSymbol
		}
		label := now.Title
		if now.Artist != "" {
			label += " · " + now.Artist
		}
		left = playingStyle.Render(symbol) + "  " + trackStyle.Render(fit(label, innerWidth/2))
		if m.svc.IsLiked(now.TrackID) {
			left += " " + likedStyle.Render(likedSymbol)
		}
	}

	right := mutedStyle.Render(fmt.Sprintf("vol %d%%", m.svc.Volume()))
	st := m.cache.Stats()
	usage := fmt.Sprintf("cache %d · %s", st.Entries, humanize.Bytes(uint64(st.Size)))
	if st.Capacity > 0 {
		usage += " / " + humanize.Bytes(uint64(st.Capacity))
	}
	right = subtleStyle.Render(usage) + "   " + right

	return panelStyle.Padding(0, 2).Width(max(m.width-2, 0)).Render(row(left, right, innerWidth))
}

func (m Model) renderMessage() string {
	text := fit(m.status.text, m.width)
	if m.status.err {
		return errorStyle.Render(text)
	}
	return mutedStyle.Render(text)
}
