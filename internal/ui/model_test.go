package ui

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/cloudwaves/internal/cache"
	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/errmsg"
	"github.com/llehouerou/cloudwaves/internal/playback"
	"github.com/llehouerou/cloudwaves/internal/player"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

// stripANSI removes ANSI escape codes from a string for easier testing.
func stripANSI(s string) string {
	re := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return re.ReplaceAllString(s, "")
}

type likeSet struct {
	mu    sync.Mutex
	liked map[string]bool
}

func (l *likeSet) IsLiked(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.liked[id]
}

func (l *likeSet) SetLiked(id string, liked bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.liked == nil {
		l.liked = make(map[string]bool)
	}
	l.liked[id] = liked
}

type harness struct {
	model   Model
	mem     *catalog.Memory
	svc     playback.Service
	queue   *queue.Queue
	session *player.Mock
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()

	mem := catalog.NewMemory()
	tracks := make([]catalog.Track, len(ids))
	for i, id := range ids {
		tracks[i] = catalog.Track{ID: id, Title: "Song " + id, Artist: "Artist " + id}
		mem.AddTrack(tracks[i], []byte("audio-"+id))
	}

	c, err := cache.Open(context.Background(), cache.Options{
		Dir:     t.TempDir(),
		Quality: catalog.Quality320,
	})
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	q := queue.New(queue.Wrap)
	q.Add(queue.NewItems(tracks, catalog.Quality320, "")...)

	session := player.NewMock()
	svc := playback.New(q, session, c, mem, &likeSet{}, playback.Options{})
	t.Cleanup(func() { svc.Close() })

	m := New(context.Background(), svc, c, mem)
	t.Cleanup(m.Close)
	h := &harness{model: m, mem: mem, svc: svc, queue: q, session: session}
	h.update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return h
}

// update feeds msg to the model. Returned commands are dropped since
// subscription messages re-arm a blocking wait.
func (h *harness) update(msg tea.Msg) {
	next, _ := h.model.Update(msg)
	h.model = next.(Model)
}

// key feeds a key to the model and runs the returned command once.
func (h *harness) key(msg tea.KeyMsg) tea.Msg {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	if cmd == nil {
		return nil
	}
	return cmd()
}

func (h *harness) press(keys string) tea.Msg {
	return h.key(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
}

// browse opens the playlist browser and applies the loaded list.
func (h *harness) browse(t *testing.T) {
	t.Helper()
	msg := h.key(tea.KeyMsg{Type: tea.KeyTab})
	if _, ok := msg.(playlistsLoadedMsg); !ok {
		t.Fatalf("tab returned %T, want playlistsLoadedMsg", msg)
	}
	h.update(msg)
}

func (h *harness) playlistIDs(t *testing.T, id string) []string {
	t.Helper()
	tracks, err := h.mem.PlaylistTracks(context.Background(), id)
	if err != nil {
		t.Fatalf("PlaylistTracks(%s) error = %v", id, err)
	}
	ids := make([]string, len(tracks))
	for i, tr := range tracks {
		ids[i] = tr.ID
	}
	return ids
}

func queueIDs(q *queue.Queue) string {
	var b strings.Builder
	for _, it := range q.Items() {
		b.WriteString(it.TrackID)
	}
	return b.String()
}

func (h *harness) view() string {
	return stripANSI(h.model.View())
}

func TestView_EmptyQueue(t *testing.T) {
	h := newHarness(t)

	out := h.view()
	if !strings.Contains(out, "Queue (0)") {
		t.Errorf("empty queue should show 'Queue (0)', got: %s", out)
	}
	if !strings.Contains(out, "Nothing playing") {
		t.Errorf("stopped player should show 'Nothing playing', got: %s", out)
	}
}

func TestView_ListsItems(t *testing.T) {
	h := newHarness(t, "1", "2", "3")

	out := h.view()
	for _, want := range []string{"Queue (3)", "Song 1", "Song 2", "Song 3", "Artist 2", "wrap"} {
		if !strings.Contains(out, want) {
			t.Errorf("view should contain %q, got: %s", want, out)
		}
	}
	if !strings.Contains(out, "cache 0") {
		t.Errorf("view should show cache stats, got: %s", out)
	}
}

func TestView_ZeroSizeRendersNothing(t *testing.T) {
	h := newHarness(t, "1")
	h.update(tea.WindowSizeMsg{Width: 0, Height: 0})

	if got := h.model.View(); got != "" {
		t.Errorf("View() = %q, want empty", got)
	}
}

func TestCursorMovement(t *testing.T) {
	h := newHarness(t, "1", "2", "3")

	h.press("j")
	h.press("j")
	h.press("j")
	if h.model.pos.cursor != 2 {
		t.Errorf("cursor = %d, want 2 (clamped at end)", h.model.pos.cursor)
	}

	h.press("k")
	if h.model.pos.cursor != 1 {
		t.Errorf("cursor = %d, want 1", h.model.pos.cursor)
	}

	h.press("g")
	if h.model.pos.cursor != 0 {
		t.Errorf("cursor = %d, want 0 after jump start", h.model.pos.cursor)
	}

	h.press("G")
	if h.model.pos.cursor != 2 {
		t.Errorf("cursor = %d, want 2 after jump end", h.model.pos.cursor)
	}
}

func TestCursorMovement_EmptyQueue(t *testing.T) {
	h := newHarness(t)

	h.press("j")
	h.press("G")
	if h.model.pos.cursor != 0 {
		t.Errorf("cursor = %d, want 0", h.model.pos.cursor)
	}
}

func TestSelect_PlaysItemUnderCursor(t *testing.T) {
	h := newHarness(t, "1", "2", "3")

	h.press("j")
	h.press("j")
	msg := h.key(tea.KeyMsg{Type: tea.KeyEnter})

	done, ok := msg.(commandDoneMsg)
	if !ok {
		t.Fatalf("select returned %T, want commandDoneMsg", msg)
	}
	if done.err != nil {
		t.Fatalf("PlaySong() error = %v", done.err)
	}

	head, _ := h.queue.Head()
	if head.TrackID != "3" {
		t.Errorf("head = %s, want 3", head.TrackID)
	}
	if ids := h.session.LoadedIDs(); len(ids) != 1 || ids[0] != "3" {
		t.Errorf("LoadedIDs() = %v, want [3]", ids)
	}
}

func TestSelect_EmptyQueueIsNoop(t *testing.T) {
	h := newHarness(t)

	if msg := h.key(tea.KeyMsg{Type: tea.KeyEnter}); msg != nil {
		t.Errorf("select on empty queue returned %v, want nil", msg)
	}
}

func TestDelete_RemovesItemUnderCursor(t *testing.T) {
	h := newHarness(t, "1", "2", "3")

	h.press("j")
	h.press("d")
	h.update(queueChangedMsg{})

	if len(h.model.items) != 2 {
		t.Fatalf("items = %d, want 2", len(h.model.items))
	}
	if got := h.model.items[0].TrackID + h.model.items[1].TrackID; got != "13" {
		t.Errorf("remaining = %s, want 13", got)
	}
	if ids := h.session.LoadedIDs(); len(ids) != 0 {
		t.Errorf("LoadedIDs() = %v, deleting a non-head item should not load", ids)
	}
}

func TestClear_EmptiesList(t *testing.T) {
	h := newHarness(t, "1", "2")

	h.press("j")
	h.press("c")

	if len(h.model.items) != 0 {
		t.Errorf("items = %d, want 0", len(h.model.items))
	}
	if h.model.pos.cursor != 0 {
		t.Errorf("cursor = %d, want 0", h.model.pos.cursor)
	}
	if !h.queue.IsEmpty() {
		t.Error("queue should be empty after clear")
	}
}

func TestVolumeKeys(t *testing.T) {
	h := newHarness(t)
	before := h.svc.Volume()

	h.press("-")
	if got := h.svc.Volume(); got != before-volumeStep {
		t.Errorf("Volume() = %d, want %d", got, before-volumeStep)
	}

	h.press("+")
	if got := h.svc.Volume(); got != before {
		t.Errorf("Volume() = %d, want %d", got, before)
	}
}

func TestQuit(t *testing.T) {
	h := newHarness(t)

	msg := h.press("q")
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("quit returned %T, want tea.QuitMsg", msg)
	}
}

func TestHelpToggle(t *testing.T) {
	h := newHarness(t)
	short := h.view()

	h.press("?")
	if !h.model.help.ShowAll {
		t.Fatal("help.ShowAll = false, want true")
	}
	if full := h.view(); full == short {
		t.Error("full help should render differently from short help")
	}
}

func TestErrorEventShowsMessage(t *testing.T) {
	h := newHarness(t, "1")

	h.update(eventMsg{playback.ErrorEvent{
		Op:      errmsg.OpPlayNext,
		TrackID: "1",
		Err:     errors.New("timeout"),
	}})

	if out := h.view(); !strings.Contains(out, "Failed to play next song '1': timeout") {
		t.Errorf("view should show the error, got: %s", out)
	}
}

func TestTrackChangeResetsCursor(t *testing.T) {
	h := newHarness(t, "1", "2", "3")
	h.press("G")

	h.update(eventMsg{playback.TrackChange{}})
	if h.model.pos.cursor != 0 {
		t.Errorf("cursor = %d, want 0", h.model.pos.cursor)
	}
}

func TestStatusBar_ShowsNowPlaying(t *testing.T) {
	h := newHarness(t, "1", "2")

	h.key(tea.KeyMsg{Type: tea.KeyEnter})

	out := h.view()
	if strings.Contains(out, "Nothing playing") {
		t.Errorf("status bar should show the loaded track, got: %s", out)
	}
	if !strings.Contains(out, playSymbol) {
		t.Errorf("status bar should show the play symbol, got: %s", out)
	}
}

func TestSyncKeepsCursorOnEntry(t *testing.T) {
	h := newHarness(t, "1", "2", "3", "4")
	h.press("j")
	h.press("j")

	if err := h.svc.DeleteSong(context.Background(), h.model.items[1].Entry); err != nil {
		t.Fatalf("DeleteSong() error = %v", err)
	}
	h.update(queueChangedMsg{})

	if item, _ := h.model.cursorItem(); item.TrackID != "3" {
		t.Errorf("cursor on %s, want 3", item.TrackID)
	}
}

func TestShuffleKeepsCursorOnEntry(t *testing.T) {
	h := newHarness(t, "1", "2", "3", "4", "5")
	h.press("j")
	h.press("j")

	h.press("r")

	if item, _ := h.model.cursorItem(); item.TrackID != "3" {
		t.Errorf("cursor on %s, want 3", item.TrackID)
	}
}

func TestView_MarksCachedTracks(t *testing.T) {
	h := newHarness(t, "1", "2")

	h.key(tea.KeyMsg{Type: tea.KeyEnter})

	// The first match is the queue row; the status bar repeats the title.
	var song1, song2 string
	for _, line := range strings.Split(h.view(), "\n") {
		switch {
		case song1 == "" && strings.Contains(line, "Song 1"):
			song1 = line
		case song2 == "" && strings.Contains(line, "Song 2"):
			song2 = line
		}
	}
	if !strings.Contains(song1, cachedSymbol) {
		t.Errorf("played track should be marked cached, got: %q", song1)
	}
	if strings.Contains(song2, cachedSymbol) {
		t.Errorf("unplayed track should not be marked cached, got: %q", song2)
	}
}

func TestPlaylists_ListAndBack(t *testing.T) {
	h := newHarness(t, "1", "2")
	h.mem.AddPlaylist("p1", "Road trip", "1", "2")
	h.mem.AddPlaylist("p2", "Focus", "2")

	h.browse(t)

	out := h.view()
	for _, want := range []string{"Playlists (2)", "Road trip", "Focus"} {
		if !strings.Contains(out, want) {
			t.Errorf("view should contain %q, got: %s", want, out)
		}
	}

	h.key(tea.KeyMsg{Type: tea.KeyEsc})
	if h.model.page != pageQueue {
		t.Errorf("page = %d, want queue after back", h.model.page)
	}
	if out := h.view(); !strings.Contains(out, "Queue (2)") {
		t.Errorf("view should show the queue again, got: %s", out)
	}
}

func TestPlaylists_SelectPlaysPlaylist(t *testing.T) {
	h := newHarness(t, "1", "2", "3")
	h.mem.AddPlaylist("p1", "Road trip", "3", "1")

	h.browse(t)
	msg := h.key(tea.KeyMsg{Type: tea.KeyEnter})
	if done, ok := msg.(commandDoneMsg); !ok || done.err != nil {
		t.Fatalf("select returned %#v, want successful commandDoneMsg", msg)
	}

	if got := queueIDs(h.queue); got != "31" {
		t.Errorf("queue = %s, want 31", got)
	}
	head, _ := h.queue.Head()
	if head.PlaylistID != "p1" {
		t.Errorf("head playlist = %q, want p1", head.PlaylistID)
	}
	if ids := h.session.LoadedIDs(); len(ids) != 1 || ids[0] != "3" {
		t.Errorf("LoadedIDs() = %v, want [3]", ids)
	}
	if h.model.page != pageQueue {
		t.Errorf("page = %d, want queue after playing", h.model.page)
	}
}

func TestPlaylists_EnqueueAppends(t *testing.T) {
	h := newHarness(t, "1", "2")
	h.mem.AddPlaylist("p1", "Road trip", "2", "1")

	h.browse(t)
	msg := h.press("a")
	h.update(msg)

	if got := queueIDs(h.queue); got != "1221" {
		t.Errorf("queue = %s, want 1221", got)
	}
	if !strings.Contains(h.view(), "Queued Road trip") {
		t.Errorf("view should confirm the enqueue, got: %s", h.view())
	}
}

func TestPlaylists_OpenTracks(t *testing.T) {
	h := newHarness(t, "1", "2", "3")
	h.mem.AddPlaylist("p1", "Road trip", "2", "3")
	h.browse(t)

	msg := h.press("o")
	if _, ok := msg.(tracksLoadedMsg); !ok {
		t.Fatalf("open returned %T, want tracksLoadedMsg", msg)
	}
	h.update(msg)

	out := h.view()
	for _, want := range []string{"Road trip (2)", "Song 2", "Song 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("view should contain %q, got: %s", want, out)
		}
	}

	t.Run("enqueue track", func(t *testing.T) {
		h.press("a")
		items := h.queue.Items()
		last := items[len(items)-1]
		if last.TrackID != "2" || last.PlaylistID != "p1" {
			t.Errorf("last item = %s from %q, want 2 from p1", last.TrackID, last.PlaylistID)
		}
	})

	t.Run("select plays within playlist", func(t *testing.T) {
		h.press("j")
		msg := h.key(tea.KeyMsg{Type: tea.KeyEnter})
		if done, ok := msg.(commandDoneMsg); !ok || done.err != nil {
			t.Fatalf("select returned %#v, want successful commandDoneMsg", msg)
		}
		if got := queueIDs(h.queue); got != "32" {
			t.Errorf("queue = %s, want 32", got)
		}
		ids := h.session.LoadedIDs()
		if len(ids) == 0 || ids[len(ids)-1] != "3" {
			t.Errorf("LoadedIDs() = %v, want 3 last", ids)
		}
	})
}

func TestPlaylists_BackFromTracks(t *testing.T) {
	h := newHarness(t, "1")
	h.mem.AddPlaylist("p1", "Road trip", "1")
	h.browse(t)
	h.update(h.press("o"))

	h.key(tea.KeyMsg{Type: tea.KeyEsc})
	if h.model.page != pagePlaylists {
		t.Errorf("page = %d, want playlists after back", h.model.page)
	}
}

func TestSaveToPlaylist(t *testing.T) {
	h := newHarness(t, "1", "2", "3")
	h.mem.AddPlaylist("p1", "Road trip", "1")
	h.press("G")

	msg := h.press("s")
	h.update(msg)
	if out := h.view(); !strings.Contains(out, "Save 'Song 3' to playlist") {
		t.Errorf("picker header missing, got: %s", out)
	}

	msg = h.key(tea.KeyMsg{Type: tea.KeyEnter})
	h.update(msg)

	if got := h.playlistIDs(t, "p1"); strings.Join(got, "") != "13" {
		t.Errorf("playlist = %v, want [1 3]", got)
	}
	if got := queueIDs(h.queue); got != "123" {
		t.Errorf("queue = %s, picking should not touch it", got)
	}
	if h.model.page != pageQueue {
		t.Errorf("page = %d, want queue after saving", h.model.page)
	}
	if !strings.Contains(h.view(), "Added 'Song 3' to Road trip") {
		t.Errorf("view should confirm the save, got: %s", h.view())
	}
}

func TestRemoveFromPlaylist(t *testing.T) {
	h := newHarness(t, "1", "2")
	h.mem.AddPlaylist("p1", "Road trip", "1", "2")
	if err := h.svc.PlayPlaylist(context.Background(), "p1"); err != nil {
		t.Fatalf("PlayPlaylist() error = %v", err)
	}
	h.update(queueChangedMsg{})
	h.press("j")

	h.update(h.press("x"))

	if got := h.playlistIDs(t, "p1"); strings.Join(got, "") != "1" {
		t.Errorf("playlist = %v, want [1]", got)
	}
}

func TestRemoveFromPlaylist_NotFromPlaylist(t *testing.T) {
	h := newHarness(t, "1")

	if msg := h.press("x"); msg != nil {
		t.Errorf("x returned %v, want nil", msg)
	}
	if out := h.view(); !strings.Contains(out, "not queued from a playlist") {
		t.Errorf("view should explain, got: %s", out)
	}
}

func TestPlaylists_Offline(t *testing.T) {
	h := newHarness(t)
	h.model.library = nil

	if msg := h.key(tea.KeyMsg{Type: tea.KeyTab}); msg != nil {
		t.Errorf("tab returned %v, want nil", msg)
	}
	if h.model.page != pageQueue {
		t.Errorf("page = %d, want queue", h.model.page)
	}
	if out := h.view(); !strings.Contains(out, "unavailable offline") {
		t.Errorf("view should explain, got: %s", out)
	}
}
