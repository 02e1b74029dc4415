// internal/playback/service_impl_test.go
package playback

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/llehouerou/cloudwaves/internal/cache"
	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/player"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

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

// gatedRemote blocks audio resolution until release is closed.
type gatedRemote struct {
	*catalog.Memory
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRemote) ResolveAudioSource(ctx context.Context, id string, q catalog.Quality) (catalog.Audio, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return catalog.Audio{}, ctx.Err()
	}
	return g.Memory.ResolveAudioSource(ctx, id, q)
}

type fixture struct {
	svc     Service
	queue   *queue.Queue
	session *player.Mock
	remote  *catalog.Memory
	cache   *cache.Manager
	likes   *likeSet
	items   []queue.Item
}

func track(id string) catalog.Track {
	return catalog.Track{ID: id, Title: "Song " + id, Artist: "Artist"}
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, ids...)
}

// newFixtureWith queues ids. wrap, when set, replaces the remote the
// service talks to.
func newFixtureWith(t *testing.T, wrap func(*catalog.Memory) Remote, ids ...string) *fixture {
	t.Helper()

	mem := catalog.NewMemory()
	tracks := make([]catalog.Track, len(ids))
	for i, id := range ids {
		tracks[i] = track(id)
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
	items := queue.NewItems(tracks, catalog.Quality320, "")
	q.Add(items...)

	var remote Remote = mem
	if wrap != nil {
		remote = wrap(mem)
	}
	session := player.NewMock()
	likes := &likeSet{}
	svc := New(q, session, c, remote, likes, Options{})
	t.Cleanup(func() { svc.Close() })

	return &fixture{
		svc:     svc,
		queue:   q,
		session: session,
		remote:  mem,
		cache:   c,
		likes:   likes,
		items:   items,
	}
}

func trackIDs(items []queue.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.TrackID
	}
	return ids
}

func assertOrder(t *testing.T, q *queue.Queue, want ...string) {
	t.Helper()
	if got := trackIDs(q.Items()); !slices.Equal(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}
}

func TestService_PlaySong_LoadsThenTops(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	if err := f.svc.PlaySong(context.Background(), f.items[2].Entry); err != nil {
		t.Fatalf("PlaySong() error = %v", err)
	}

	assertOrder(t, f.queue, "c", "a", "b")
	if got := f.session.LoadedIDs(); !slices.Equal(got, []string{"c"}) {
		t.Errorf("LoadedIDs() = %v, want [c]", got)
	}
	if src := f.session.Loads()[0]; string(src.Data) != "audio-c" || src.Title != "Song c" {
		t.Errorf("loaded source = %+v", src)
	}
	if !f.session.Started() {
		t.Error("session was not started")
	}
}

func TestService_PlaySong_UsesCache(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()

	if err := f.svc.PlaySong(ctx, f.items[1].Entry); err != nil {
		t.Fatalf("PlaySong() error = %v", err)
	}
	if err := f.svc.PlaySong(ctx, f.items[0].Entry); err != nil {
		t.Fatalf("PlaySong() error = %v", err)
	}
	if err := f.svc.PlaySong(ctx, f.items[1].Entry); err != nil {
		t.Fatalf("PlaySong() error = %v", err)
	}

	if n := f.remote.ResolveCount("b"); n != 1 {
		t.Errorf("ResolveCount(b) = %d, want 1", n)
	}
	if !f.cache.Contains(f.cache.Key("b")) {
		t.Error("b should be cached")
	}
}

func TestService_PlaySong_UnknownEntry(t *testing.T) {
	f := newFixture(t, "a")
	other := queue.NewItem(track("x"), catalog.Quality320, "")

	err := f.svc.PlaySong(context.Background(), other.Entry)
	if !errors.Is(err, ErrNotQueued) {
		t.Errorf("PlaySong() error = %v, want ErrNotQueued", err)
	}
}

func TestService_NextPrevious_Wrap(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()

	if err := f.svc.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	assertOrder(t, f.queue, "b", "c", "a")

	if err := f.svc.Previous(ctx); err != nil {
		t.Fatalf("Previous() error = %v", err)
	}
	assertOrder(t, f.queue, "a", "b", "c")

	if err := f.svc.Previous(ctx); err != nil {
		t.Fatalf("Previous() error = %v", err)
	}
	assertOrder(t, f.queue, "c", "a", "b")

	if got := f.session.LoadedIDs(); !slices.Equal(got, []string{"b", "a", "c"}) {
		t.Errorf("LoadedIDs() = %v, want [b a c]", got)
	}
}

func TestService_Next_ClampAtEnd(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.queue.SetPolicy(queue.Clamp)
	ctx := context.Background()

	if err := f.svc.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if err := f.svc.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	head, _ := f.queue.Head()
	if head.TrackID != "b" {
		t.Errorf("head = %s, want b", head.TrackID)
	}
	if n := len(f.session.Loads()); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
}

func TestService_Next_EmptyQueue(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.Next(context.Background()); err != nil {
		t.Errorf("Next() error = %v, want nil", err)
	}
	if n := len(f.session.Loads()); n != 0 {
		t.Errorf("loads = %d, want 0", n)
	}
}

func TestService_LoadFailure_KeepsHeadAndFreesLock(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	sub := f.svc.Subscribe()

	f.remote.SetResolveError(errors.New("network down"))
	if err := f.svc.Next(ctx); err == nil {
		t.Fatal("Next() error = nil, want error")
	}
	assertOrder(t, f.queue, "a", "b", "c")

	select {
	case e := <-sub.Error:
		if e.TrackID != "b" {
			t.Errorf("ErrorEvent.TrackID = %q, want b", e.TrackID)
		}
	default:
		t.Error("no error event")
	}

	f.remote.SetResolveError(nil)
	if err := f.svc.Next(ctx); err != nil {
		t.Fatalf("Next() after recovery error = %v", err)
	}
	assertOrder(t, f.queue, "b", "c", "a")
}

func TestService_SessionLoadFailure(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.session.SetLoadError(player.ErrUnsupportedFormat)

	err := f.svc.PlaySong(context.Background(), f.items[1].Entry)
	if !errors.Is(err, player.ErrUnsupportedFormat) {
		t.Errorf("PlaySong() error = %v, want ErrUnsupportedFormat", err)
	}
	assertOrder(t, f.queue, "a", "b")
}

func TestService_BusyLoad_IsSilentNoOp(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	release := f.session.BlockLoads()
	defer release()

	errCh := make(chan error, 1)
	go func() { errCh <- f.svc.PlaySong(ctx, f.items[1].Entry) }()
	<-f.session.LoadEntered()

	if err := f.svc.Next(ctx); err != nil {
		t.Errorf("Next() while busy error = %v, want nil", err)
	}
	if err := f.svc.PlaySong(ctx, f.items[2].Entry); err != nil {
		t.Errorf("PlaySong() while busy error = %v, want nil", err)
	}

	release()
	if err := <-errCh; err != nil {
		t.Fatalf("PlaySong() error = %v", err)
	}

	if got := f.session.LoadedIDs(); !slices.Equal(got, []string{"b"}) {
		t.Errorf("LoadedIDs() = %v, want [b]", got)
	}
	assertOrder(t, f.queue, "b", "a", "c")
}

func TestService_StaleLoad_Discarded(t *testing.T) {
	var gated *gatedRemote
	f := newFixtureWith(t, func(m *catalog.Memory) Remote {
		gated = &gatedRemote{
			Memory:  m,
			entered: make(chan struct{}, 1),
			release: make(chan struct{}),
		}
		return gated
	}, "a", "b", "c")
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() { errCh <- f.svc.PlaySong(ctx, f.items[1].Entry) }()
	<-gated.entered

	if err := f.svc.DeleteSong(ctx, f.items[1].Entry); err != nil {
		t.Fatalf("DeleteSong() error = %v", err)
	}
	close(gated.release)

	if err := <-errCh; err != nil {
		t.Errorf("PlaySong() error = %v, want nil", err)
	}
	if n := len(f.session.Loads()); n != 0 {
		t.Errorf("loads = %d, want 0", n)
	}
	assertOrder(t, f.queue, "a", "c")

	// The fetched audio is still cached.
	if !f.cache.Contains(f.cache.Key("b")) {
		t.Error("b should be cached")
	}
}

func TestService_DeleteSong_HeadReloads(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	if err := f.svc.DeleteSong(context.Background(), f.items[0].Entry); err != nil {
		t.Fatalf("DeleteSong() error = %v", err)
	}

	assertOrder(t, f.queue, "b", "c")
	if got := f.session.LoadedIDs(); !slices.Equal(got, []string{"b"}) {
		t.Errorf("LoadedIDs() = %v, want [b]", got)
	}
}

func TestService_DeleteSong_NotHead(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	if err := f.svc.DeleteSong(context.Background(), f.items[1].Entry); err != nil {
		t.Fatalf("DeleteSong() error = %v", err)
	}

	assertOrder(t, f.queue, "a", "c")
	if n := len(f.session.Loads()); n != 0 {
		t.Errorf("loads = %d, want 0", n)
	}
}

func TestService_DeleteSong_LastStops(t *testing.T) {
	f := newFixture(t, "a")

	if err := f.svc.DeleteSong(context.Background(), f.items[0].Entry); err != nil {
		t.Fatalf("DeleteSong() error = %v", err)
	}

	if !f.queue.IsEmpty() {
		t.Error("queue should be empty")
	}
	if f.session.QuitCalls() != 1 {
		t.Errorf("QuitCalls() = %d, want 1", f.session.QuitCalls())
	}
}

func TestService_ClearQueue_QuitsAndRestartsOnNextLoad(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	qsub := f.queue.Subscribe()

	if err := f.svc.PlaySong(ctx, f.items[0].Entry); err != nil {
		t.Fatalf("PlaySong() error = %v", err)
	}
	f.svc.ClearQueue()

	if !f.queue.IsEmpty() {
		t.Error("queue should be empty")
	}
	if f.session.QuitCalls() != 1 {
		t.Errorf("QuitCalls() = %d, want 1", f.session.QuitCalls())
	}
	select {
	case <-qsub.Changed:
	default:
		t.Error("queue observers were not refreshed")
	}

	item := queue.NewItem(track("a"), catalog.Quality320, "")
	f.svc.AddSong(item)
	if err := f.svc.PlaySong(ctx, item.Entry); err != nil {
		t.Fatalf("PlaySong() error = %v", err)
	}
	if f.session.StartCalls() != 2 {
		t.Errorf("StartCalls() = %d, want 2", f.session.StartCalls())
	}
	if !f.session.Started() {
		t.Error("session should be started again")
	}
}

func TestService_RandomQueue_PinsHeadWhenActive(t *testing.T) {
	f := newFixture(t, "a", "b", "c", "d", "e", "f")
	f.session.SetState(player.Playing)

	for range 10 {
		f.svc.RandomQueue()
		items := f.queue.Items()
		if items[0].TrackID != "a" {
			t.Fatalf("head = %s, want a", items[0].TrackID)
		}
		got := trackIDs(items)
		slices.Sort(got)
		if !slices.Equal(got, []string{"a", "b", "c", "d", "e", "f"}) {
			t.Fatalf("RandomQueue() changed membership: %v", got)
		}
	}
}

func TestService_TogglePlayAndVolume(t *testing.T) {
	f := newFixture(t, "a")
	sub := f.svc.Subscribe()
	f.session.SetState(player.Playing)

	f.svc.TogglePlay()
	if f.svc.State() != player.Paused {
		t.Errorf("State() = %v, want Paused", f.svc.State())
	}
	e := <-sub.StateChanged
	if e.Previous != player.Playing || e.Current != player.Paused {
		t.Errorf("StateChange = %+v", e)
	}

	f.svc.SetVolume(150)
	if f.svc.Volume() != 100 {
		t.Errorf("Volume() = %d, want 100", f.svc.Volume())
	}
	if e := <-sub.StateChanged; e.Volume != 100 {
		t.Errorf("StateChange.Volume = %d, want 100", e.Volume)
	}
}

func TestService_Like_Toggles(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()
	sub := f.svc.Subscribe()

	if err := f.svc.Like(ctx); err != nil {
		t.Fatalf("Like() error = %v", err)
	}
	if !f.svc.IsLiked("a") {
		t.Error("a should be liked")
	}
	if e := <-sub.LikeChanged; e.TrackID != "a" || !e.Liked {
		t.Errorf("LikeChange = %+v", e)
	}
	if got, _ := f.remote.LikeList(ctx); !slices.Equal(got, []string{"a"}) {
		t.Errorf("LikeList() = %v, want [a]", got)
	}

	if err := f.svc.Like(ctx); err != nil {
		t.Fatalf("Like() error = %v", err)
	}
	if f.svc.IsLiked("a") {
		t.Error("a should not be liked")
	}
}

func TestService_Like_EmptyQueue(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Like(context.Background()); err != nil {
		t.Errorf("Like() error = %v, want nil", err)
	}
}

func TestService_PlayPlaylist(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	f.remote.AddPlaylist("p1", "Mix", "c", "b")

	if err := f.svc.PlayPlaylist(context.Background(), "p1"); err != nil {
		t.Fatalf("PlayPlaylist() error = %v", err)
	}

	assertOrder(t, f.queue, "c", "b")
	if got := f.session.LoadedIDs(); !slices.Equal(got, []string{"c"}) {
		t.Errorf("LoadedIDs() = %v, want [c]", got)
	}
	head, _ := f.queue.Head()
	if head.PlaylistID != "p1" {
		t.Errorf("head.PlaylistID = %q, want p1", head.PlaylistID)
	}
}

func TestService_PlayPlaylist_Unknown(t *testing.T) {
	f := newFixture(t, "a")

	if err := f.svc.PlayPlaylist(context.Background(), "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("PlayPlaylist() error = %v, want ErrNotFound", err)
	}
	assertOrder(t, f.queue, "a")
}

func TestService_PlaySongWithPlaylist(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	f.remote.AddPlaylist("p1", "Mix", "a", "b", "c")

	if err := f.svc.PlaySongWithPlaylist(context.Background(), "p1", "b"); err != nil {
		t.Fatalf("PlaySongWithPlaylist() error = %v", err)
	}

	assertOrder(t, f.queue, "b", "a", "c")
	if got := f.session.LoadedIDs(); !slices.Equal(got, []string{"b"}) {
		t.Errorf("LoadedIDs() = %v, want [b]", got)
	}
}

func TestService_AddPlaylistAndSong(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	f.remote.AddPlaylist("p1", "Mix", "c", "b")

	if err := f.svc.AddPlaylist(context.Background(), "p1"); err != nil {
		t.Fatalf("AddPlaylist() error = %v", err)
	}
	f.svc.AddSong(queue.NewItem(track("a"), catalog.Quality320, ""))

	assertOrder(t, f.queue, "a", "b", "c", "c", "b", "a")
	if n := len(f.session.Loads()); n != 0 {
		t.Errorf("loads = %d, want 0", n)
	}
}

func TestService_Intelligence(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	f.remote.AddPlaylist("p1", "Mix", "a", "b", "c")
	seed := queue.NewItem(track("b"), catalog.Quality320, "p1")
	f.queue.Replace(seed)

	if err := f.svc.Intelligence(context.Background(), seed.Entry); err != nil {
		t.Fatalf("Intelligence() error = %v", err)
	}

	assertOrder(t, f.queue, "b", "a", "c")
	if got := f.session.LoadedIDs(); !slices.Equal(got, []string{"b"}) {
		t.Errorf("LoadedIDs() = %v, want [b]", got)
	}
	head, _ := f.queue.Head()
	if head.Entry != seed.Entry {
		t.Error("seed should stay the head")
	}
}

func TestService_AddToAndDeleteFromPlaylist(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.remote.AddPlaylist("p1", "Mix", "b")
	ctx := context.Background()

	if err := f.svc.AddToPlaylist(ctx, f.items[0].Entry, "p1"); err != nil {
		t.Fatalf("AddToPlaylist() error = %v", err)
	}
	tracks, _ := f.remote.PlaylistTracks(ctx, "p1")
	if len(tracks) != 2 || tracks[1].ID != "a" {
		t.Errorf("PlaylistTracks() = %v, want [b a]", tracks)
	}

	item := queue.NewItem(track("b"), catalog.Quality320, "p1")
	f.svc.AddSong(item)
	if err := f.svc.DeleteFromPlaylist(ctx, item.Entry); err != nil {
		t.Fatalf("DeleteFromPlaylist() error = %v", err)
	}
	tracks, _ = f.remote.PlaylistTracks(ctx, "p1")
	if len(tracks) != 1 || tracks[0].ID != "a" {
		t.Errorf("PlaylistTracks() = %v, want [a]", tracks)
	}
}

func TestService_TrackChangeEvent(t *testing.T) {
	f := newFixture(t, "a", "b")
	sub := f.svc.Subscribe()

	if err := f.svc.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	e := <-sub.TrackChanged
	if e.Previous == nil || e.Previous.TrackID != "a" {
		t.Errorf("TrackChange.Previous = %v, want a", e.Previous)
	}
	if e.Current.TrackID != "b" {
		t.Errorf("TrackChange.Current = %s, want b", e.Current.TrackID)
	}
}

func TestService_Run_AdvancesOnFinish(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx)
		close(done)
	}()

	f.session.SimulateFinished()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if head, _ := f.queue.Head(); head.TrackID == "b" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("queue did not advance after the track finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestService_Close_ClosesSubscriptions(t *testing.T) {
	f := newFixture(t)
	sub := f.svc.Subscribe()

	if err := f.svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	<-sub.Done

	if err := f.svc.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
