// internal/playback/service_impl.go
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/llehouerou/cloudwaves/internal/cache"
	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/errmsg"
	"github.com/llehouerou/cloudwaves/internal/loadlock"
	"github.com/llehouerou/cloudwaves/internal/player"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

// ErrNotQueued is returned when a command names an entry that is not in
// the queue.
var ErrNotQueued = errors.New("not in queue")

// errStale marks a load whose item left the queue while it was resolved.
var errStale = errors.New("stale load")

// Cache is the part of the audio cache the service needs.
type Cache interface {
	Quality() catalog.Quality
	Key(trackID string) cache.Key
	Pin(key cache.Key) (unpin func())
	Fetch(ctx context.Context, key cache.Key, fetch cache.Fetcher) (cache.Entry, []byte, error)
}

// Remote is the part of the catalog the service needs.
type Remote interface {
	catalog.Resolver
	catalog.Downloader
	catalog.Likes
	catalog.Playlists
}

// LikeSet holds the liked tracks of the signed-in user.
type LikeSet interface {
	IsLiked(trackID string) bool
	SetLiked(trackID string, liked bool)
}

// Options configures the service.
type Options struct {
	Logger *slog.Logger
}

// Verify serviceImpl implements Service at compile time.
var _ Service = (*serviceImpl)(nil)

// Verify cache.Manager satisfies Cache at compile time.
var _ Cache = (*cache.Manager)(nil)

type serviceImpl struct {
	queue   *queue.Queue
	session player.Session
	cache   Cache
	remote  Remote
	likes   LikeSet
	lock    *loadlock.Lock
	logger  *slog.Logger

	subs   []*Subscription
	subsMu sync.RWMutex

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// New creates a playback service.
func New(q *queue.Queue, session player.Session, c Cache, remote Remote, likes LikeSet, opts Options) Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &serviceImpl{
		queue:   q,
		session: session,
		cache:   c,
		remote:  remote,
		likes:   likes,
		lock:    loadlock.New(),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (s *serviceImpl) Queue() *queue.Queue {
	return s.queue
}

// PlaySong loads entry and moves it to the head.
func (s *serviceImpl) PlaySong(ctx context.Context, entry uuid.UUID) error {
	if s.lock.Busy() {
		return nil
	}
	target, ok := s.queue.Find(entry)
	if !ok {
		return ErrNotQueued
	}
	return s.play(ctx, errmsg.OpPlaySong, target, func() {
		s.queue.Top(target.Entry)
	})
}

// Next loads the item after the head, then moves the head onto it.
func (s *serviceImpl) Next(ctx context.Context) error {
	return s.step(ctx, 1, errmsg.OpPlayNext)
}

// Previous loads the item before the head, then moves the head onto it.
func (s *serviceImpl) Previous(ctx context.Context) error {
	return s.step(ctx, -1, errmsg.OpPlayPrevious)
}

func (s *serviceImpl) step(ctx context.Context, offset int, op errmsg.Op) error {
	if s.lock.Busy() {
		return nil
	}
	target, ok := s.queue.Peek(offset)
	if !ok {
		return nil
	}
	// Seek lands on the loaded item even if the queue was edited meanwhile.
	return s.play(ctx, op, target, func() {
		s.queue.Seek(target.Entry)
	})
}

// DeleteSong removes entry. When it was the head and no load is running,
// the new head is loaded; when the queue is left empty the output stops.
func (s *serviceImpl) DeleteSong(ctx context.Context, entry uuid.UUID) error {
	wasHead, ok := s.queue.Delete(entry)
	if !ok {
		return nil
	}
	s.queue.Refresh()
	if !wasHead || s.lock.Busy() {
		return nil
	}

	head, ok := s.queue.Head()
	if !ok {
		s.stop()
		return nil
	}
	return s.play(ctx, errmsg.OpPlaySong, head, func() {
		s.queue.Seek(head.Entry)
	})
}

// ClearQueue empties the queue and stops the output.
func (s *serviceImpl) ClearQueue() {
	s.queue.Clear()
	s.queue.Refresh()
	s.stop()
}

// RandomQueue shuffles the queue. The head keeps its place while a track
// is playing or paused.
func (s *serviceImpl) RandomQueue() {
	s.queue.Random(s.session.State().IsActive())
	s.queue.Refresh()
}

// AddSong appends items to the queue.
func (s *serviceImpl) AddSong(items ...queue.Item) {
	if len(items) == 0 {
		return
	}
	s.queue.Add(items...)
	s.queue.Refresh()
}

func (s *serviceImpl) TogglePlay() {
	prev := s.session.State()
	s.session.TogglePlay()
	s.emitStateFrom(prev)
}

func (s *serviceImpl) SetVolume(percent int) {
	prev := s.session.State()
	s.session.SetVolume(percent)
	s.emitStateFrom(prev)
}

func (s *serviceImpl) State() player.State {
	return s.session.State()
}

func (s *serviceImpl) Volume() int {
	return s.session.Volume()
}

func (s *serviceImpl) Now() *player.TrackInfo {
	return s.session.Now()
}

// Like toggles the like status of the head track.
func (s *serviceImpl) Like(ctx context.Context) error {
	head, ok := s.queue.Head()
	if !ok {
		return nil
	}
	liked := !s.likes.IsLiked(head.TrackID)
	done, err := s.remote.SetLikeStatus(ctx, head.TrackID, liked)
	if err != nil {
		s.fail(errmsg.OpLike, head.TrackID, err)
		return err
	}
	if !done {
		s.logger.Info("like status not changed", "track", head.TrackID, "liked", liked)
		return nil
	}
	s.likes.SetLiked(head.TrackID, liked)
	s.broadcast(func(sub *Subscription) {
		sub.sendLike(LikeChange{TrackID: head.TrackID, Liked: liked})
	})
	return nil
}

func (s *serviceImpl) IsLiked(trackID string) bool {
	return s.likes.IsLiked(trackID)
}

// PlayPlaylist replaces the queue with the playlist and plays its first
// track.
func (s *serviceImpl) PlayPlaylist(ctx context.Context, playlistID string) error {
	items, err := s.playlistItems(ctx, playlistID)
	if err != nil {
		return err
	}
	s.queue.Replace(items...)
	s.queue.Refresh()

	head, ok := s.queue.Head()
	if !ok || s.lock.Busy() {
		return nil
	}
	return s.play(ctx, errmsg.OpPlaySong, head, func() {
		s.queue.Seek(head.Entry)
	})
}

// PlaySongWithPlaylist replaces the queue with the playlist, moves trackID
// to the head and plays it.
func (s *serviceImpl) PlaySongWithPlaylist(ctx context.Context, playlistID, trackID string) error {
	items, err := s.playlistItems(ctx, playlistID)
	if err != nil {
		return err
	}
	s.queue.Replace(items...)
	target, ok := s.queue.FindTrack(trackID)
	if ok {
		s.queue.Top(target.Entry)
	}
	s.queue.Refresh()

	if !ok {
		err := fmt.Errorf("track %s: %w", trackID, catalog.ErrNotFound)
		s.fail(errmsg.OpPlaySong, trackID, err)
		return err
	}
	if s.lock.Busy() {
		return nil
	}
	return s.play(ctx, errmsg.OpPlaySong, target, func() {
		s.queue.Top(target.Entry)
	})
}

// AddPlaylist appends the playlist tracks to the queue.
func (s *serviceImpl) AddPlaylist(ctx context.Context, playlistID string) error {
	items, err := s.playlistItems(ctx, playlistID)
	if err != nil {
		return err
	}
	s.AddSong(items...)
	return nil
}

// Intelligence replaces the queue with entry followed by tracks
// recommended from it, then plays entry.
func (s *serviceImpl) Intelligence(ctx context.Context, entry uuid.UUID) error {
	seed, ok := s.queue.Find(entry)
	if !ok {
		return ErrNotQueued
	}
	tracks, err := s.remote.Recommend(ctx, seed.TrackID, seed.PlaylistID)
	if err != nil {
		s.fail(errmsg.OpIntelligence, seed.TrackID, err)
		return err
	}

	items := make([]queue.Item, 0, len(tracks)+1)
	items = append(items, seed)
	for _, t := range tracks {
		if t.ID == seed.TrackID {
			continue
		}
		items = append(items, queue.NewItem(t, s.cache.Quality(), seed.PlaylistID))
	}
	s.queue.Replace(items...)
	s.queue.Refresh()

	if s.lock.Busy() {
		return nil
	}
	return s.play(ctx, errmsg.OpPlaySong, seed, func() {
		s.queue.Top(seed.Entry)
	})
}

// AddToPlaylist adds the track of entry to a user playlist.
func (s *serviceImpl) AddToPlaylist(ctx context.Context, entry uuid.UUID, playlistID string) error {
	item, ok := s.queue.Find(entry)
	if !ok {
		return ErrNotQueued
	}
	return s.mutatePlaylist(ctx, errmsg.OpPlaylistAddTrack, catalog.OpAdd, playlistID, item.TrackID)
}

// DeleteFromPlaylist removes the track of entry from the playlist it was
// queued from.
func (s *serviceImpl) DeleteFromPlaylist(ctx context.Context, entry uuid.UUID) error {
	item, ok := s.queue.Find(entry)
	if !ok {
		return ErrNotQueued
	}
	if item.PlaylistID == "" {
		return nil
	}
	return s.mutatePlaylist(ctx, errmsg.OpPlaylistRemove, catalog.OpDel, item.PlaylistID, item.TrackID)
}

func (s *serviceImpl) mutatePlaylist(ctx context.Context, op errmsg.Op, pop catalog.PlaylistOp, playlistID, trackID string) error {
	done, err := s.remote.MutatePlaylistTracks(ctx, pop, playlistID, []string{trackID})
	if err != nil {
		s.fail(op, trackID, err)
		return err
	}
	if !done {
		s.logger.Info("playlist not changed", "op", pop, "playlist", playlistID, "track", trackID)
	}
	return nil
}

func (s *serviceImpl) playlistItems(ctx context.Context, playlistID string) ([]queue.Item, error) {
	tracks, err := s.remote.PlaylistTracks(ctx, playlistID)
	if err != nil {
		s.fail(errmsg.OpPlaylistLoad, playlistID, err)
		return nil, err
	}
	return queue.NewItems(tracks, s.cache.Quality(), playlistID), nil
}

// Run advances to the next track each time one plays to its end.
func (s *serviceImpl) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.session.Finished():
			if err := s.Next(ctx); err != nil {
				s.logger.Warn("auto advance failed", "error", err)
			}
		}
	}
}

// play loads target under the load lock. commit moves the queue head once
// the session plays it. A busy lock or a stale load is not an error.
func (s *serviceImpl) play(ctx context.Context, op errmsg.Op, target queue.Item, commit func()) error {
	var previous *queue.Item
	if head, ok := s.queue.Head(); ok {
		previous = &head
	}
	prevState := s.session.State()

	ran, err := s.lock.Do(ctx, func(ctx context.Context) error {
		return s.load(ctx, target)
	})
	switch {
	case !ran:
		return nil
	case errors.Is(err, errStale):
		s.logger.Debug("discarding stale load", "track", target.TrackID)
		return nil
	case err != nil:
		s.fail(op, target.TrackID, err)
		return err
	}

	commit()
	s.queue.Refresh()

	s.broadcast(func(sub *Subscription) {
		sub.sendTrack(TrackChange{Previous: previous, Current: target})
	})
	s.emitStateFrom(prevState)
	return nil
}

// load resolves the audio of item through the cache and starts playing it.
// The cache entry is pinned until the session holds the bytes.
func (s *serviceImpl) load(ctx context.Context, item queue.Item) error {
	key := s.cache.Key(item.TrackID)
	unpin := s.cache.Pin(key)
	defer unpin()

	entry, data, err := s.cache.Fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		return s.download(ctx, item.TrackID)
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}
	if !s.queue.Contains(item.Entry) {
		return errStale
	}

	if err := s.session.Start(ctx); err != nil {
		return fmt.Errorf("start output: %w", err)
	}
	return s.session.Load(ctx, player.Source{
		TrackID: item.TrackID,
		Title:   item.Title,
		Artist:  item.Artist,
		Album:   item.Album,
		Data:    data,
		Format:  entry.Format,
	})
}

func (s *serviceImpl) download(ctx context.Context, trackID string) ([]byte, error) {
	audio, err := s.remote.ResolveAudioSource(ctx, trackID, s.cache.Quality())
	if err != nil {
		return nil, err
	}
	if len(audio.Data) > 0 {
		return audio.Data, nil
	}
	if audio.URL == "" {
		return nil, catalog.ErrNoSource
	}
	return s.remote.Download(ctx, audio.URL)
}

func (s *serviceImpl) stop() {
	prev := s.session.State()
	s.session.Quit()
	s.emitStateFrom(prev)
}

func (s *serviceImpl) fail(op errmsg.Op, trackID string, err error) {
	s.logger.Error("command failed", "op", string(op), "track", trackID, "error", err)
	s.broadcast(func(sub *Subscription) {
		sub.sendError(ErrorEvent{Op: op, TrackID: trackID, Err: err})
	})
}

func (s *serviceImpl) emitStateFrom(prev player.State) {
	e := StateChange{
		Previous: prev,
		Current:  s.session.State(),
		Volume:   s.session.Volume(),
	}
	s.broadcast(func(sub *Subscription) {
		sub.sendState(e)
	})
}

func (s *serviceImpl) broadcast(send func(*Subscription)) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		send(sub)
	}
}

// Subscribe creates a new event subscription.
func (s *serviceImpl) Subscribe() *Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

// Close shuts down the service.
func (s *serviceImpl) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()

	return nil
}
