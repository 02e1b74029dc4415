// internal/playback/service.go
package playback

import (
	"context"

	"github.com/google/uuid"

	"github.com/llehouerou/cloudwaves/internal/player"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

// Service runs the user commands against the queue, the cache and the
// audio session.
//
// Commands that load a track are single-flight: while a load is in
// progress another loading command returns nil without doing anything.
// Queue mutations are never gated.
type Service interface {
	// Queue navigation. Each loads its target before moving the head, so a
	// failed load leaves the head where it was.
	PlaySong(ctx context.Context, entry uuid.UUID) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error

	// Queue editing
	DeleteSong(ctx context.Context, entry uuid.UUID) error
	ClearQueue()
	RandomQueue()
	AddSong(items ...queue.Item)

	// Session control
	TogglePlay()
	SetVolume(percent int)
	State() player.State
	Volume() int
	Now() *player.TrackInfo

	// Likes
	Like(ctx context.Context) error
	IsLiked(trackID string) bool

	// Playlists
	PlayPlaylist(ctx context.Context, playlistID string) error
	PlaySongWithPlaylist(ctx context.Context, playlistID, trackID string) error
	AddPlaylist(ctx context.Context, playlistID string) error
	Intelligence(ctx context.Context, entry uuid.UUID) error
	AddToPlaylist(ctx context.Context, entry uuid.UUID, playlistID string) error
	DeleteFromPlaylist(ctx context.Context, entry uuid.UUID) error

	// Queue returns the queue the service drives.
	Queue() *queue.Queue

	// Run advances to the next track each time one plays to its end, until
	// ctx is done.
	Run(ctx context.Context)

	// Subscribe returns a subscription to service events.
	Subscribe() *Subscription

	// Close shuts down the service and closes every subscription.
	Close() error
}
