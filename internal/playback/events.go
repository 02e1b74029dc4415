package playback

import (
	"github.com/llehouerou/cloudwaves/internal/errmsg"
	"github.com/llehouerou/cloudwaves/internal/player"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

// StateChange is emitted when the session state changes through a command.
type StateChange struct {
	Previous player.State
	Current  player.State
	Volume   int
}

// TrackChange is emitted when a load succeeded and the queue head moved to
// the loaded item.
//
// Emitted by PlaySong, Next, Previous, the delete-head reload, playlist
// playback and automatic advance at the end of a track. Not emitted for a
// load that was discarded because its item left the queue.
type TrackChange struct {
	Previous *queue.Item
	Current  queue.Item
}

// LikeChange is emitted when the like status of a track was updated.
type LikeChange struct {
	TrackID string
	Liked   bool
}

// ErrorEvent is emitted when a command fails.
type ErrorEvent struct {
	Op      errmsg.Op
	TrackID string // empty when not about a track
	Err     error
}

// Message returns the user-facing text of the error.
func (e ErrorEvent) Message() string {
	return errmsg.FormatWith(e.Op, e.TrackID, e.Err)
}
