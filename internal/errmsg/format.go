// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Playback operations
	OpPlaySong      Op = "play song"
	OpPlayNext      Op = "play next song"
	OpPlayPrevious  Op = "play previous song"
	OpPlaybackStart Op = "start playback"
	OpVolume        Op = "set volume"

	// Queue operations
	OpQueueAdd    Op = "add to queue"
	OpQueueDelete Op = "remove song from queue"

	// Playlist operations
	OpPlaylistList     Op = "load playlists"
	OpPlaylistLoad     Op = "load playlist"
	OpPlaylistAddTrack Op = "add song to playlist"
	OpPlaylistRemove   Op = "remove song from playlist"
	OpIntelligence     Op = "start intelligence mode"

	// Account operations
	OpSignIn     Op = "sign in"
	OpSignOut    Op = "sign out"
	OpDailyCheck Op = "daily check-in"
	OpLike       Op = "update liked songs"

	// Cache operations
	OpCacheOpen   Op = "open cache"
	OpCacheVerify Op = "verify cache"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
