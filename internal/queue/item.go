package queue

import (
	"github.com/google/uuid"

	"github.com/llehouerou/cloudwaves/internal/catalog"
)

// Item is one track's slot in the queue. Entry identifies the slot, so the
// same track can be queued twice and still be addressed precisely.
type Item struct {
	Entry      uuid.UUID
	TrackID    string
	Quality    catalog.Quality
	PlaylistID string // empty when not queued from a playlist
	Title      string
	Artist     string
	Album      string
}

// NewItem creates a queue slot for a catalog track.
func NewItem(t catalog.Track, q catalog.Quality, playlistID string) Item {
	return Item{
		Entry:      uuid.New(),
		TrackID:    t.ID,
		Quality:    q,
		PlaylistID: playlistID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
	}
}

// NewItems converts catalog tracks to queue slots.
func NewItems(tracks []catalog.Track, q catalog.Quality, playlistID string) []Item {
	result := make([]Item, len(tracks))
	for i := range tracks {
		result[i] = NewItem(tracks[i], q, playlistID)
	}
	return result
}

// Label returns "Artist - Title", or just the title.
func (i Item) Label() string {
	if i.Artist == "" {
		return i.Title
	}
	return i.Artist + " - " + i.Title
}
