package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/llehouerou/cloudwaves/internal/catalog"
)

// Key identifies cached audio: a track at a quality tier.
type Key string

// NewKey builds the key of trackID at quality q.
func NewKey(trackID string, q catalog.Quality) Key {
	return Key(trackID + "@" + q.Bitrate())
}

// Split returns the track ID and quality encoded in the key.
func (k Key) Split() (trackID string, q catalog.Quality, ok bool) {
	i := strings.LastIndexByte(string(k), '@')
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(string(k[i+1:]))
	if err != nil || !catalog.Quality(n).Valid() {
		return "", 0, false
	}
	return string(k[:i]), catalog.Quality(n), true
}

// Quality returns the tier of the key, or 0 if the key is malformed.
func (k Key) Quality() catalog.Quality {
	_, q, _ := k.Split()
	return q
}

// Entry describes one cached blob.
type Entry struct {
	Key       Key
	Integrity string // "sha512-<base64 digest>"
	Size      int64
	Format    string // audio container, empty when unknown
	StoredAt  time.Time
}
