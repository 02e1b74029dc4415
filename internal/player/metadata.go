package player

import (
	"bytes"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// fillFromTags completes the blank fields of info with the embedded tags
// of data. Metadata that came with the source always wins.
func fillFromTags(info *TrackInfo, data []byte) {
	title, artist, album, ok := readTags(data)
	if !ok {
		return
	}
	if info.Title == "" {
		info.Title = title
	}
	if info.Artist == "" {
		info.Artist = artist
	}
	if info.Album == "" {
		info.Album = album
	}
}

func readTags(data []byte) (title, artist, album string, ok bool) {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err == nil {
		return m.Title(), m.Artist(), m.Album(), true
	}
	// dhowden/tag fails on some UTF-16 ID3 frames; id3v2 copes with them.
	t, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil || !t.HasFrames() {
		return "", "", "", false
	}
	return t.Title(), t.Artist(), t.Album(), true
}
