package player

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dhowden/tag"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
)

const (
	formatMP3  = "mp3"
	formatFLAC = "flac"
)

// memFile serves in-memory audio to decoders that want a file.
type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

// sniffFormat names the container of data from its header.
func sniffFormat(data []byte) string {
	_, fileType, err := tag.Identify(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return strings.ToLower(string(fileType))
}

// decode opens a streamer over data. format may be empty, in which case
// the container is sniffed.
func decode(data []byte, format string) (beep.StreamSeekCloser, beep.Format, string, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = sniffFormat(data)
	}
	f := memFile{bytes.NewReader(data)}

	var (
		streamer beep.StreamSeekCloser
		bf       beep.Format
		err      error
	)
	switch format {
	case formatMP3:
		streamer, bf, err = decodeMP3(f)
	case formatFLAC:
		// Some taggers prepend an ID3v2 tag to FLAC files
		if err := skipID3v2(f); err != nil {
			return nil, beep.Format{}, "", err
		}
		streamer, bf, err = flac.Decode(f)
	default:
		return nil, beep.Format{}, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, beep.Format{}, "", fmt.Errorf("decode %s: %w", format, err)
	}
	return streamer, bf, format, nil
}

// skipID3v2 positions r after a leading ID3v2 tag, or at the start when
// there is none.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := io.ReadFull(r, header)
	if err != nil && n == 0 {
		return err
	}
	if n < len(header) || string(header[:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}
	// Tag size is a syncsafe integer: 7 bits per byte.
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
