package player

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/llehouerou/go-mp3"
)

// mp3Stream adapts a go-mp3 decoder to beep.StreamSeekCloser. go-mp3
// always yields 16-bit little-endian stereo PCM.
type mp3Stream struct {
	dec *mp3.Decoder
	src io.Closer
	err error
	pcm []byte
}

const mp3FrameBytes = 4 // one stereo sample

func decodeMP3(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	dec, err := mp3.NewDecoder(rc)
	if err != nil {
		return nil, beep.Format{}, err
	}
	if dec.SampleRate() == 0 {
		return nil, beep.Format{}, errors.New("mp3: invalid sample rate")
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(dec.SampleRate()),
		NumChannels: 2,
		Precision:   2,
	}
	return &mp3Stream{dec: dec, src: rc, pcm: make([]byte, 8192)}, format, nil
}

func (s *mp3Stream) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil {
		return 0, false
	}
	want := len(samples) * mp3FrameBytes
	if len(s.pcm) < want {
		s.pcm = make([]byte, want)
	}

	got, err := io.ReadFull(s.dec, s.pcm[:want])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		s.err = err
		return 0, false
	}

	for n = 0; n < got/mp3FrameBytes; n++ {
		off := n * mp3FrameBytes
		left := int16(binary.LittleEndian.Uint16(s.pcm[off:]))    //nolint:gosec // audio samples
		right := int16(binary.LittleEndian.Uint16(s.pcm[off+2:])) //nolint:gosec // audio samples
		samples[n][0] = float64(left) / 32768.0
		samples[n][1] = float64(right) / 32768.0
	}
	return n, n > 0
}

func (s *mp3Stream) Err() error { return s.err }

func (s *mp3Stream) Len() int {
	return int(max(s.dec.SampleCount(), 0))
}

func (s *mp3Stream) Position() int {
	return int(s.dec.SamplePosition())
}

func (s *mp3Stream) Seek(p int) error {
	p = min(max(p, 0), s.Len())
	if err := s.dec.SeekToSample(int64(p)); err != nil {
		return err
	}
	s.err = nil
	return nil
}

func (s *mp3Stream) Close() error {
	return s.src.Close()
}
