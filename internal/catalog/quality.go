package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality selects the audio bitrate tier requested from the catalog.
// Cached audio is partitioned by quality.
type Quality int

const (
	Quality128      Quality = 128000
	Quality192      Quality = 192000
	Quality320      Quality = 320000
	QualityLossless Quality = 999000
)

// DefaultQuality is used when the configuration does not name one.
const DefaultQuality = Quality320

// Qualities lists every supported tier, lowest first.
func Qualities() []Quality {
	return []Quality{Quality128, Quality192, Quality320, QualityLossless}
}

// ParseQuality accepts "128k", "192k", "320k", "lossless" or a bitrate number.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "128k":
		return Quality128, nil
	case "192k":
		return Quality192, nil
	case "320k":
		return Quality320, nil
	case "lossless", "flac":
		return QualityLossless, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown quality %q", s)
	}
	q := Quality(n)
	if !q.Valid() {
		return 0, fmt.Errorf("unsupported bitrate %d", n)
	}
	return q, nil
}

// Valid reports whether q is one of the supported tiers.
func (q Quality) Valid() bool {
	switch q {
	case Quality128, Quality192, Quality320, QualityLossless:
		return true
	}
	return false
}

// String returns the short name ("320k", "lossless").
func (q Quality) String() string {
	switch q {
	case Quality128:
		return "128k"
	case Quality192:
		return "192k"
	case Quality320:
		return "320k"
	case QualityLossless:
		return "lossless"
	default:
		return "unknown"
	}
}

// Bitrate returns the numeric form used on the wire and as the cache folder name.
func (q Quality) Bitrate() string {
	return strconv.Itoa(int(q))
}
