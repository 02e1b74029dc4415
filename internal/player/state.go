// internal/player/state.go
package player

// State is the playback state of a session.
//
//	┌──────────┐      load       ┌──────────┐
//	│  Stopped │ ───────────────▶│  Playing │
//	└──────────┘                 └──────────┘
//	     ▲                            │ ▲
//	     │ quit / end          toggle │ │ toggle
//	     │                            ▼ │
//	     │                       ┌──────────┐
//	     └───────────────────────│  Paused  │
//	                  quit       └──────────┘
//
// Load from any state replaces the current track and plays it.
// TogglePlay is a no-op while Stopped.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

// String returns the state name for debugging.
func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a track is loaded (Playing or Paused).
func (s State) IsActive() bool {
	return s == Playing || s == Paused
}

// toggled returns the state TogglePlay moves to.
func (s State) toggled() State {
	switch s {
	case Playing:
		return Paused
	case Paused:
		return Playing
	default:
		return s
	}
}
