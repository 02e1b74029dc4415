// Package keymap defines key bindings and action dispatch for the application.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Action represents a user-triggerable action.
type Action string

const (
	// Global actions
	ActionQuit Action = "quit"
	ActionHelp Action = "help"

	// Playback actions
	ActionPlayPause  Action = "play_pause"
	ActionNextTrack  Action = "next_track"
	ActionPrevTrack  Action = "prev_track"
	ActionVolumeUp   Action = "volume_up"
	ActionVolumeDown Action = "volume_down"
	ActionLike       Action = "like"

	// Queue actions
	ActionMoveUp       Action = "move_up"
	ActionMoveDown     Action = "move_down"
	ActionJumpStart    Action = "jump_start"
	ActionJumpEnd      Action = "jump_end"
	ActionSelect       Action = "select"       // enter - play the item under the cursor
	ActionDelete       Action = "delete"       // d - remove from queue
	ActionClear        Action = "clear"        // c - clear queue and stop
	ActionShuffle      Action = "shuffle"      // r - shuffle queue
	ActionIntelligence Action = "intelligence" // i - play recommendations from the item

	// Playlist actions
	ActionPlaylists Action = "playlists" // tab - toggle the playlist browser
	ActionOpen      Action = "open"      // o - list the tracks of a playlist
	ActionBack      Action = "back"      // esc - leave the track list or picker
	ActionEnqueue   Action = "enqueue"   // a - append a playlist or track to the queue
	ActionSaveTo    Action = "save_to"   // s - add the item to a playlist
	ActionUnlist    Action = "unlist"    // x - remove the item from its playlist
)

// Binding ties an action to its keys and help text.
type Binding struct {
	Action Action
	key.Binding
}

// KeyMap is the full set of bindings. It implements help.KeyMap.
type KeyMap struct {
	bindings []Binding
}

func bind(a Action, help string, keys ...string) Binding {
	return Binding{
		Action:  a,
		Binding: key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help)),
	}
}

// Default returns the standard bindings.
func Default() KeyMap {
	return KeyMap{bindings: []Binding{
		bind(ActionPlayPause, "play/pause", " ", "space"),
		bind(ActionNextTrack, "next", "n", "pgdown"),
		bind(ActionPrevTrack, "previous", "p", "pgup"),
		bind(ActionVolumeUp, "volume +", "+", "="),
		bind(ActionVolumeDown, "volume -", "-"),
		bind(ActionLike, "like", "l"),

		bind(ActionMoveDown, "down", "j", "down"),
		bind(ActionMoveUp, "up", "k", "up"),
		bind(ActionJumpStart, "first", "g", "home"),
		bind(ActionJumpEnd, "last", "G", "end"),
		bind(ActionSelect, "play", "enter"),
		bind(ActionDelete, "remove", "d", "delete"),
		bind(ActionClear, "clear", "c"),
		bind(ActionShuffle, "shuffle", "r"),
		bind(ActionIntelligence, "intelligence", "i"),

		bind(ActionPlaylists, "playlists", "tab"),
		bind(ActionOpen, "open", "o", "right"),
		bind(ActionBack, "back", "esc", "left", "backspace"),
		bind(ActionEnqueue, "enqueue", "a"),
		bind(ActionSaveTo, "save to playlist", "s"),
		bind(ActionUnlist, "remove from playlist", "x"),

		bind(ActionHelp, "help", "?"),
		bind(ActionQuit, "quit", "q", "ctrl+c"),
	}}
}

// Resolve returns the action bound to msg, or empty string if not bound.
func (k KeyMap) Resolve(msg tea.KeyMsg) Action {
	for _, b := range k.bindings {
		if key.Matches(msg, b.Binding) {
			return b.Action
		}
	}
	return ""
}

// Lookup returns the binding of an action.
func (k KeyMap) Lookup(a Action) (Binding, bool) {
	for _, b := range k.bindings {
		if b.Action == a {
			return b, true
		}
	}
	return Binding{}, false
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return k.pick(ActionPlayPause, ActionNextTrack, ActionSelect, ActionLike, ActionPlaylists, ActionHelp, ActionQuit)
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		k.pick(ActionPlayPause, ActionNextTrack, ActionPrevTrack, ActionVolumeUp, ActionVolumeDown, ActionLike),
		k.pick(ActionMoveDown, ActionMoveUp, ActionJumpStart, ActionJumpEnd, ActionSelect),
		k.pick(ActionDelete, ActionClear, ActionShuffle, ActionIntelligence),
		k.pick(ActionPlaylists, ActionOpen, ActionBack, ActionEnqueue, ActionSaveTo, ActionUnlist),
		k.pick(ActionHelp, ActionQuit),
	}
}

func (k KeyMap) pick(actions ...Action) []key.Binding {
	result := make([]key.Binding, 0, len(actions))
	for _, a := range actions {
		if b, ok := k.Lookup(a); ok {
			result = append(result, b.Binding)
		}
	}
	return result
}
