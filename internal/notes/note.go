package notes

import (
	"sort"
	"time"
)

// Defaults applied to notes created on this device.
const (
	DefaultTitle = "New note"
	DefaultColor = "#fef3c7"
)

// DefaultWindowState is the position and size given to new notes.
var DefaultWindowState = WindowState{X: 100, Y: 100, Width: 300, Height: 400}

// Note is the unit of synchronization. The JSON form is the wire format of
// the remote sync object.
type Note struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Color       string       `json:"color,omitempty"`
	Deleted     bool         `json:"deleted,omitempty"`
	WindowState *WindowState `json:"window_state,omitempty"`
}

// WindowState is the last known position and size of a note's window.
type WindowState struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Live reports whether the note has not been tombstoned.
func (n Note) Live() bool { return !n.Deleted }

// Tombstone marks the note deleted at the given time.
func (n *Note) Tombstone(at time.Time) {
	n.Deleted = true
	n.UpdatedAt = at
}

// LiveNotes returns the notes that are not tombstoned, most recently updated first.
func LiveNotes(all []Note) []Note {
	live := make([]Note, 0, len(all))
	for _, n := range all {
		if n.Live() {
			live = append(live, n)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].UpdatedAt.After(live[j].UpdatedAt)
	})
	return live
}

func indexOf(all []Note, id string) int {
	for i := range all {
		if all[i].ID == id {
			return i
		}
	}
	return -1
}
