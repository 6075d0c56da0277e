package gesture

import (
	"fmt"

	"blueprint-annotator/internal/annotator/models"
)

// ============================================================
// States
// ============================================================

type State int

const (
	// StateIdle: no tool selected; a drag pans, a tap selects.
	StateIdle State = iota
	// StateArmed: a drawing tool is selected and waits for a touch.
	StateArmed
	StatePanning
	StateDrawing
	// StateDropping: a catalog item is being dragged over the screen.
	StateDropping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StatePanning:
		return "panning"
	case StateDrawing:
		return "drawing"
	case StateDropping:
		return "dropping"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateDropping; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown router state %q", text)
}

// Mode is the router state together with the selected shape, which is
// only meaningful while armed or drawing.
type Mode struct {
	State State        `json:"state"`
	Shape models.Shape `json:"shape,omitempty"`
}

// DrawingMode reports whether a drawing tool is selected.
func (m Mode) DrawingMode() bool {
	return m.State == StateArmed || m.State == StateDrawing
}

// ============================================================
// Events
// ============================================================

type EventKind string

const (
	EventDrawingModeChanged EventKind = "drawingModeChanged"
	EventScrollLockChanged  EventKind = "scrollLockChanged"
	EventPageChanged        EventKind = "pageChanged"
	EventAnnotationTapped   EventKind = "annotationTapped"
	EventAnnotationDrawn    EventKind = "annotationDrawn"
	EventAnnotationDropped  EventKind = "annotationDropped"
	EventAnnotationRejected EventKind = "annotationRejected"
	EventDropCancelled      EventKind = "dropCancelled"
)

// Event is what the router hands to its host. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind         EventKind          `json:"kind"`
	DrawingMode  bool               `json:"drawingMode,omitempty"`
	Shape        models.Shape       `json:"shape,omitempty"`
	ScrollLocked bool               `json:"scrollLocked,omitempty"`
	PageID       string             `json:"pageId,omitempty"`
	AnnotationID string             `json:"annotationId,omitempty"`
	Annotation   *models.Annotation `json:"annotation,omitempty"`
	Message      string             `json:"message,omitempty"`
	Err          error              `json:"-"`
}
