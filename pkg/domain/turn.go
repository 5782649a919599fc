package domain

import "time"

// Turn is a single utterance of the transcript.
type Turn struct {
	SpeakerID string    `json:"speaker_id" yaml:"speaker_id"`
	Text      string    `json:"text" yaml:"text"`
	TurnIndex int       `json:"turn_index,omitempty" yaml:"turn_index,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// Participant is a conversation party known to the host.
// DisplayName is used to keep participant names out of verification.
type Participant struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// Label identifies one of the two conversation parties.
type Label string

const (
	LabelNone Label = ""
	LabelA    Label = "A"
	LabelB    Label = "B"
)

// Other returns the opposite party. The unassigned label maps to A so that
// the first utterance of a session always belongs to A.
func (l Label) Other() Label {
	if l == LabelA {
		return LabelB
	}
	return LabelA
}

// Valid reports whether l is an assigned label.
func (l Label) Valid() bool {
	return l == LabelA || l == LabelB
}
