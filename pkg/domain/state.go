package domain

import (
	"maps"
	"time"
)

// Phase is the coarse progress marker of a conversation.
type Phase string

const (
	PhaseFlow Phase = "flow" // Normal exchange
	PhaseWrap Phase = "wrap" // Conversation is heading towards its end
)

// RollingStats summarises the recent participant turns.
type RollingStats struct {
	// AvgLenLast3 is the mean rune length of the last three participant turns.
	AvgLenLast3 float64 `json:"avg_len_last3"`

	// QuestionRatio is the share of questions among the last ten participant turns.
	QuestionRatio float64 `json:"question_ratio"`

	// ConsecutiveBySpeaker is the trailing run length of the last speaker.
	ConsecutiveBySpeaker int `json:"consecutive_by_speaker"`

	LastSpeakerID    string `json:"last_speaker_id,omitempty"`
	LastSpeakerLabel Label  `json:"last_speaker_label,omitempty"`

	// ParticipantTurns counts the turns attributed to A or B.
	ParticipantTurns int `json:"participant_turns"`
}

// PendingSoftAck is a scheduled deflection for a corrected party.
type PendingSoftAck struct {
	TargetLabel    Label `json:"target_label"`
	RemainingCount int   `json:"remaining_count"`
	ExpireTurn     int   `json:"expire_turn"`
}

// Active reports whether the entry may still be dispatched at the given turn.
func (p PendingSoftAck) Active(turn int) bool {
	return p.RemainingCount > 0 && turn <= p.ExpireTurn
}

// ConversationState is the per-session snapshot owned by one Engine.
type ConversationState struct {
	SessionID string `json:"session_id"`

	// TurnCounter increases by exactly one per Evaluate call.
	TurnCounter int `json:"turn_counter"`

	// Participants maps speaker IDs to labels, assigned in first-seen order.
	Participants map[string]Label `json:"participants"`

	Stats RollingStats `json:"stats"`
	Phase Phase        `json:"phase"`
	Theme string       `json:"theme,omitempty"`

	PendingSoftAcks map[Label]PendingSoftAck `json:"pending_soft_acks,omitempty"`

	// LastRefocusEval is the TurnCounter of the last refocus; 0 means never.
	LastRefocusEval int `json:"last_refocus_eval"`

	InterventionCounts map[Intervention]int `json:"intervention_counts,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`

	// Sealed carries an encrypted snapshot written by an encrypting store.
	// Engines never set it.
	Sealed string `json:"sealed,omitempty"`
}

// NewConversationState creates a clean state for a session.
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{
		SessionID:          sessionID,
		Participants:       make(map[string]Label),
		Phase:              PhaseFlow,
		PendingSoftAcks:    make(map[Label]PendingSoftAck),
		InterventionCounts: make(map[Intervention]int),
	}
}

// LabelOf returns the label assigned to a speaker, or LabelNone.
func (s *ConversationState) LabelOf(speakerID string) Label {
	if s == nil || s.Participants == nil {
		return LabelNone
	}
	return s.Participants[speakerID]
}

// Clone returns a deep copy of the state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.Participants = maps.Clone(s.Participants)
	c.PendingSoftAcks = maps.Clone(s.PendingSoftAcks)
	c.InterventionCounts = maps.Clone(s.InterventionCounts)
	if c.Participants == nil {
		c.Participants = make(map[string]Label)
	}
	if c.PendingSoftAcks == nil {
		c.PendingSoftAcks = make(map[Label]PendingSoftAck)
	}
	if c.InterventionCounts == nil {
		c.InterventionCounts = make(map[Intervention]int)
	}
	return &c
}
