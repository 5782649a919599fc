package domain

import (
	"errors"
	"fmt"
	"slices"
)

// Intervention is the category of a Directive.
type Intervention string

const (
	InterventionOfftopicRefocus  Intervention = "offtopic_refocus"
	InterventionFactCheck        Intervention = "fact_check"
	InterventionEntityCorrection Intervention = "entity_correction"
	InterventionSoftAck          Intervention = "soft_ack"
	InterventionRhythm           Intervention = "rhythm"
)

// Interventions lists every category in precedence order.
func Interventions() []Intervention {
	return []Intervention{
		InterventionOfftopicRefocus,
		InterventionFactCheck,
		InterventionEntityCorrection,
		InterventionSoftAck,
		InterventionRhythm,
	}
}

// Valid reports whether i is a known category.
func (i Intervention) Valid() bool {
	return slices.Contains(Interventions(), i)
}

// SpeechAct is the functional style of a turn.
type SpeechAct string

const (
	ActAsk           SpeechAct = "ask"
	ActAnswer        SpeechAct = "answer"
	ActReflect       SpeechAct = "reflect"
	ActAgreeShort    SpeechAct = "agree_short"
	ActDisagreeShort SpeechAct = "disagree_short"
	ActHandoff       SpeechAct = "handoff"
)

// SpeechActs lists every speech act.
func SpeechActs() []SpeechAct {
	return []SpeechAct{ActAsk, ActAnswer, ActReflect, ActAgreeShort, ActDisagreeShort, ActHandoff}
}

// Valid reports whether a is a known speech act.
func (a SpeechAct) Valid() bool {
	return slices.Contains(SpeechActs(), a)
}

// FollowUp hints what the speaker should do after the main speech act.
type FollowUp string

const (
	FollowUpNone    FollowUp = "none"
	FollowUpAskFeel FollowUp = "ask_feel"
)

// ClosingHint steers the conversation towards its end.
type ClosingHint string

const (
	ClosingContinue            ClosingHint = "continue"
	ClosingSummarizeAndHandoff ClosingHint = "summarize_and_handoff"
	ClosingWrapUp              ClosingHint = "wrap_up"
)

// Valid reports whether h is a known closing hint.
func (h ClosingHint) Valid() bool {
	switch h {
	case ClosingContinue, ClosingSummarizeAndHandoff, ClosingWrapUp:
		return true
	}
	return false
}

// BannedPattern is a surface pattern the generator must avoid.
type BannedPattern string

const (
	BanPraise             BannedPattern = "praise"
	BanLongIntro          BannedPattern = "long_intro"
	BanListFormat         BannedPattern = "list_format"
	BanOtherCharacterName BannedPattern = "other_character_name"
	BanSpeakerLabelPrefix BannedPattern = "speaker_label_prefix"
	BanRepeatedQuotation  BannedPattern = "repeated_quotation"
	BanGreeting           BannedPattern = "greeting"
	BanEmoji              BannedPattern = "emoji"
)

// DefaultBans is applied to every rhythm Directive.
func DefaultBans() []BannedPattern {
	return []BannedPattern{BanPraise, BanLongIntro, BanListFormat, BanOtherCharacterName, BanSpeakerLabelPrefix}
}

// ReviewAction is an instruction attached to a correction.
type ReviewAction string

const (
	ActionRequestClarification ReviewAction = "request_clarification"
	ActionAskForMissingSlots   ReviewAction = "ask_for_missing_slots"
	ActionOfferCorrection      ReviewAction = "offer_correction"
	ActionCiteOneSource        ReviewAction = "cite_one_source_if_available"
	ActionOneConciseQuestion   ReviewAction = "one_concise_question"
)

// Degradation names a reason why the engine ran with reduced capability.
type Degradation string

const (
	DegradationMinuteBudget      Degradation = "minute_budget_exhausted"
	DegradationDailyBudget       Degradation = "daily_budget_exhausted"
	DegradationFactCheckDisabled Degradation = "fact_check_disabled"
	DegradationDeadlineExceeded  Degradation = "deadline_exceeded"
	DegradationSourceUnavailable Degradation = "evidence_source_unavailable"
	DegradationLookupFailed      Degradation = "lookup_failed"
	DegradationExtractorFallback Degradation = "extractor_fallback"
	DegradationRecoveredPanic    Degradation = "recovered_panic"
)

// TurnStyle shapes the next utterance.
type TurnStyle struct {
	SpeakerLabel      Label           `json:"speaker_label"`
	MaxChars          int             `json:"max_chars"`
	MaxSentences      int             `json:"max_sentences"`
	FillerEnabled     bool            `json:"filler_enabled"`
	FillerCandidates  []string        `json:"filler_candidates,omitempty"`
	FillerProbability float64         `json:"filler_probability"`
	SpeechAct         SpeechAct       `json:"speech_act"`
	FollowUp          FollowUp        `json:"follow_up"`
	BannedPatterns    []BannedPattern `json:"banned_patterns"`
}

// Cadence carries conversation-level rhythm constraints.
type Cadence struct {
	AvoidConsecutiveMonologues bool       `json:"avoid_consecutive_monologues"`
	QuestionRatioBand          [2]float64 `json:"question_ratio_band"`
	ForcedSwitch               bool       `json:"forced_switch,omitempty"`
}

// ReviewDirectives are short-lived instructions the generator applies for TTLTurns turns.
type ReviewDirectives struct {
	RequiredActions []ReviewAction  `json:"required_actions"`
	Ensure          []ReviewAction  `json:"ensure,omitempty"`
	Avoid           []BannedPattern `json:"avoid,omitempty"`
	ToneHint        string          `json:"tone_hint,omitempty"`
	TTLTurns        int             `json:"ttl_turns"`
	Note            string          `json:"note,omitempty"`
}

// RefocusNote accompanies an offtopic refocus.
type RefocusNote struct {
	Theme       string `json:"theme"`
	ResetPrompt string `json:"reset_prompt"`
}

// OpeningBrief describes the first turn of a conversation.
type OpeningBrief struct {
	Theme       string   `json:"theme"`
	Instruction string   `json:"instruction"`
	FocusPoints []string `json:"focus_points"`
	MinChars    int      `json:"min_chars"`
}

// Directive is the single structured output of one Evaluate call.
type Directive struct {
	Turn         int               `json:"turn"`
	TurnStyle    TurnStyle         `json:"turn_style"`
	Cadence      Cadence           `json:"cadence"`
	ClosingHint  ClosingHint       `json:"closing_hint"`
	Intervention Intervention      `json:"intervention"`
	Reason       string            `json:"reason,omitempty"`
	Review       *ReviewDirectives `json:"review,omitempty"`
	Note         *RefocusNote      `json:"note,omitempty"`
	Opening      *OpeningBrief     `json:"opening,omitempty"`
	Claims       []Claim           `json:"claims,omitempty"`
	Entities     []Entity          `json:"entities,omitempty"`
	Degradations []Degradation     `json:"degradations,omitempty"`
}

// AddDegradation records a reason once.
func (d *Directive) AddDegradation(reason Degradation) {
	if !slices.Contains(d.Degradations, reason) {
		d.Degradations = append(d.Degradations, reason)
	}
}

// Validate checks the structural invariants every emitted Directive holds.
func (d *Directive) Validate() error {
	var errs []error
	if !d.Intervention.Valid() {
		errs = append(errs, fmt.Errorf("unknown intervention %q", d.Intervention))
	}
	if !d.TurnStyle.SpeakerLabel.Valid() {
		errs = append(errs, fmt.Errorf("unassigned speaker label"))
	}
	if !d.TurnStyle.SpeechAct.Valid() {
		errs = append(errs, fmt.Errorf("unknown speech act %q", d.TurnStyle.SpeechAct))
	}
	if d.TurnStyle.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("max chars must be positive, got %d", d.TurnStyle.MaxChars))
	}
	if d.TurnStyle.MaxSentences <= 0 {
		errs = append(errs, fmt.Errorf("max sentences must be positive, got %d", d.TurnStyle.MaxSentences))
	}
	if !d.ClosingHint.Valid() {
		errs = append(errs, fmt.Errorf("unknown closing hint %q", d.ClosingHint))
	}
	if d.Review != nil && d.Review.TTLTurns <= 0 {
		errs = append(errs, fmt.Errorf("review ttl must be positive"))
	}
	return errors.Join(errs...)
}
