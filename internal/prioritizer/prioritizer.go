// Package prioritizer selects the single intervention of a turn.
//
// Candidates are tried in the order of domain.Interventions and the first
// one that applies wins: offtopic refocus, fact check, entity correction,
// soft acknowledgment, then the rhythm plan, which always applies.
package prioritizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/director/internal/planner"
	"github.com/aretw0/director/internal/textutil"
	"github.com/aretw0/director/pkg/domain"
)

// Config holds the intervention thresholds.
type Config struct {
	OfftopicMinChars    int `yaml:"offtopic_min_chars" json:"offtopic_min_chars"`
	RefocusCooldown     int `yaml:"refocus_cooldown" json:"refocus_cooldown"`
	SoftAckMaxReminders int `yaml:"soft_ack_max_reminders" json:"soft_ack_max_reminders"`
	SoftAckExpireWindow int `yaml:"soft_ack_expire_window" json:"soft_ack_expire_window"`
	ReviewTTL           int `yaml:"review_ttl" json:"review_ttl"`

	// Corrections backed by evidence get MaxChars*CorrectionScale, capped.
	CorrectionScale int `yaml:"correction_scale" json:"correction_scale"`
	CorrectionCap   int `yaml:"correction_cap" json:"correction_cap"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		OfftopicMinChars:    30,
		RefocusCooldown:     3,
		SoftAckMaxReminders: 2,
		SoftAckExpireWindow: 4,
		ReviewTTL:           2,
		CorrectionScale:     3,
		CorrectionCap:       260,
	}
}

// Input is everything the prioritizer looks at for one turn.
type Input struct {
	// Turn is the counter value of the evaluation being decided.
	Turn  int
	Theme string

	// Recent holds the last two participant turns, oldest first.
	Recent []domain.Turn
	Labels map[string]domain.Label
	Stats  domain.RollingStats

	// Claims and Entities carry their verdicts.
	Claims   []domain.Claim
	Entities []domain.Entity
}

func (in Input) labelOf(t domain.Turn) domain.Label {
	return in.Labels[t.SpeakerID]
}

// Option configures a Prioritizer.
type Option func(*Prioritizer)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prioritizer) {
		p.logger = logger
	}
}

// WithReviewer enables one-line review notes on fact checks.
func WithReviewer(r Reviewer) Option {
	return func(p *Prioritizer) {
		p.reviewer = r
	}
}

// Prioritizer holds no per-session state; everything it mutates lives in
// the ConversationState passed to Select.
type Prioritizer struct {
	cfg      Config
	planner  *planner.Planner
	reviewer Reviewer
	logger   *slog.Logger
}

// New creates a Prioritizer that falls back to pl.
func New(cfg Config, pl *planner.Planner, opts ...Option) *Prioritizer {
	p := &Prioritizer{
		cfg:     cfg,
		planner: pl,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// panicOnUnhandled turns a missing switch arm into a panic. Tests enable it.
var panicOnUnhandled = false

// Select returns the Directive for the turn and updates the soft-ack and
// refocus bookkeeping in st.
func (p *Prioritizer) Select(ctx context.Context, st *domain.ConversationState, in Input) domain.Directive {
	PurgeSoftAcks(st, in.Turn)
	for _, kind := range domain.Interventions() {
		if d, ok := p.attempt(ctx, kind, st, in); ok {
			return d
		}
	}
	return p.planner.Plan(in.Turn, in.Stats)
}

func (p *Prioritizer) attempt(ctx context.Context, kind domain.Intervention, st *domain.ConversationState, in Input) (domain.Directive, bool) {
	switch kind {
	case domain.InterventionOfftopicRefocus:
		return p.refocus(st, in)
	case domain.InterventionFactCheck:
		return p.correction(ctx, st, in, false)
	case domain.InterventionEntityCorrection:
		return p.correction(ctx, st, in, true)
	case domain.InterventionSoftAck:
		return p.softAck(st, in)
	case domain.InterventionRhythm:
		return p.planner.Plan(in.Turn, in.Stats), true
	default:
		if panicOnUnhandled {
			panic(fmt.Sprintf("prioritizer: unhandled intervention %q", kind))
		}
		p.logger.Error("unhandled intervention", "intervention", kind)
		return domain.Directive{}, false
	}
}

// Offtopic reports whether the recent turns share no key token with the
// theme while being long enough to judge.
func Offtopic(theme string, recent []domain.Turn, minChars int) bool {
	themeKeys := textutil.KeyTokens(theme)
	if len(themeKeys) == 0 || len(recent) == 0 {
		return false
	}
	length := 0
	text := ""
	for _, t := range recent {
		length += textutil.Len(t.Text)
		text += " " + t.Text
	}
	if length < minChars {
		return false
	}
	return !textutil.ContainsAnyToken(text, themeKeys)
}

func (p *Prioritizer) refocus(st *domain.ConversationState, in Input) (domain.Directive, bool) {
	if !Offtopic(in.Theme, in.Recent, p.cfg.OfftopicMinChars) {
		return domain.Directive{}, false
	}
	if st.LastRefocusEval > 0 && in.Turn-st.LastRefocusEval < p.cfg.RefocusCooldown {
		return domain.Directive{}, false
	}
	st.LastRefocusEval = in.Turn

	d := p.base(in, domain.InterventionOfftopicRefocus, "no_theme_overlap")
	d.TurnStyle = domain.TurnStyle{
		SpeakerLabel:      in.Stats.LastSpeakerLabel.Other(),
		MaxChars:          100,
		MaxSentences:      2,
		FillerEnabled:     true,
		FillerCandidates:  []string{fmt.Sprintf("本筋に戻そう。テーマ『%s』の中で一つに絞って話そう", in.Theme)},
		FillerProbability: 1,
		SpeechAct:         domain.ActAsk,
		FollowUp:          domain.FollowUpNone,
		BannedPatterns:    []domain.BannedPattern{domain.BanLongIntro, domain.BanListFormat, domain.BanPraise},
	}
	d.Note = &domain.RefocusNote{
		Theme:       in.Theme,
		ResetPrompt: fmt.Sprintf("じゃあ『%s』で、いちばん気になる論点は？", in.Theme),
	}
	return d, true
}

// base fills the fields shared by every intervention Directive.
func (p *Prioritizer) base(in Input, kind domain.Intervention, reason string) domain.Directive {
	return domain.Directive{
		Turn: in.Turn,
		Cadence: domain.Cadence{
			AvoidConsecutiveMonologues: true,
			QuestionRatioBand:          p.planner.Config().QuestionRatioBand,
		},
		ClosingHint:  domain.ClosingContinue,
		Intervention: kind,
		Reason:       reason,
	}
}
