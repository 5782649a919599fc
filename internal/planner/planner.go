// Package planner computes rhythm-only turn styles.
//
// Plan is total: for any statistics it returns a Directive that passes
// domain.Directive.Validate. Randomness comes from an injected source so
// that a fixed seed reproduces the same sequence of styles.
package planner

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/aretw0/director/pkg/domain"
)

// FillerPool is the aizuchi vocabulary offered to the generator.
var FillerPool = []string{
	"うん", "なるほど", "たしかに", "へぇ", "ふむ", "そうか", "ええ", "あー", "うーん",
}

var (
	longTurnChoices = []int{130, 140, 150, 160}
	reflectiveActs  = []domain.SpeechAct{domain.ActReflect, domain.ActAgreeShort, domain.ActHandoff}
	balancedActs    = []domain.SpeechAct{domain.ActAnswer, domain.ActReflect, domain.ActAgreeShort, domain.ActDisagreeShort}
)

// Config holds the rhythm thresholds.
type Config struct {
	QuestionRatioBand [2]float64 `yaml:"question_ratio_band" json:"question_ratio_band"`

	// MaxConsecutive is the streak at which the speaker is forced to switch.
	MaxConsecutive int `yaml:"max_consecutive" json:"max_consecutive"`

	MaxSentences int `yaml:"max_sentences" json:"max_sentences"`

	DefaultChars   int     `yaml:"default_chars" json:"default_chars"`
	ShortChars     int     `yaml:"short_chars" json:"short_chars"`
	GenerousChars  int     `yaml:"generous_chars" json:"generous_chars"`
	ShrinkAboveAvg float64 `yaml:"shrink_above_avg" json:"shrink_above_avg"`
	GrowBelowAvg   float64 `yaml:"grow_below_avg" json:"grow_below_avg"`
	ReflectiveAvg  float64 `yaml:"reflective_avg" json:"reflective_avg"`

	EarlyTurns        int     `yaml:"early_turns" json:"early_turns"`
	EarlyLongTurnProb float64 `yaml:"early_long_turn_prob" json:"early_long_turn_prob"`
	LongTurnProb      float64 `yaml:"long_turn_prob" json:"long_turn_prob"`

	FillerProbability float64 `yaml:"filler_probability" json:"filler_probability"`

	SummarizeTurn int `yaml:"summarize_turn" json:"summarize_turn"`
	WrapUpTurn    int `yaml:"wrap_up_turn" json:"wrap_up_turn"`
	WrapPhaseTurn int `yaml:"wrap_phase_turn" json:"wrap_phase_turn"`
	HardEndTurn   int `yaml:"hard_end_turn" json:"hard_end_turn"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		QuestionRatioBand: [2]float64{0.30, 0.55},
		MaxConsecutive:    2,
		MaxSentences:      3,
		DefaultChars:      95,
		ShortChars:        85,
		GenerousChars:     120,
		ShrinkAboveAvg:    120,
		GrowBelowAvg:      45,
		ReflectiveAvg:     110,
		EarlyTurns:        2,
		EarlyLongTurnProb: 0.55,
		LongTurnProb:      0.22,
		FillerProbability: 0.35,
		SummarizeTurn:     14,
		WrapUpTurn:        18,
		WrapPhaseTurn:     16,
		HardEndTurn:       22,
	}
}

// InBand reports whether ratio lies inside the target question-ratio band.
func (c Config) InBand(ratio float64) bool {
	return ratio >= c.QuestionRatioBand[0] && ratio <= c.QuestionRatioBand[1]
}

// Planner is safe for concurrent use.
type Planner struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Planner. A nil rng draws from a randomly seeded source.
func New(cfg Config, rng *rand.Rand) *Planner {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Planner{cfg: cfg, rng: rng}
}

// Config returns the thresholds in use.
func (p *Planner) Config() Config {
	return p.cfg
}

// Plan returns the rhythm Directive for the given turn.
func (p *Planner) Plan(turn int, stats domain.RollingStats) domain.Directive {
	p.mu.Lock()
	defer p.mu.Unlock()

	act := p.speechAct(stats)
	style := domain.TurnStyle{
		SpeakerLabel:      p.speaker(stats),
		MaxChars:          p.maxChars(turn, stats),
		MaxSentences:      p.cfg.MaxSentences,
		FillerProbability: p.cfg.FillerProbability,
		SpeechAct:         act,
		FollowUp:          FollowUpFor(act),
		BannedPatterns:    domain.DefaultBans(),
	}
	if p.rng.Float64() < p.cfg.FillerProbability {
		style.FillerEnabled = true
		style.FillerCandidates = []string{FillerPool[p.rng.IntN(len(FillerPool))]}
	}

	return domain.Directive{
		Turn:         turn,
		TurnStyle:    style,
		Cadence:      p.Cadence(stats),
		ClosingHint:  p.Closing(turn, stats.QuestionRatio),
		Intervention: domain.InterventionRhythm,
		Reason:       "rhythm_control",
	}
}

// Cadence returns the conversation-level rhythm hints.
func (p *Planner) Cadence(stats domain.RollingStats) domain.Cadence {
	return domain.Cadence{
		AvoidConsecutiveMonologues: true,
		QuestionRatioBand:          p.cfg.QuestionRatioBand,
		ForcedSwitch:               stats.LastSpeakerLabel.Valid() && stats.ConsecutiveBySpeaker >= p.cfg.MaxConsecutive,
	}
}

// FollowUpFor pairs questions with an invitation to share a feeling.
func FollowUpFor(act domain.SpeechAct) domain.FollowUp {
	if act == domain.ActAsk {
		return domain.FollowUpAskFeel
	}
	return domain.FollowUpNone
}

// speaker is the label opposite the last one, A when nobody has spoken.
// Streaks only change whether Cadence reports the switch as forced.
func (p *Planner) speaker(stats domain.RollingStats) domain.Label {
	return stats.LastSpeakerLabel.Other()
}

func (p *Planner) speechAct(stats domain.RollingStats) domain.SpeechAct {
	switch {
	case stats.QuestionRatio < p.cfg.QuestionRatioBand[0]:
		return domain.ActAsk
	case stats.AvgLenLast3 > p.cfg.ReflectiveAvg:
		return reflectiveActs[p.rng.IntN(len(reflectiveActs))]
	default:
		return balancedActs[p.rng.IntN(len(balancedActs))]
	}
}

func (p *Planner) maxChars(turn int, stats domain.RollingStats) int {
	if stats.ParticipantTurns > 0 {
		prob := p.cfg.LongTurnProb
		if turn <= p.cfg.EarlyTurns {
			prob = p.cfg.EarlyLongTurnProb
		}
		if p.rng.Float64() < prob && stats.QuestionRatio <= p.cfg.QuestionRatioBand[1] {
			return longTurnChoices[p.rng.IntN(len(longTurnChoices))]
		}
	}
	switch {
	case stats.AvgLenLast3 > p.cfg.ShrinkAboveAvg:
		return p.cfg.ShortChars
	case stats.AvgLenLast3 > 0 && stats.AvgLenLast3 < p.cfg.GrowBelowAvg:
		return p.cfg.GenerousChars
	default:
		return p.cfg.DefaultChars
	}
}

// Closing escalates from continue to wrap_up. The wrap-up turn is checked
// first so that a late conversation is never only asked to summarize.
func (p *Planner) Closing(turn int, ratio float64) domain.ClosingHint {
	switch {
	case turn >= p.cfg.WrapUpTurn:
		return domain.ClosingWrapUp
	case turn >= p.cfg.SummarizeTurn && p.cfg.InBand(ratio):
		return domain.ClosingSummarizeAndHandoff
	default:
		return domain.ClosingContinue
	}
}

// Phase is flow until WrapPhaseTurn.
func (p *Planner) Phase(turn int) domain.Phase {
	if turn >= p.cfg.WrapPhaseTurn {
		return domain.PhaseWrap
	}
	return domain.PhaseFlow
}

// ShouldEnd reports whether the conversation has run its course.
func (p *Planner) ShouldEnd(turn int, ratio float64) (bool, string) {
	switch {
	case turn >= p.cfg.HardEndTurn:
		return true, "turn_limit"
	case turn >= p.cfg.WrapUpTurn && p.cfg.InBand(ratio):
		return true, "settled_question_ratio"
	default:
		return false, ""
	}
}

// Opening describes the first turn of a conversation on theme.
func (p *Planner) Opening(theme string, first domain.Label) domain.Directive {
	if !first.Valid() {
		first = domain.LabelA
	}
	bans := slices.Concat(domain.DefaultBans(), []domain.BannedPattern{domain.BanGreeting, domain.BanEmoji})
	return domain.Directive{
		Turn: 0,
		TurnStyle: domain.TurnStyle{
			SpeakerLabel:   first,
			MaxChars:       300,
			MaxSentences:   4,
			SpeechAct:      domain.ActAnswer,
			FollowUp:       domain.FollowUpAskFeel,
			BannedPatterns: bans,
		},
		Cadence:      domain.Cadence{AvoidConsecutiveMonologues: true, QuestionRatioBand: p.cfg.QuestionRatioBand},
		ClosingHint:  domain.ClosingContinue,
		Intervention: domain.InterventionRhythm,
		Reason:       "opening",
		Opening: &domain.OpeningBrief{
			Theme:       theme,
			Instruction: "テーマ『" + theme + "』について、挨拶は省き、自然な導入でやや詳しく語り始める。相手が反応しやすい具体例や観点を一つ添え、2〜4文の会話文で。",
			FocusPoints: []string{
				"やや長め (200-300文字)",
				"2〜4文で流れるように",
				"相手が返しやすい問いかけを一つ添える",
				"挨拶や自己紹介はしない",
				"リスト/見出し/絵文字を使わない",
			},
			MinChars: 200,
		},
	}
}
