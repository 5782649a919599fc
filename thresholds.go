package director

import (
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/director/internal/planner"
	"github.com/aretw0/director/internal/prioritizer"
	"github.com/aretw0/director/internal/verify"
)

// DefaultEvaluateTimeout bounds a whole Evaluate call.
const DefaultEvaluateTimeout = 12 * time.Second

// Thresholds groups every tunable of the engine.
type Thresholds struct {
	Rhythm        planner.Config     `yaml:"rhythm" json:"rhythm"`
	Interventions prioritizer.Config `yaml:"interventions" json:"interventions"`

	EvaluateTimeout time.Duration `yaml:"evaluate_timeout" json:"evaluate_timeout"`
	CallTimeout     time.Duration `yaml:"call_timeout" json:"call_timeout"`
	MaxWorkers      int           `yaml:"max_workers" json:"max_workers"`
}

// DefaultThresholds returns the standard tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Rhythm:          planner.DefaultConfig(),
		Interventions:   prioritizer.DefaultConfig(),
		EvaluateTimeout: DefaultEvaluateTimeout,
		CallTimeout:     verify.DefaultCallTimeout,
		MaxWorkers:      verify.DefaultMaxWorkers,
	}
}

// Validate reports every inconsistent value at once.
func (t Thresholds) Validate() error {
	var errs []error
	band := t.Rhythm.QuestionRatioBand
	if band[0] < 0 || band[1] > 1 || band[0] > band[1] {
		errs = append(errs, fmt.Errorf("question ratio band %v must be ordered within [0,1]", band))
	}
	if t.Rhythm.MaxSentences <= 0 || t.Rhythm.DefaultChars <= 0 || t.Rhythm.ShortChars <= 0 || t.Rhythm.GenerousChars <= 0 {
		errs = append(errs, errors.New("length targets must be positive"))
	}
	if t.Rhythm.SummarizeTurn > t.Rhythm.WrapUpTurn || t.Rhythm.WrapUpTurn > t.Rhythm.HardEndTurn {
		errs = append(errs, fmt.Errorf("closing turns must be ordered: summarize %d, wrap up %d, hard end %d",
			t.Rhythm.SummarizeTurn, t.Rhythm.WrapUpTurn, t.Rhythm.HardEndTurn))
	}
	for name, p := range map[string]float64{
		"filler_probability":   t.Rhythm.FillerProbability,
		"long_turn_prob":       t.Rhythm.LongTurnProb,
		"early_long_turn_prob": t.Rhythm.EarlyLongTurnProb,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f must be within [0,1]", name, p))
		}
	}
	if t.Interventions.RefocusCooldown < 1 {
		errs = append(errs, errors.New("refocus cooldown must be at least 1"))
	}
	if t.Interventions.SoftAckMaxReminders < 0 || t.Interventions.SoftAckExpireWindow < 0 {
		errs = append(errs, errors.New("soft-ack settings must not be negative"))
	}
	if t.Interventions.ReviewTTL <= 0 {
		errs = append(errs, errors.New("review ttl must be positive"))
	}
	if t.Interventions.CorrectionScale < 1 || t.Interventions.CorrectionCap <= 0 {
		errs = append(errs, errors.New("correction scaling must be positive"))
	}
	if t.EvaluateTimeout <= 0 || t.CallTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if t.MaxWorkers <= 0 {
		errs = append(errs, errors.New("max workers must be positive"))
	}
	return errors.Join(errs...)
}
