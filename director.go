package director

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/director/internal/extract"
	"github.com/aretw0/director/internal/governor"
	"github.com/aretw0/director/internal/planner"
	"github.com/aretw0/director/internal/prioritizer"
	"github.com/aretw0/director/internal/verify"
	"github.com/aretw0/director/pkg/adapters/memory"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

const traceScope = "director"

// ExtractionMode selects the extraction chain.
type ExtractionMode string

const (
	// ExtractHeuristic uses pattern matching only.
	ExtractHeuristic ExtractionMode = "heuristic"
	// ExtractSupplement adds LLM candidates to the heuristic ones.
	ExtractSupplement ExtractionMode = "heuristic+llm"
	// ExtractReplace prefers LLM candidates, heuristics remain the fallback.
	ExtractReplace ExtractionMode = "llm"
)

// Valid reports whether m is a known mode.
func (m ExtractionMode) Valid() bool {
	switch m {
	case ExtractHeuristic, ExtractSupplement, ExtractReplace:
		return true
	}
	return false
}

// Request is the input of one Evaluate call.
type Request struct {
	// Turns is the transcript, most recent last.
	Turns []domain.Turn `json:"turns" yaml:"turns"`
	// Theme replaces the session theme when set.
	Theme string `json:"theme,omitempty" yaml:"theme,omitempty"`
	// Participants are added to the known display names.
	Participants []domain.Participant `json:"participants,omitempty" yaml:"participants,omitempty"`
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSessionID names the session owned by the engine.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithState restores a previously saved snapshot.
func WithState(st *domain.ConversationState) Option {
	return func(e *Engine) {
		e.restored = st.Clone()
	}
}

// WithEvidenceSource sets the lookup service used for verification.
func WithEvidenceSource(src ports.EvidenceSource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithCompleter enables LLM extraction and review notes. Unless a mode is
// set explicitly, extraction becomes ExtractSupplement.
func WithCompleter(c ports.Completer) Option {
	return func(e *Engine) {
		e.completer = c
	}
}

// WithExtractionMode selects the extraction chain. LLM modes need a Completer.
func WithExtractionMode(m ExtractionMode) Option {
	return func(e *Engine) {
		e.mode = m
	}
}

// WithVerdictCache replaces the in-memory verdict cache.
func WithVerdictCache(c ports.VerdictCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithGovernor shares a call budget between engines.
func WithGovernor(g *governor.Governor) Option {
	return func(e *Engine) {
		e.gov = g
	}
}

// WithBudget gives the engine its own call budget. Non-positive values
// disable the corresponding limit.
func WithBudget(perMinute, perDay int) Option {
	return func(e *Engine) {
		e.gov = governor.New(perMinute, perDay)
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithThresholds replaces the default tuning.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) {
		e.thresholds = t
	}
}

// WithParticipants registers display names excluded from entity extraction.
func WithParticipants(ps ...domain.Participant) Option {
	return func(e *Engine) {
		e.participants = append(e.participants, ps...)
	}
}

// WithRand injects the randomness used by the rhythm plan.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithSeed makes the rhythm plan reproducible.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed)))
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine directs one conversation. Calls are serialised internally; the
// state is mutated exactly once per Evaluate.
type Engine struct {
	mu    sync.Mutex
	state *domain.ConversationState

	sessionID    string
	restored     *domain.ConversationState
	source       ports.EvidenceSource
	completer    ports.Completer
	mode         ExtractionMode
	cache        ports.VerdictCache
	gov          *governor.Governor
	hooks        domain.LifecycleHooks
	thresholds   Thresholds
	participants []domain.Participant
	rng          *rand.Rand
	now          func() time.Time
	logger       *slog.Logger
	tracer       trace.Tracer

	extractor   extract.Extractor
	verifier    *verify.Verifier
	planner     *planner.Planner
	prioritizer *prioritizer.Prioritizer
}

// New initializes an Engine. Every collaborator is optional.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		thresholds: DefaultThresholds(),
		now:        time.Now,
		tracer:     otel.Tracer(traceScope),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	if e.mode == "" {
		e.mode = ExtractHeuristic
		if e.completer != nil {
			e.mode = ExtractSupplement
		}
	}
	if !e.mode.Valid() {
		return nil, fmt.Errorf("unknown extraction mode %q", e.mode)
	}

	if e.restored != nil {
		e.state = e.restored
		if e.sessionID == "" {
			e.sessionID = e.state.SessionID
		}
		e.state.SessionID = e.sessionID
	} else {
		e.state = domain.NewConversationState(e.sessionID)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.sessionID != "" {
		e.logger = e.logger.With("session_id", e.sessionID)
	}
	if e.cache == nil {
		c, err := memory.NewVerdictCache(memory.DefaultCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create verdict cache: %w", err)
		}
		e.cache = c
	}
	if e.gov == nil {
		e.gov = governor.New(governor.DefaultPerMinute, governor.DefaultPerDay)
	}

	heuristic := extract.NewHeuristic()
	e.extractor = heuristic
	var prioOpts []prioritizer.Option
	if e.completer != nil && e.mode != ExtractHeuristic {
		llmMode := extract.ModeSupplement
		if e.mode == ExtractReplace {
			llmMode = extract.ModeReplace
		}
		e.extractor = extract.NewLLM(heuristic, e.completer,
			extract.WithMode(llmMode),
			extract.WithTimeout(e.thresholds.CallTimeout),
			extract.WithLogger(e.logger),
			extract.WithGate(e.gov.Acquire),
		)
		prioOpts = append(prioOpts, prioritizer.WithReviewer(
			prioritizer.NewCompleterReviewer(e.completer, e.thresholds.CallTimeout, e.gov.Acquire),
		))
	}

	e.verifier = verify.New(
		verify.WithEvidenceSource(e.source),
		verify.WithCache(e.cache),
		verify.WithGovernor(e.gov),
		verify.WithCallTimeout(e.thresholds.CallTimeout),
		verify.WithMaxWorkers(e.thresholds.MaxWorkers),
		verify.WithLogger(e.logger),
		verify.WithLifecycleHooks(e.hooks, e.sessionID),
		verify.WithClock(e.now),
	)
	e.planner = planner.New(e.thresholds.Rhythm, e.rng)
	prioOpts = append(prioOpts, prioritizer.WithLogger(e.logger))
	e.prioritizer = prioritizer.New(e.thresholds.Interventions, e.planner, prioOpts...)

	return e, nil
}

// SessionID returns the session the engine directs.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// State returns a copy of the conversation state.
func (e *Engine) State() *domain.ConversationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Reset starts the conversation over and clears the verdict cache and
// pending soft acknowledgments. Call budgets are not refunded.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = domain.NewConversationState(e.sessionID)
	if err := e.cache.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset verdict cache: %w", err)
	}
	e.logger.Info("session reset")
	return nil
}

// Opening returns the Directive for the first turn of a conversation.
// A non-empty theme becomes the session theme.
func (e *Engine) Opening(theme string, first domain.Label) domain.Directive {
	e.mu.Lock()
	defer e.mu.Unlock()
	if theme != "" {
		e.state.Theme = theme
	}
	return e.planner.Opening(e.state.Theme, first)
}

// ShouldEnd reports whether the conversation has run its course, and why.
func (e *Engine) ShouldEnd() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.planner.ShouldEnd(e.state.TurnCounter, e.state.Stats.QuestionRatio)
}

// Stats summarises interventions and external call usage.
type Stats struct {
	SessionID       string                      `json:"session_id"`
	Turn            int                         `json:"turn"`
	Phase           domain.Phase                `json:"phase"`
	Interventions   map[domain.Intervention]int `json:"interventions"`
	PendingSoftAcks int                         `json:"pending_soft_acks"`
	Usage           governor.Usage              `json:"usage"`
}

// Stats returns the current intervention counts and budget usage.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	counts := maps.Clone(e.state.InterventionCounts)
	if counts == nil {
		counts = make(map[domain.Intervention]int)
	}
	return Stats{
		SessionID:       e.sessionID,
		Turn:            e.state.TurnCounter,
		Phase:           e.state.Phase,
		Interventions:   counts,
		PendingSoftAcks: len(e.state.PendingSoftAcks),
		Usage:           e.gov.Usage(),
	}
}
