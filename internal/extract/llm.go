package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

// Mode selects how LLM output is combined with the heuristic result.
type Mode string

const (
	// ModeSupplement appends LLM candidates after the heuristic ones.
	ModeSupplement Mode = "supplement"
	// ModeReplace uses only the LLM candidates when the model answers well.
	ModeReplace Mode = "replace"
)

const llmSystemPrompt = `You extract verifiable content from one utterance of a casual two-party conversation.
Return JSON only, exactly this shape:
{"claims":[{"text":string,"type":"fact|statistic|citation|comparison"}],"entities":[{"name":string,"type":"PERSON|ORG|EVENT|OTHER"}]}
Rules: at most 3 claims and 4 entities. Copy claim text from the utterance. Skip opinions, greetings and the speakers' own names. Use empty arrays when nothing qualifies.`

// llmPayload is the strict schema of the model answer.
type llmPayload struct {
	Claims   []llmClaim  `json:"claims"`
	Entities []llmEntity `json:"entities"`
}

type llmClaim struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type llmEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// LLMOption configures an LLM extractor.
type LLMOption func(*LLM)

// WithMode sets how model output is combined with the heuristic result.
func WithMode(m Mode) LLMOption {
	return func(l *LLM) {
		l.mode = m
	}
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) LLMOption {
	return func(l *LLM) {
		l.timeout = d
	}
}

// WithLogger sets the logger for fallback diagnostics.
func WithLogger(logger *slog.Logger) LLMOption {
	return func(l *LLM) {
		l.logger = logger
	}
}

// WithGate installs a function consulted before every model call, typically
// the rate governor. A non-nil error skips the call.
func WithGate(gate func() error) LLMOption {
	return func(l *LLM) {
		l.gate = gate
	}
}

// LLM decorates a heuristic extractor with a language model.
type LLM struct {
	base      *Heuristic
	completer ports.Completer
	mode      Mode
	timeout   time.Duration
	gate      func() error
	logger    *slog.Logger
}

// NewLLM wraps base. A nil completer makes the decorator transparent.
func NewLLM(base *Heuristic, completer ports.Completer, opts ...LLMOption) *LLM {
	l := &LLM{
		base:      base,
		completer: completer,
		mode:      ModeSupplement,
		timeout:   5 * time.Second,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Extract never fails; on any model problem it returns the heuristic result
// with an extractor_fallback degradation.
func (l *LLM) Extract(ctx context.Context, in Input) Result {
	hClaims, hEntities := l.base.Candidates(in.Text)
	fallback := func(reason error) Result {
		l.logger.Warn("llm extraction fell back to heuristics", "error", reason)
		c, e := Finalize(hClaims, hEntities, in.Participants)
		return Result{Claims: c, Entities: e, Degradations: []domain.Degradation{domain.DegradationExtractorFallback}}
	}

	if l.completer == nil {
		c, e := Finalize(hClaims, hEntities, in.Participants)
		return Result{Claims: c, Entities: e}
	}
	if l.gate != nil {
		if err := l.gate(); err != nil {
			return fallback(err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	out, err := l.completer.Complete(callCtx, llmSystemPrompt, "Utterance:\n"+in.Text, ports.CompleteOptions{
		Temperature: 0,
		MaxTokens:   512,
		JSON:        true,
	})
	if err != nil {
		return fallback(fmt.Errorf("%w: %w", domain.ErrCollaboratorUnavailable, err))
	}
	payload, err := decodePayload(out)
	if err != nil {
		return fallback(err)
	}

	lClaims, lEntities := payload.toDomain()
	var claims []domain.Claim
	var entities []domain.Entity
	switch l.mode {
	case ModeReplace:
		claims, entities = lClaims, lEntities
	default:
		claims = append(hClaims, lClaims...)
		entities = append(hEntities, lEntities...)
	}
	c, e := Finalize(claims, entities, in.Participants)
	return Result{Claims: c, Entities: e}
}

// decodePayload parses a model answer against the strict schema. Text around
// the outermost JSON object is ignored and light syntax damage is repaired;
// unknown fields are rejected.
func decodePayload(raw string) (*llmPayload, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object", domain.ErrMalformedOutput)
	}
	body := raw[start : end+1]

	var generic map[string]any
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(body)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedOutput, rerr)
		}
		if err := json.Unmarshal([]byte(repaired), &generic); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedOutput, err)
		}
	}

	var payload llmPayload
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &payload,
		TagName:     "json",
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(generic); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedOutput, err)
	}
	return &payload, nil
}

// toDomain keeps the well-formed items and maps OTHER to the generic entity type.
func (p *llmPayload) toDomain() ([]domain.Claim, []domain.Entity) {
	var claims []domain.Claim
	for _, c := range p.Claims {
		t := domain.ClaimType(strings.ToLower(strings.TrimSpace(c.Type)))
		if !t.Valid() || strings.TrimSpace(c.Text) == "" {
			continue
		}
		claim := domain.Claim{Text: c.Text, Type: t, Status: domain.VerdictUnknown}
		claim.Relation = parseRelation(c.Text)
		if t == domain.ClaimComparison {
			claim.MissingSlots = missingSlots(c.Text)
		}
		claims = append(claims, claim)
	}
	var entities []domain.Entity
	for _, e := range p.Entities {
		t := domain.EntityType(strings.ToUpper(strings.TrimSpace(e.Type)))
		switch t {
		case "OTHER", "TERM", "":
			t = domain.EntityGeneric
		}
		if !t.Valid() || strings.TrimSpace(e.Name) == "" {
			continue
		}
		entities = append(entities, domain.Entity{Name: e.Name, Type: t, Status: domain.VerdictUnknown})
	}
	return claims, entities
}
