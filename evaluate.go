package director

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/director/internal/analyzer"
	"github.com/aretw0/director/internal/extract"
	"github.com/aretw0/director/internal/prioritizer"
	"github.com/aretw0/director/internal/textutil"
	"github.com/aretw0/director/pkg/domain"
)

// analysis is the outcome of extraction and verification.
type analysis struct {
	claims       []domain.Claim
	entities     []domain.Entity
	degradations []domain.Degradation
	panicked     bool
}

// Evaluate decides the next turn. It always returns a valid Directive:
// collaborator failures, timeouts and budget exhaustion degrade to unknown
// verdicts or to the rhythm plan and are listed in Directive.Degradations.
func (e *Engine) Evaluate(ctx context.Context, req Request) (d domain.Directive) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	e.state.TurnCounter++
	turn := e.state.TurnCounter

	ctx, span := e.tracer.Start(ctx, "director.evaluate", trace.WithAttributes(
		attribute.String("director.session_id", e.sessionID),
		attribute.Int("director.turn", turn),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluate panicked", "panic", r, "stack", string(debug.Stack()))
			d = e.fallback(turn, domain.DegradationRecoveredPanic)
		}
		e.finish(ctx, span, &d, start)
	}()

	return e.evaluate(ctx, turn, req)
}

func (e *Engine) evaluate(ctx context.Context, turn int, req Request) domain.Directive {
	if theme := strings.TrimSpace(req.Theme); theme != "" {
		e.state.Theme = theme
	}
	e.addParticipants(req.Participants)

	turns := cleanTurns(req.Turns)
	res := analyzer.Analyze(turns, e.state.Participants)
	e.state.Participants = res.Labels
	e.state.Stats = res.Stats
	e.state.Phase = e.planner.Phase(turn)

	ctx, cancel := context.WithTimeout(ctx, e.thresholds.EvaluateTimeout)
	defer cancel()

	utterance := latestUtterance(turns, res.Labels)
	participants := e.knownParticipants()
	done := make(chan analysis, 1)
	go func() {
		done <- e.analyse(ctx, utterance, participants)
	}()

	var a analysis
	select {
	case a = <-done:
	case <-ctx.Done():
		e.logger.Warn("evaluation abandoned", "turn", turn, "error", ctx.Err())
		return e.fallback(turn, domain.DegradationDeadlineExceeded)
	}
	if a.panicked {
		return e.fallback(turn, domain.DegradationRecoveredPanic)
	}

	d := e.prioritizer.Select(ctx, e.state, prioritizer.Input{
		Turn:     turn,
		Theme:    e.state.Theme,
		Recent:   analyzer.LastParticipantTurns(turns, res.Labels, 2),
		Labels:   res.Labels,
		Stats:    res.Stats,
		Claims:   a.claims,
		Entities: a.entities,
	})
	d.Turn = turn
	d.Claims = a.claims
	d.Entities = a.entities
	for _, reason := range a.degradations {
		d.AddDegradation(reason)
	}

	if err := d.Validate(); err != nil {
		e.logger.Error("discarding invalid directive", "intervention", d.Intervention, "error", err)
		return e.fallback(turn, "")
	}
	return d
}

// analyse runs extraction and verification. It touches no engine state so
// that it can be abandoned when the deadline passes.
func (e *Engine) analyse(ctx context.Context, utterance string, participants []domain.Participant) (a analysis) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("analysis panicked", "panic", r, "stack", string(debug.Stack()))
			a = analysis{panicked: true}
		}
	}()
	if utterance == "" {
		return a
	}

	ext := e.extractor.Extract(ctx, extract.Input{Text: utterance, Participants: participants})
	a.degradations = append(a.degradations, ext.Degradations...)
	if len(ext.Claims) == 0 && len(ext.Entities) == 0 {
		return a
	}

	rep := e.verifier.VerifyAll(ctx, ext.Claims, ext.Entities, e.gov.Features())
	a.claims = rep.Claims
	a.entities = rep.Entities
	a.degradations = append(a.degradations, rep.Degradations...)
	return a
}

// fallback is the rhythm plan, optionally tagged with why it was used.
func (e *Engine) fallback(turn int, reason domain.Degradation) domain.Directive {
	prioritizer.PurgeSoftAcks(e.state, turn)
	d := e.planner.Plan(turn, e.state.Stats)
	if reason != "" {
		d.AddDegradation(reason)
	}
	return d
}

// finish records the outcome of a call. It runs on every path, including
// recovered panics.
func (e *Engine) finish(ctx context.Context, span trace.Span, d *domain.Directive, start time.Time) {
	d.Turn = e.state.TurnCounter
	if e.state.InterventionCounts == nil {
		e.state.InterventionCounts = make(map[domain.Intervention]int)
	}
	e.state.InterventionCounts[d.Intervention]++
	now := e.now()
	e.state.UpdatedAt = now
	elapsed := now.Sub(start)

	span.SetAttributes(
		attribute.String("director.intervention", string(d.Intervention)),
		attribute.String("director.reason", d.Reason),
		attribute.Int("director.degradations", len(d.Degradations)),
	)
	e.logger.Info("directive emitted",
		"turn", d.Turn,
		"intervention", d.Intervention,
		"reason", d.Reason,
		"speaker", d.TurnStyle.SpeakerLabel,
		"duration", elapsed,
	)

	base := domain.EventBase{Timestamp: now, SessionID: e.sessionID}
	for _, reason := range d.Degradations {
		e.logger.Warn("degraded evaluation", "turn", d.Turn, "reason", reason)
		if e.hooks.OnDegradation != nil {
			ev := base
			ev.Type = domain.EventDegradation
			e.hooks.OnDegradation(ctx, &domain.DegradationEvent{EventBase: ev, Reason: reason})
		}
	}
	if e.hooks.OnEvaluate != nil {
		ev := base
		ev.Type = domain.EventEvaluate
		e.hooks.OnEvaluate(ctx, &domain.EvaluateEvent{
			EventBase:    ev,
			Turn:         d.Turn,
			Intervention: d.Intervention,
			Reason:       d.Reason,
			Duration:     elapsed,
		})
	}
}

func (e *Engine) addParticipants(ps []domain.Participant) {
	for _, p := range ps {
		if p.ID == "" && p.DisplayName == "" {
			continue
		}
		known := false
		for _, have := range e.participants {
			if have.ID == p.ID && have.DisplayName == p.DisplayName {
				known = true
				break
			}
		}
		if !known {
			e.participants = append(e.participants, p)
		}
	}
}

// knownParticipants are the registered display names plus the labelled speaker IDs.
func (e *Engine) knownParticipants() []domain.Participant {
	out := append([]domain.Participant(nil), e.participants...)
	for id := range e.state.Participants {
		out = append(out, domain.Participant{ID: id, DisplayName: id})
	}
	return out
}

func cleanTurns(turns []domain.Turn) []domain.Turn {
	out := make([]domain.Turn, len(turns))
	for i, t := range turns {
		t.SpeakerID = strings.TrimSpace(t.SpeakerID)
		t.Text = textutil.Clean(t.Text)
		out[i] = t
	}
	return out
}

// latestUtterance is the newest non-empty text from a labelled speaker.
func latestUtterance(turns []domain.Turn, labels map[string]domain.Label) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if !labels[turns[i].SpeakerID].Valid() {
			continue
		}
		if text := strings.TrimSpace(turns[i].Text); text != "" {
			return text
		}
	}
	return ""
}
