package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventEvaluate     EventType = "evaluate"
	EventVerification EventType = "verification"
	EventDegradation  EventType = "degradation"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// EvaluateEvent is emitted once per Evaluate call.
type EvaluateEvent struct {
	EventBase
	Turn         int           `json:"turn"`
	Intervention Intervention  `json:"intervention"`
	Reason       string        `json:"reason,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// VerificationEvent is emitted for every verified claim or entity.
type VerificationEvent struct {
	EventBase
	Subject  string  `json:"subject"`
	Verdict  Verdict `json:"verdict"`
	CacheHit bool    `json:"cache_hit"`
	Calls    int     `json:"calls"`
}

// DegradationEvent is emitted when the engine runs with reduced capability.
type DegradationEvent struct {
	EventBase
	Reason Degradation `json:"reason"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnEvaluate     func(context.Context, *EvaluateEvent)
	OnVerification func(context.Context, *VerificationEvent)
	OnDegradation  func(context.Context, *DegradationEvent)
}

// Merge combines two hook sets; both callbacks run when both are set.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnEvaluate:     chain(h.OnEvaluate, other.OnEvaluate),
		OnVerification: chain(h.OnVerification, other.OnVerification),
		OnDegradation:  chain(h.OnDegradation, other.OnDegradation),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
