// Package verify checks extracted claims and entities against an Evidence Source.
//
// Verification is conservative: anything short of positive evidence is
// unknown, and false is only returned when a source names a different value.
package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/director/internal/governor"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

const (
	traceScope = "director.verify"

	// maxLookups bounds the external calls per subject.
	maxLookups = 2

	DefaultCallTimeout = 5 * time.Second
	DefaultMaxWorkers  = 4
)

// DefaultTrustedDomains are the hosts whose snippets may confirm statistics.
var DefaultTrustedDomains = []string{
	"wikipedia.org", "go.jp", "gov", "gov.uk", "europa.eu", "who.int", "oecd.org", "worldbank.org", "un.org", "imf.org",
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithEvidenceSource sets the external lookup service.
func WithEvidenceSource(src ports.EvidenceSource) Option {
	return func(v *Verifier) {
		v.source = src
	}
}

// WithCache sets the verdict cache.
func WithCache(c ports.VerdictCache) Option {
	return func(v *Verifier) {
		v.cache = c
	}
}

// WithGovernor gates every external call.
func WithGovernor(g *governor.Governor) Option {
	return func(v *Verifier) {
		v.gov = g
	}
}

// WithCallTimeout bounds each lookup independently.
func WithCallTimeout(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.callTimeout = d
		}
	}
}

// WithMaxWorkers bounds the verification fan-out.
func WithMaxWorkers(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.maxWorkers = n
		}
	}
}

// WithTrustedDomains replaces the statistic whitelist.
func WithTrustedDomains(domains []string) Option {
	return func(v *Verifier) {
		v.trusted = domains
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks, sessionID string) Option {
	return func(v *Verifier) {
		v.hooks = hooks
		v.sessionID = sessionID
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// Verifier is safe for concurrent use.
type Verifier struct {
	source      ports.EvidenceSource
	cache       ports.VerdictCache
	gov         *governor.Governor
	callTimeout time.Duration
	maxWorkers  int
	trusted     []string
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	sessionID   string
	now         func() time.Time
	tracer      trace.Tracer
}

// New creates a Verifier. Without an Evidence Source every verdict is unknown.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		callTimeout: DefaultCallTimeout,
		maxWorkers:  DefaultMaxWorkers,
		trusted:     DefaultTrustedDomains,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
		tracer:      otel.Tracer(traceScope),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Report is the outcome of VerifyAll.
type Report struct {
	Claims       []domain.Claim
	Entities     []domain.Entity
	Degradations []domain.Degradation
}

// outcome is the result of checking one subject.
type outcome struct {
	verdict     domain.Verdict
	evidence    []domain.Evidence
	degradation domain.Degradation
	calls       int
	cacheHit    bool
	cacheable   bool
}

// VerifyAll checks every candidate with bounded parallelism. A failing
// candidate never cancels its siblings. Claims are left unknown when the
// features disable fact checking, and false verdicts become unknown when
// they disable contradiction.
func (v *Verifier) VerifyAll(ctx context.Context, claims []domain.Claim, entities []domain.Entity, features governor.Features) Report {
	rep := Report{
		Claims:   append([]domain.Claim(nil), claims...),
		Entities: append([]domain.Entity(nil), entities...),
	}
	var mu sync.Mutex
	degrade := func(d domain.Degradation) {
		if d == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, have := range rep.Degradations {
			if have == d {
				return
			}
		}
		rep.Degradations = append(rep.Degradations, d)
	}

	var g errgroup.Group
	g.SetLimit(v.maxWorkers)

	if features.FactCheck {
		for i := range rep.Claims {
			g.Go(func() error {
				out := v.guard(func() outcome { return v.checkClaim(ctx, rep.Claims[i]) })
				if out.verdict == domain.VerdictFalse && !features.Contradiction {
					v.logger.Debug("contradiction withheld", "claim", rep.Claims[i].ID)
					out.verdict = domain.VerdictUnknown
				}
				rep.Claims[i].Status = out.verdict
				rep.Claims[i].Evidence = out.evidence
				degrade(out.degradation)
				return nil
			})
		}
	} else if len(rep.Claims) > 0 {
		for i := range rep.Claims {
			rep.Claims[i].Status = domain.VerdictUnknown
		}
		degrade(domain.DegradationFactCheckDisabled)
	}

	if features.EntityCheck {
		for i := range rep.Entities {
			g.Go(func() error {
				out := v.guard(func() outcome { return v.checkEntity(ctx, rep.Entities[i]) })
				rep.Entities[i].Status = out.verdict
				rep.Entities[i].Evidence = out.evidence
				degrade(out.degradation)
				return nil
			})
		}
	}

	_ = g.Wait()
	return rep
}

// guard turns a panicking lookup into an unknown verdict for that candidate only.
func (v *Verifier) guard(check func() outcome) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("verification panicked", "panic", r)
			out = outcome{verdict: domain.VerdictUnknown, degradation: domain.DegradationRecoveredPanic}
		}
	}()
	return check()
}

// VerifyEntity checks a single entity.
func (v *Verifier) VerifyEntity(ctx context.Context, e domain.Entity) (domain.Entity, domain.Degradation) {
	out := v.checkEntity(ctx, e)
	e.Status, e.Evidence = out.verdict, out.evidence
	return e, out.degradation
}

// VerifyClaim checks a single claim.
func (v *Verifier) VerifyClaim(ctx context.Context, c domain.Claim) (domain.Claim, domain.Degradation) {
	out := v.checkClaim(ctx, c)
	c.Status, c.Evidence = out.verdict, out.evidence
	return c, out.degradation
}

func (v *Verifier) checkEntity(ctx context.Context, e domain.Entity) outcome {
	return v.check(ctx, e.Subject(), func(ctx context.Context, l *lookups) outcome {
		return v.lookupEntity(ctx, l, e)
	})
}

func (v *Verifier) checkClaim(ctx context.Context, c domain.Claim) outcome {
	if c.Type == domain.ClaimComparison && len(c.MissingSlots) > 0 {
		return outcome{verdict: domain.VerdictUnknown}
	}
	return v.check(ctx, c.Subject(), func(ctx context.Context, l *lookups) outcome {
		return v.lookupClaim(ctx, l, c)
	})
}

// check wraps a subject lookup with the cache, the source guard, tracing and hooks.
func (v *Verifier) check(ctx context.Context, subject string, run func(context.Context, *lookups) outcome) outcome {
	ctx, span := v.tracer.Start(ctx, "director.verify.subject", trace.WithAttributes(attribute.String("director.subject", subject)))
	defer span.End()

	out := v.resolve(ctx, subject, run)

	span.SetAttributes(
		attribute.String("director.verdict", string(out.verdict)),
		attribute.Bool("director.cache_hit", out.cacheHit),
		attribute.Int("director.calls", out.calls),
	)
	v.logger.Debug("verified", "subject", subject, "verdict", out.verdict, "cache_hit", out.cacheHit, "calls", out.calls)
	if v.hooks.OnVerification != nil {
		v.hooks.OnVerification(ctx, &domain.VerificationEvent{
			EventBase: domain.EventBase{Timestamp: v.now(), Type: domain.EventVerification, SessionID: v.sessionID},
			Subject:   subject,
			Verdict:   out.verdict,
			CacheHit:  out.cacheHit,
			Calls:     out.calls,
		})
	}
	return out
}

func (v *Verifier) resolve(ctx context.Context, subject string, run func(context.Context, *lookups) outcome) outcome {
	if v.cache != nil {
		entry, err := v.cache.Get(ctx, subject)
		switch {
		case err == nil:
			return outcome{verdict: entry.Verdict, evidence: entryEvidence(entry), cacheHit: true}
		case !errors.Is(err, domain.ErrCacheMiss):
			v.logger.Warn("verdict cache read failed", "subject", subject, "error", err)
		}
	}

	if v.source == nil {
		return outcome{verdict: domain.VerdictUnknown, degradation: domain.DegradationSourceUnavailable}
	}

	l := &lookups{v: v}
	out := run(ctx, l)
	out.calls = l.calls
	if out.verdict == "" {
		out.verdict = domain.VerdictUnknown
	}
	if l.failure != "" {
		out.degradation = l.failure
	}
	out.cacheable = l.calls > 0 && l.failure == "" && ctx.Err() == nil

	if out.cacheable && v.cache != nil {
		entry := domain.EvidenceCacheEntry{Subject: subject, Verdict: out.verdict, InsertedAt: v.now()}
		if len(out.evidence) > 0 {
			entry.EvidenceURL = out.evidence[0].URL
			entry.EvidenceText = out.evidence[0].Excerpt
		}
		if _, err := v.cache.Put(ctx, entry); err != nil {
			v.logger.Warn("verdict cache write failed", "subject", subject, "error", err)
		}
	}
	return out
}

func entryEvidence(e domain.EvidenceCacheEntry) []domain.Evidence {
	if e.EvidenceURL == "" && e.EvidenceText == "" {
		return nil
	}
	return []domain.Evidence{{URL: e.EvidenceURL, Excerpt: e.EvidenceText}}
}
