package verify

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/aretw0/director/internal/governor"
	"github.com/aretw0/director/internal/textutil"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

const searchLimit = 5

// lookups meters the external calls made for one subject.
type lookups struct {
	v       *Verifier
	calls   int
	failure domain.Degradation
}

// begin reserves one call. It fails once the per-subject bound is reached,
// a previous call failed, or the governor refuses.
func (l *lookups) begin() bool {
	if l.failure != "" || l.calls >= maxLookups {
		return false
	}
	if err := l.v.gov.Acquire(); err != nil {
		var be *governor.BudgetError
		if errors.As(err, &be) {
			l.failure = be.Reason
		} else {
			l.failure = domain.DegradationLookupFailed
		}
		return false
	}
	l.calls++
	return true
}

func (l *lookups) fail(op string, err error) {
	l.v.logger.Warn("evidence lookup failed", "op", op, "error", err)
	l.failure = domain.DegradationLookupFailed
}

func (l *lookups) summary(ctx context.Context, title string) (ports.Summary, bool) {
	if !l.begin() {
		return ports.Summary{}, false
	}
	callCtx, cancel := context.WithTimeout(ctx, l.v.callTimeout)
	defer cancel()
	s, err := l.v.source.FetchSummary(callCtx, title)
	if err != nil {
		l.fail("summary", err)
		return ports.Summary{}, false
	}
	return s, true
}

func (l *lookups) search(ctx context.Context, query string) ([]ports.Snippet, bool) {
	if !l.begin() {
		return nil, false
	}
	callCtx, cancel := context.WithTimeout(ctx, l.v.callTimeout)
	defer cancel()
	snips, err := l.v.source.SearchSnippets(callCtx, query, searchLimit)
	if err != nil {
		l.fail("search", err)
		return nil, false
	}
	return snips, true
}

// lookupEntity: exact title summary first, then a title search.
func (v *Verifier) lookupEntity(ctx context.Context, l *lookups, e domain.Entity) outcome {
	s, ok := l.summary(ctx, e.Name)
	if !ok {
		return outcome{}
	}
	switch s.Kind {
	case ports.SummaryStandard:
		return outcome{verdict: domain.VerdictTrue, evidence: summaryEvidence(s)}
	case ports.SummaryDisambiguation:
		return outcome{verdict: domain.VerdictUnknown, evidence: summaryEvidence(s)}
	}

	snips, ok := l.search(ctx, e.Name)
	if !ok {
		return outcome{}
	}
	for _, sn := range snips {
		if strings.EqualFold(strings.TrimSpace(sn.Title), e.Name) {
			return outcome{verdict: domain.VerdictTrue, evidence: []domain.Evidence{snippetEvidence(sn)}}
		}
	}
	return outcome{verdict: domain.VerdictUnknown}
}

func (v *Verifier) lookupClaim(ctx context.Context, l *lookups, c domain.Claim) outcome {
	if c.Relation != nil {
		return v.lookupRelation(ctx, l, c)
	}
	snips, ok := l.search(ctx, c.Text)
	if !ok {
		return outcome{}
	}
	if c.Type == domain.ClaimStatistic {
		nums := numberPattern.FindAllString(c.Text, -1)
		for _, sn := range snips {
			if v.isTrusted(sn.URL) && containsNumbers(sn.Excerpt, nums) {
				return outcome{verdict: domain.VerdictTrue, evidence: []domain.Evidence{snippetEvidence(sn)}}
			}
		}
		return outcome{verdict: domain.VerdictUnknown}
	}
	tokens := textutil.KeyTokens(c.Text)
	if len(tokens) == 0 {
		return outcome{verdict: domain.VerdictUnknown}
	}
	for _, sn := range snips {
		if containsAll(strings.ToLower(sn.Title+" "+sn.Excerpt), tokens) {
			return outcome{verdict: domain.VerdictTrue, evidence: []domain.Evidence{snippetEvidence(sn)}}
		}
	}
	return outcome{verdict: domain.VerdictUnknown}
}

// lookupRelation reads the object's page first and falls back to a search.
func (v *Verifier) lookupRelation(ctx context.Context, l *lookups, c domain.Claim) outcome {
	rel := *c.Relation
	s, ok := l.summary(ctx, rel.Object)
	if !ok {
		return outcome{}
	}
	if s.Kind == ports.SummaryStandard {
		if verdict := judgeRelation(s.Extract, rel); verdict != domain.VerdictUnknown {
			return outcome{verdict: verdict, evidence: summaryEvidence(s)}
		}
	}

	snips, ok := l.search(ctx, rel.Subject+" "+rel.Role+" "+rel.Object)
	if !ok {
		return outcome{}
	}
	for _, sn := range snips {
		if verdict := judgeRelation(sn.Title+" "+sn.Excerpt, rel); verdict != domain.VerdictUnknown {
			return outcome{verdict: verdict, evidence: []domain.Evidence{snippetEvidence(sn)}}
		}
	}
	return outcome{verdict: domain.VerdictUnknown}
}

var (
	numberPattern = regexp.MustCompile(`\d[\d,.]*\d|\d`)
	hanKatakana   = `[\p{Han}\p{Katakana}ー]+`
	properNoun    = `([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)`
)

// judgeRelation decides "Subject is the Role of Object" against a text about
// Object. It answers only when the text names the holder of the role; false
// means the text names a different holder.
func judgeRelation(text string, rel domain.Relation) domain.Verdict {
	value := roleValue(text, rel.Role)
	switch {
	case value == "":
		return domain.VerdictUnknown
	case sameName(value, rel.Subject):
		return domain.VerdictTrue
	default:
		return domain.VerdictFalse
	}
}

// roleValue finds who holds role in text, or "".
func roleValue(text, role string) string {
	q := regexp.QuoteMeta(role)
	role = `(?i:` + q + `)(?:\s+city)?`
	patterns := []*regexp.Regexp{
		// "the capital of Australia is Canberra"
		regexp.MustCompile(role + `\s+of\s+[^,.;。]+?\s+(?:is|was)\s+` + properNoun),
		// "its capital city is Canberra"
		regexp.MustCompile(role + `\s+(?:is|was)\s+` + properNoun),
		// "Canberra is the nation's capital"
		regexp.MustCompile(properNoun + `\s+(?:is|was)\s+(?:the|its)\s+(?:(?i:nation|country|state)(?:'s|’s)\s+)?` + role + `\b`),
		regexp.MustCompile(q + `(?:は|が)(` + hanKatakana + `)`),
		regexp.MustCompile(`(` + hanKatakana + `)(?:は|が)(?:` + hanKatakana + `の)?` + q),
	}
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimPrefix(strings.TrimSpace(m[1]), "The ")
		}
	}
	return ""
}

func sameName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return la == lb || strings.HasPrefix(la, lb) || strings.HasPrefix(lb, la)
}

func containsAll(text string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(text, p) {
			return false
		}
	}
	return true
}

// containsNumbers matches whole numbers only, so "3" is not found in "2023".
func containsNumbers(text string, nums []string) bool {
	found := make(map[string]bool)
	for _, n := range numberPattern.FindAllString(text, -1) {
		found[n] = true
	}
	for _, n := range nums {
		if !found[n] {
			return false
		}
	}
	return true
}

func (v *Verifier) isTrusted(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range v.trusted {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func summaryEvidence(s ports.Summary) []domain.Evidence {
	return []domain.Evidence{{Title: s.Title, URL: s.URL, Excerpt: s.Extract}}
}

func snippetEvidence(s ports.Snippet) domain.Evidence {
	return domain.Evidence{Title: s.Title, URL: s.URL, Excerpt: s.Excerpt}
}
