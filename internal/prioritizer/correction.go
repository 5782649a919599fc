package prioritizer

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/aretw0/director/internal/planner"
	"github.com/aretw0/director/pkg/domain"
)

const (
	criticFiller  = "ちょっと確認だけど…"
	factFiller    = "それ、確認したいかも"
	reviewToneJA  = "端的/助言調"
	maxMentioned  = 2
	entityExample = "%sは確認が必要かも"
)

var correctionMarkers = regexp.MustCompile(`(?i)違|ちが|誤|間違|おかし|本当|ほんとう|根拠|出典|ソース|引用|どこ|ではなく|じゃない|嘘|デマ|検証|確か|wiki|参考|典拠|証拠|actually|not true|are you sure|source|wrong|isn't it|mistaken`)

// SeemsCorrection reports whether text reads as a challenge or question
// about something said earlier.
func SeemsCorrection(text string) bool {
	return correctionMarkers.MatchString(text) || strings.ContainsAny(text, "?？")
}

// correction handles both the fact-check and the entity-correction arm.
// Fact check wins whenever a claim is flagged; entity correction applies
// when only entities are.
func (p *Prioritizer) correction(ctx context.Context, st *domain.ConversationState, in Input, entityOnly bool) (domain.Directive, bool) {
	var claims []domain.Claim
	for _, c := range in.Claims {
		if c.Status.Flagged() {
			claims = append(claims, c)
		}
	}
	var entities []domain.Entity
	for _, e := range in.Entities {
		if e.Status.Flagged() {
			entities = append(entities, e)
		}
	}
	if entityOnly {
		if len(claims) > 0 || len(entities) == 0 {
			return domain.Directive{}, false
		}
	} else if len(claims) == 0 {
		return domain.Directive{}, false
	}
	if len(in.Recent) == 0 {
		return domain.Directive{}, false
	}

	last := in.Recent[len(in.Recent)-1]
	offender := in.labelOf(last)
	target := offender.Other()
	critic := false
	if len(in.Recent) > 1 && SeemsCorrection(last.Text) {
		prev := in.labelOf(in.Recent[len(in.Recent)-2])
		if prev.Valid() && prev != offender {
			critic = true
			target = offender
			offender = prev
		}
	}

	var d domain.Directive
	if entityOnly {
		d = p.base(in, domain.InterventionEntityCorrection, "entity_unverified")
		d.TurnStyle = domain.TurnStyle{
			MaxChars:         70,
			MaxSentences:     1,
			FillerCandidates: []string{mention(entities)},
			SpeechAct:        domain.ActDisagreeShort,
		}
	} else {
		reason := "claim_unverified"
		if slices.ContainsFunc(claims, func(c domain.Claim) bool { return c.Status == domain.VerdictFalse }) {
			reason = "claim_contradicted"
		}
		d = p.base(in, domain.InterventionFactCheck, reason)
		d.TurnStyle = domain.TurnStyle{
			MaxChars:         85,
			MaxSentences:     2,
			FillerCandidates: []string{factFiller},
			SpeechAct:        domain.ActDisagreeShort,
		}
	}
	d.TurnStyle.SpeakerLabel = target
	d.TurnStyle.FillerEnabled = true
	d.TurnStyle.FillerProbability = 1
	d.TurnStyle.BannedPatterns = []domain.BannedPattern{domain.BanPraise, domain.BanListFormat, domain.BanLongIntro}
	if critic {
		d.TurnStyle.SpeechAct = domain.ActAsk
		d.TurnStyle.FillerCandidates = []string{criticFiller}
	}
	d.TurnStyle.FollowUp = planner.FollowUpFor(d.TurnStyle.SpeechAct)

	if hasEvidence(claims, entities) {
		d.TurnStyle.MaxChars = min(d.TurnStyle.MaxChars*p.cfg.CorrectionScale, p.cfg.CorrectionCap)
	}

	d.Review = p.review(claims, entities)
	if !entityOnly && p.reviewer != nil {
		note, err := p.reviewer.ReviewNote(ctx, last.Text)
		if err != nil {
			p.logger.Warn("review note discarded", "error", err)
		} else {
			d.Review.Note = note
		}
	}

	p.scheduleSoftAck(st, offender, in.Turn)
	return d, true
}

func (p *Prioritizer) review(claims []domain.Claim, entities []domain.Entity) *domain.ReviewDirectives {
	var actions []domain.ReviewAction
	add := func(a domain.ReviewAction) {
		if !slices.Contains(actions, a) {
			actions = append(actions, a)
		}
	}
	for _, c := range claims {
		switch {
		case len(c.MissingSlots) > 0:
			add(domain.ActionAskForMissingSlots)
		case c.Status == domain.VerdictFalse:
			add(domain.ActionOfferCorrection)
		default:
			add(domain.ActionRequestClarification)
		}
	}
	for _, e := range entities {
		if e.Status == domain.VerdictFalse {
			add(domain.ActionOfferCorrection)
		} else {
			add(domain.ActionRequestClarification)
		}
	}
	if hasEvidence(claims, entities) {
		add(domain.ActionCiteOneSource)
	}
	return &domain.ReviewDirectives{
		RequiredActions: actions,
		Ensure:          []domain.ReviewAction{domain.ActionOneConciseQuestion},
		Avoid:           []domain.BannedPattern{domain.BanPraise, domain.BanListFormat, domain.BanRepeatedQuotation},
		ToneHint:        reviewToneJA,
		TTLTurns:        p.cfg.ReviewTTL,
	}
}

func hasEvidence(claims []domain.Claim, entities []domain.Entity) bool {
	return slices.ContainsFunc(claims, func(c domain.Claim) bool { return len(c.Evidence) > 0 }) ||
		slices.ContainsFunc(entities, func(e domain.Entity) bool { return len(e.Evidence) > 0 })
}

// mention renders the flagged names the way a speaker would bring them up.
func mention(entities []domain.Entity) string {
	var quoted string
	switch {
	case len(entities) == 0:
		quoted = "いくつかの名前"
	case len(entities) <= maxMentioned:
		for _, e := range entities {
			quoted += "『" + e.Name + "』"
		}
	default:
		quoted = "『" + entities[0].Name + "』ほか"
	}
	return fmt.Sprintf(entityExample, quoted)
}
