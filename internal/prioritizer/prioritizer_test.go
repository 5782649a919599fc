package prioritizer

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/director/internal/planner"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

func TestMain(m *testing.M) {
	panicOnUnhandled = true
	m.Run()
}

var labels = map[string]domain.Label{"alice": domain.LabelA, "bob": domain.LabelB}

func newPrioritizer(opts ...Option) *Prioritizer {
	return New(DefaultConfig(), planner.New(planner.DefaultConfig(), rand.New(rand.NewPCG(1, 1))), opts...)
}

func turn(speaker, text string) domain.Turn {
	return domain.Turn{SpeakerID: speaker, Text: text}
}

// input builds an Input whose last speaker is the speaker of the last turn.
func input(n int, theme string, recent ...domain.Turn) Input {
	in := Input{Turn: n, Theme: theme, Recent: recent, Labels: labels}
	if len(recent) > 0 {
		in.Stats = domain.RollingStats{
			LastSpeakerLabel:     labels[recent[len(recent)-1].SpeakerID],
			ConsecutiveBySpeaker: 1,
			ParticipantTurns:     len(recent),
			QuestionRatio:        0.4,
			AvgLenLast3:          60,
		}
	}
	return in
}

var (
	offTopic = []domain.Turn{
		turn("alice", "Yesterday I tried a new ramen shop near the station."),
		turn("bob", "The broth there is rich and the noodles are thick."),
	}
	unknownClaim = domain.Claim{ID: "C1", Text: "Sydney is the capital of Australia.", Type: domain.ClaimFact, Status: domain.VerdictUnknown}
)

func TestOfftopic(t *testing.T) {
	tests := []struct {
		name   string
		theme  string
		recent []domain.Turn
		want   bool
	}{
		{"No theme", "", offTopic, false},
		{"No turns", "education", nil, false},
		{"Unrelated", "education", offTopic, true},
		{"Too short", "education", []domain.Turn{turn("alice", "Ramen?"), turn("bob", "Yes.")}, false},
		{"Mentions theme", "education", []domain.Turn{turn("alice", "Education in Finland starts late, at seven years old.")}, false},
		{"Japanese theme inside text", "教育", []domain.Turn{turn("alice", "日本の教育制度は地域によってかなり違いがあると思うんだよね。")}, false},
		{"Japanese unrelated", "教育", []domain.Turn{turn("alice", "昨日は駅前の新しいラーメン屋に行ってきたけど、スープが濃厚だった。")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Offtopic(tt.theme, tt.recent, 30))
		})
	}
}

func TestSelect_RefocusCooldown(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")

	var got []domain.Intervention
	for n := 1; n <= 7; n++ {
		got = append(got, p.Select(context.Background(), st, input(n, "education", offTopic...)).Intervention)
	}
	assert.Equal(t, []domain.Intervention{
		domain.InterventionOfftopicRefocus,
		domain.InterventionRhythm,
		domain.InterventionRhythm,
		domain.InterventionOfftopicRefocus,
		domain.InterventionRhythm,
		domain.InterventionRhythm,
		domain.InterventionOfftopicRefocus,
	}, got)
	assert.Equal(t, 7, st.LastRefocusEval)
}

func TestSelect_RefocusDirective(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")

	d := p.Select(context.Background(), st, input(4, "education", offTopic...))

	require.NoError(t, d.Validate())
	assert.Equal(t, domain.InterventionOfftopicRefocus, d.Intervention)
	assert.Equal(t, domain.LabelA, d.TurnStyle.SpeakerLabel, "bob spoke last, so alice is asked to refocus")
	assert.Equal(t, domain.ActAsk, d.TurnStyle.SpeechAct)
	assert.Equal(t, 100, d.TurnStyle.MaxChars)
	assert.Equal(t, 2, d.TurnStyle.MaxSentences)
	require.NotNil(t, d.Note)
	assert.Equal(t, "education", d.Note.Theme)
	assert.Contains(t, d.Note.ResetPrompt, "education")
	assert.Equal(t, 4, st.LastRefocusEval)
}

func TestSelect_RefocusBeatsFactCheck(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")
	in := input(5, "education", offTopic...)
	in.Claims = []domain.Claim{unknownClaim}

	d := p.Select(context.Background(), st, in)
	assert.Equal(t, domain.InterventionOfftopicRefocus, d.Intervention)
	assert.Empty(t, st.PendingSoftAcks, "suppressed corrections schedule nothing")
}

func TestSelect_FactCheck(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")
	in := input(3, "", turn("alice", "I heard Sydney is the capital of Australia."))
	in.Claims = []domain.Claim{unknownClaim}

	d := p.Select(context.Background(), st, in)

	require.NoError(t, d.Validate())
	assert.Equal(t, domain.InterventionFactCheck, d.Intervention)
	assert.Equal(t, "claim_unverified", d.Reason)
	assert.Equal(t, domain.LabelB, d.TurnStyle.SpeakerLabel)
	assert.Equal(t, 85, d.TurnStyle.MaxChars)
	assert.Contains(t, d.TurnStyle.BannedPatterns, domain.BanPraise)

	require.NotNil(t, d.Review)
	assert.Equal(t, []domain.ReviewAction{domain.ActionRequestClarification}, d.Review.RequiredActions)
	assert.Equal(t, []domain.ReviewAction{domain.ActionOneConciseQuestion}, d.Review.Ensure)
	assert.Contains(t, d.Review.Avoid, domain.BanRepeatedQuotation)
	assert.Equal(t, 2, d.Review.TTLTurns)

	assert.Equal(t, map[domain.Label]domain.PendingSoftAck{
		domain.LabelA: {TargetLabel: domain.LabelA, RemainingCount: 2, ExpireTurn: 7},
	}, st.PendingSoftAcks)
}

func TestSelect_FactCheckActions(t *testing.T) {
	evidence := []domain.Evidence{{Title: "Australia", URL: "https://en.wikipedia.org/wiki/Australia"}}

	tests := []struct {
		name       string
		claim      domain.Claim
		wantAction []domain.ReviewAction
		wantReason string
		wantChars  int
	}{
		{
			name:       "Missing slots",
			claim:      domain.Claim{Text: "Finland is better at teaching.", Type: domain.ClaimComparison, Status: domain.VerdictUnknown, MissingSlots: []string{"metric"}},
			wantAction: []domain.ReviewAction{domain.ActionAskForMissingSlots},
			wantReason: "claim_unverified",
			wantChars:  85,
		},
		{
			name:       "Contradicted with evidence",
			claim:      domain.Claim{Text: "Sydney is the capital of Australia.", Type: domain.ClaimFact, Status: domain.VerdictFalse, Evidence: evidence},
			wantAction: []domain.ReviewAction{domain.ActionOfferCorrection, domain.ActionCiteOneSource},
			wantReason: "claim_contradicted",
			wantChars:  255,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input(3, "", turn("alice", tt.claim.Text))
			in.Claims = []domain.Claim{tt.claim}
			d := newPrioritizer().Select(context.Background(), domain.NewConversationState("s"), in)

			assert.Equal(t, domain.InterventionFactCheck, d.Intervention)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantAction, d.Review.RequiredActions)
			assert.Equal(t, tt.wantChars, d.TurnStyle.MaxChars)
		})
	}
}

func TestSelect_EntityCorrection(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")
	in := input(2, "", turn("bob", "Professor Zorblax Quentin wrote about that."))
	in.Claims = []domain.Claim{{Text: "true claim", Type: domain.ClaimFact, Status: domain.VerdictTrue}}
	in.Entities = []domain.Entity{
		{Name: "Zorblax Quentin", Type: domain.EntityPerson, Status: domain.VerdictUnknown},
		{Name: "Ada Lovelace", Type: domain.EntityPerson, Status: domain.VerdictTrue},
	}

	d := p.Select(context.Background(), st, in)

	require.NoError(t, d.Validate())
	assert.Equal(t, domain.InterventionEntityCorrection, d.Intervention)
	assert.Equal(t, domain.LabelA, d.TurnStyle.SpeakerLabel)
	assert.Equal(t, 70, d.TurnStyle.MaxChars)
	assert.Equal(t, 1, d.TurnStyle.MaxSentences)
	assert.Equal(t, domain.ActDisagreeShort, d.TurnStyle.SpeechAct)
	assert.Equal(t, []string{"『Zorblax Quentin』は確認が必要かも"}, d.TurnStyle.FillerCandidates)
	assert.Contains(t, st.PendingSoftAcks, domain.LabelB)
}

func TestSelect_VerifiedContentFallsThrough(t *testing.T) {
	in := input(2, "", turn("bob", "Ada Lovelace wrote the first program."))
	in.Entities = []domain.Entity{{Name: "Ada Lovelace", Type: domain.EntityPerson, Status: domain.VerdictTrue}}

	d := newPrioritizer().Select(context.Background(), domain.NewConversationState("s"), in)
	assert.Equal(t, domain.InterventionRhythm, d.Intervention)
}

func TestSelect_CriticMode(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")
	in := input(4, "",
		turn("alice", "Sydney is the capital of Australia, everyone knows that."),
		turn("bob", "Wait, is Sydney really the capital of Australia?"),
	)
	in.Claims = []domain.Claim{unknownClaim}

	d := p.Select(context.Background(), st, in)

	assert.Equal(t, domain.InterventionFactCheck, d.Intervention)
	assert.Equal(t, domain.LabelB, d.TurnStyle.SpeakerLabel, "the questioner keeps the floor")
	assert.Equal(t, domain.ActAsk, d.TurnStyle.SpeechAct)
	assert.Equal(t, domain.FollowUpAskFeel, d.TurnStyle.FollowUp)
	assert.Equal(t, []string{criticFiller}, d.TurnStyle.FillerCandidates)
	assert.Contains(t, st.PendingSoftAcks, domain.LabelA, "the questioned speaker gets the soft-ack")
}

func TestSelect_SoftAckDispatch(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")
	st.PendingSoftAcks[domain.LabelA] = domain.PendingSoftAck{TargetLabel: domain.LabelA, RemainingCount: 2, ExpireTurn: 6}
	recent := turn("bob", "That is a good point about the schools.")

	d := p.Select(context.Background(), st, input(3, "", recent))
	require.NoError(t, d.Validate())
	assert.Equal(t, domain.InterventionSoftAck, d.Intervention)
	assert.Equal(t, domain.LabelA, d.TurnStyle.SpeakerLabel)
	assert.Equal(t, 60, d.TurnStyle.MaxChars)
	assert.Equal(t, domain.ActAgreeShort, d.TurnStyle.SpeechAct)
	assert.Equal(t, softAckFillers, d.TurnStyle.FillerCandidates)
	assert.Equal(t, 1, st.PendingSoftAcks[domain.LabelA].RemainingCount)

	d = p.Select(context.Background(), st, input(4, "", recent))
	assert.Equal(t, domain.InterventionSoftAck, d.Intervention)
	assert.Empty(t, st.PendingSoftAcks)

	d = p.Select(context.Background(), st, input(5, "", recent))
	assert.Equal(t, domain.InterventionRhythm, d.Intervention)
}

func TestSelect_SoftAckOrderAndExpiry(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")
	st.PendingSoftAcks[domain.LabelA] = domain.PendingSoftAck{TargetLabel: domain.LabelA, RemainingCount: 2, ExpireTurn: 3}
	st.PendingSoftAcks[domain.LabelB] = domain.PendingSoftAck{TargetLabel: domain.LabelB, RemainingCount: 1, ExpireTurn: 9}

	d := p.Select(context.Background(), st, input(4, "", turn("alice", "Okay.")))
	assert.Equal(t, domain.InterventionSoftAck, d.Intervention)
	assert.Equal(t, domain.LabelB, d.TurnStyle.SpeakerLabel, "the expired entry for A is never dispatched")
	assert.Empty(t, st.PendingSoftAcks)
}

func TestScheduleSoftAck_MergesByMax(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")
	st.PendingSoftAcks[domain.LabelA] = domain.PendingSoftAck{TargetLabel: domain.LabelA, RemainingCount: 1, ExpireTurn: 10}

	p.scheduleSoftAck(st, domain.LabelA, 3)
	assert.Equal(t, domain.PendingSoftAck{TargetLabel: domain.LabelA, RemainingCount: 2, ExpireTurn: 10}, st.PendingSoftAcks[domain.LabelA])

	p.scheduleSoftAck(st, domain.LabelNone, 3)
	assert.Len(t, st.PendingSoftAcks, 1)
}

func TestSelect_SoftAckBound(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")
	speakers := []string{"alice", "bob"}
	for n := 1; n <= 40; n++ {
		in := input(n, "", turn(speakers[n%2], "Something was said here."))
		if n%5 == 0 {
			in.Claims = []domain.Claim{unknownClaim}
		}
		d := p.Select(context.Background(), st, in)
		require.NoError(t, d.Validate())
		for _, ack := range st.PendingSoftAcks {
			assert.GreaterOrEqual(t, ack.RemainingCount, 0)
		}
		if d.Intervention == domain.InterventionSoftAck {
			assert.LessOrEqual(t, n, 4+5*(n/5), "dispatched after expiry at turn %d", n)
		}
	}
}

func TestAttempt_Exhaustive(t *testing.T) {
	p := newPrioritizer()
	st := domain.NewConversationState("s")
	for _, kind := range domain.Interventions() {
		assert.NotPanics(t, func() {
			p.attempt(context.Background(), kind, st, input(1, ""))
		}, string(kind))
	}
	assert.Panics(t, func() {
		p.attempt(context.Background(), domain.Intervention("bogus"), st, input(1, ""))
	})

	panicOnUnhandled = false
	defer func() { panicOnUnhandled = true }()
	_, ok := p.attempt(context.Background(), domain.Intervention("bogus"), st, input(1, ""))
	assert.False(t, ok)
}

type stubReviewer struct {
	note string
	err  error
}

func (s stubReviewer) ReviewNote(context.Context, string) (string, error) {
	return s.note, s.err
}

func TestSelect_ReviewNote(t *testing.T) {
	in := input(3, "", turn("alice", "Sydney is the capital of Australia."))
	in.Claims = []domain.Claim{unknownClaim}

	d := newPrioritizer(WithReviewer(stubReviewer{note: "首都はキャンベラでは"})).Select(context.Background(), domain.NewConversationState("s"), in)
	assert.Equal(t, "首都はキャンベラでは", d.Review.Note)

	d = newPrioritizer(WithReviewer(stubReviewer{err: errors.New("boom")})).Select(context.Background(), domain.NewConversationState("s"), in)
	assert.Equal(t, domain.InterventionFactCheck, d.Intervention)
	assert.Empty(t, d.Review.Note)
}

type stubCompleter struct {
	out string
	err error
}

func (s stubCompleter) Complete(context.Context, string, string, ports.CompleteOptions) (string, error) {
	return s.out, s.err
}

func TestCompleterReviewer(t *testing.T) {
	r := NewCompleterReviewer(stubCompleter{out: "  まず、首都はキャンベラのはず。\n詳しくは後で。"}, 0, nil)
	note, err := r.ReviewNote(context.Background(), "Sydney is the capital.")
	require.NoError(t, err)
	assert.Equal(t, "首都はキャンベラのはず。", note)

	_, err = NewCompleterReviewer(stubCompleter{err: domain.ErrCollaboratorUnavailable}, 0, nil).ReviewNote(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)

	_, err = NewCompleterReviewer(stubCompleter{out: "   "}, 0, nil).ReviewNote(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)

	denied := func() error { return domain.ErrBudgetExhausted }
	_, err = NewCompleterReviewer(stubCompleter{out: "ok"}, 0, denied).ReviewNote(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)
}
