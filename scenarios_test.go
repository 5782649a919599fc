package director_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/director"
	"github.com/aretw0/director/pkg/domain"
)

func TestScenario_EmptyHistory(t *testing.T) {
	eng := newEngine(t)
	d := eng.Evaluate(context.Background(), director.Request{})

	require.NoError(t, d.Validate())
	assert.Equal(t, domain.LabelA, d.TurnStyle.SpeakerLabel)
	assert.Equal(t, director.DefaultThresholds().Rhythm.DefaultChars, d.TurnStyle.MaxChars)
	assert.Equal(t, domain.InterventionRhythm, d.Intervention)
	assert.Equal(t, domain.ClosingContinue, d.ClosingHint)
}

func TestScenario_ForcedSwitchAfterMonologue(t *testing.T) {
	eng := newEngine(t)
	d := eng.Evaluate(context.Background(), director.Request{Turns: []domain.Turn{
		say("bob", "I have been thinking about this."),
		say("alice", "So have I."),
		say("alice", "And one more thing."),
		say("alice", "Actually, let me finish my point."),
	}})

	assert.Equal(t, domain.LabelA, d.TurnStyle.SpeakerLabel)
	assert.True(t, d.Cadence.ForcedSwitch)
}

func TestScenario_UnverifiableCapitalClaim(t *testing.T) {
	src := newFakeSource()
	eng := newEngine(t, director.WithEvidenceSource(src))
	d := eng.Evaluate(context.Background(), director.Request{Turns: []domain.Turn{
		say("alice", "Sydney is the capital of Australia."),
	}})

	require.Len(t, d.Claims, 1)
	assert.Equal(t, domain.VerdictUnknown, d.Claims[0].Status)
	for _, c := range d.Claims {
		assert.NotEqual(t, domain.VerdictFalse, c.Status)
	}

	assert.Equal(t, domain.InterventionFactCheck, d.Intervention)
	require.NotNil(t, d.Review)
	assert.Contains(t, d.Review.RequiredActions, domain.ActionRequestClarification)
	assert.NotContains(t, d.Review.RequiredActions, domain.ActionOfferCorrection)
	assert.Equal(t, 2, d.Review.TTLTurns)
	assert.LessOrEqual(t, len(src.Calls("")), 2)
}

func TestScenario_OfftopicCooldown(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	req := director.Request{
		Theme: "education",
		Turns: []domain.Turn{
			say("alice", "Yesterday I tried a new ramen shop near the station."),
			say("bob", "The broth there is rich and the noodles are thick."),
		},
	}
	cooldown := director.DefaultThresholds().Interventions.RefocusCooldown

	var got []domain.Intervention
	for range cooldown + 1 {
		got = append(got, eng.Evaluate(ctx, req).Intervention)
	}

	assert.Equal(t, domain.InterventionOfftopicRefocus, got[0])
	for i := 1; i < cooldown; i++ {
		assert.NotEqual(t, domain.InterventionOfftopicRefocus, got[i], "turn %d", i+1)
	}
	assert.Equal(t, domain.InterventionOfftopicRefocus, got[cooldown])
}

func TestScenario_EntityVerifiedOncePerSession(t *testing.T) {
	src := newFakeSource().withPage("Marie Curie", "Marie Curie was a Polish and naturalised-French physicist and chemist.")
	eng := newEngine(t, director.WithEvidenceSource(src))
	ctx := context.Background()

	lines := map[int]string{
		3: "I keep reading about Marie Curie lately.",
		9: "Marie Curie again came up in my book club.",
	}
	var turns []domain.Turn
	for n := 1; n <= 9; n++ {
		speaker := "alice"
		if n%2 == 0 {
			speaker = "bob"
		}
		text, ok := lines[n]
		if !ok {
			text = "hmm, fair enough"
		}
		turns = append(turns, say(speaker, text))
		d := eng.Evaluate(ctx, director.Request{Turns: turns})

		if ok {
			require.Len(t, d.Entities, 1, "turn %d", n)
			assert.Equal(t, domain.VerdictTrue, d.Entities[0].Status, "turn %d", n)
		}
	}

	assert.Equal(t, []string{"summary:Marie Curie"}, src.Calls("Marie Curie"))
}
