package analyzer

import (
	"testing"

	"github.com/aretw0/director/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func turns(pairs ...string) []domain.Turn {
	var out []domain.Turn
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.Turn{SpeakerID: pairs[i], Text: pairs[i+1], TurnIndex: i / 2})
	}
	return out
}

func TestAnalyze_EmptyHistory(t *testing.T) {
	res := Analyze(nil, nil)
	assert.Equal(t, domain.RollingStats{}, res.Stats)
	assert.Empty(t, res.Labels)
}

func TestAnalyze_LabelsFirstSeen(t *testing.T) {
	res := Analyze(turns("bob", "hi", "alice", "hello", "carol", "me too"), nil)
	assert.Equal(t, domain.LabelA, res.Labels["bob"])
	assert.Equal(t, domain.LabelB, res.Labels["alice"])
	assert.NotContains(t, res.Labels, "carol")
}

func TestAnalyze_LabelStability(t *testing.T) {
	prior := map[string]domain.Label{"alice": domain.LabelA, "bob": domain.LabelB}
	// bob speaks first in this window but keeps B
	res := Analyze(turns("bob", "x", "alice", "y"), prior)
	assert.Equal(t, domain.LabelA, res.Labels["alice"])
	assert.Equal(t, domain.LabelB, res.Labels["bob"])
	assert.Equal(t, domain.LabelB, prior["bob"], "input map must not be mutated")
	assert.Len(t, prior, 2)
}

func TestAnalyze_IgnoresThirdParty(t *testing.T) {
	res := Analyze(turns(
		"alice", "12345",
		"bob", "12345",
		"narrator", "a very long third party turn that should not count",
	), nil)
	assert.Equal(t, 5.0, res.Stats.AvgLenLast3)
	assert.Equal(t, "bob", res.Stats.LastSpeakerID)
	assert.Equal(t, domain.LabelB, res.Stats.LastSpeakerLabel)
	assert.Equal(t, 2, res.Stats.ParticipantTurns)
}

func TestAnalyze_AverageUsesRunes(t *testing.T) {
	res := Analyze(turns("alice", "日本語です", "bob", "はい"), nil)
	assert.InDelta(t, 3.5, res.Stats.AvgLenLast3, 1e-9)
}

func TestAnalyze_AverageWindow(t *testing.T) {
	res := Analyze(turns(
		"alice", "aaaaaaaaaaaaaaaaaaaa",
		"bob", "aa",
		"alice", "aaaa",
		"bob", "aaaaaa",
	), nil)
	assert.InDelta(t, 4.0, res.Stats.AvgLenLast3, 1e-9)
}

func TestAnalyze_QuestionRatioWindow(t *testing.T) {
	var ts []domain.Turn
	// two old questions fall out of the window of ten
	ts = append(ts, turns("alice", "why?", "bob", "why?")...)
	for i := 0; i < 8; i++ {
		ts = append(ts, domain.Turn{SpeakerID: []string{"alice", "bob"}[i%2], Text: "fine"})
	}
	ts = append(ts, turns("alice", "really?", "bob", "ok")...)
	res := Analyze(ts, nil)
	assert.InDelta(t, 0.1, res.Stats.QuestionRatio, 1e-9)
}

func TestAnalyze_ConsecutiveStreak(t *testing.T) {
	res := Analyze(turns("alice", "a", "bob", "b", "bob", "c", "bob", "d"), nil)
	assert.Equal(t, 3, res.Stats.ConsecutiveBySpeaker)

	res = Analyze(turns("alice", "a", "bob", "b"), nil)
	assert.Equal(t, 1, res.Stats.ConsecutiveBySpeaker)
}

func TestIsQuestion(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Is that right?", true},
		{"本当？", true},
		{"What a day", true},
		{"I wonder how it works", true},
		{"Do you think so", true},
		{"これはどう思う", true},
		{"なぜそうなる", true},
		{"Somewhere nice", false},
		{"Showhow", false},
		{"It is sunny.", false},
		{"   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsQuestion(tt.text))
		})
	}
}

func TestLastParticipantTurns(t *testing.T) {
	ts := turns("alice", "1", "bob", "2", "narrator", "x", "alice", "3")
	labels := map[string]domain.Label{"alice": domain.LabelA, "bob": domain.LabelB}
	got := LastParticipantTurns(ts, labels, 2)
	assert.Equal(t, []string{"2", "3"}, []string{got[0].Text, got[1].Text})
}
