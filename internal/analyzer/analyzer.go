// Package analyzer derives rolling statistics from the transcript.
//
// It is pure: given the same turns and label assignments it always returns
// the same result, and it never fails.
package analyzer

import (
	"maps"
	"strings"

	"github.com/aretw0/director/internal/textutil"
	"github.com/aretw0/director/pkg/domain"
)

const (
	lengthWindow   = 3
	questionWindow = 10
)

var questionMarkers = []string{
	"do you think", "どう思う", "なぜ", "どこ", "いつ", "だれ", "何",
}

var questionWords = map[string]struct{}{
	"what": {}, "why": {}, "how": {}, "when": {}, "where": {}, "who": {}, "which": {},
}

// Result is the output of Analyze.
type Result struct {
	Stats domain.RollingStats
	// Labels is the speaker assignment after this transcript, a fresh map.
	Labels map[string]domain.Label
}

// Analyze computes RollingStats over the participant turns.
// Labels are assigned to the first two distinct non-empty speaker IDs in
// first-seen order; existing assignments are never changed. Turns from any
// other speaker are ignored by every metric.
func Analyze(turns []domain.Turn, labels map[string]domain.Label) Result {
	assigned := maps.Clone(labels)
	if assigned == nil {
		assigned = make(map[string]domain.Label)
	}
	for _, t := range turns {
		assign(assigned, t.SpeakerID)
	}

	participant := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if assigned[t.SpeakerID].Valid() {
			participant = append(participant, t)
		}
	}

	res := Result{Labels: assigned}
	if len(participant) == 0 {
		return res
	}

	stats := domain.RollingStats{ParticipantTurns: len(participant)}

	last3 := tail(participant, lengthWindow)
	total := 0
	for _, t := range last3 {
		total += textutil.Len(t.Text)
	}
	stats.AvgLenLast3 = float64(total) / float64(len(last3))

	last10 := tail(participant, questionWindow)
	questions := 0
	for _, t := range last10 {
		if IsQuestion(t.Text) {
			questions++
		}
	}
	stats.QuestionRatio = float64(questions) / float64(len(last10))

	last := participant[len(participant)-1]
	stats.LastSpeakerID = last.SpeakerID
	stats.LastSpeakerLabel = assigned[last.SpeakerID]
	for i := len(participant) - 1; i >= 0; i-- {
		if assigned[participant[i].SpeakerID] != stats.LastSpeakerLabel {
			break
		}
		stats.ConsecutiveBySpeaker++
	}

	res.Stats = stats
	return res
}

func assign(labels map[string]domain.Label, speakerID string) {
	if speakerID == "" {
		return
	}
	if _, ok := labels[speakerID]; ok {
		return
	}
	var hasA, hasB bool
	for _, l := range labels {
		switch l {
		case domain.LabelA:
			hasA = true
		case domain.LabelB:
			hasB = true
		}
	}
	switch {
	case !hasA:
		labels[speakerID] = domain.LabelA
	case !hasB:
		labels[speakerID] = domain.LabelB
	}
}

// IsQuestion reports whether text reads as a question.
func IsQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.ContainsAny(trimmed, "?？") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, m := range questionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && r != '\''
	}) {
		if _, ok := questionWords[w]; ok {
			return true
		}
	}
	return false
}

// LastParticipantTurns returns up to n trailing turns whose speakers hold a label.
func LastParticipantTurns(turns []domain.Turn, labels map[string]domain.Label, n int) []domain.Turn {
	var out []domain.Turn
	for i := len(turns) - 1; i >= 0 && len(out) < n; i-- {
		if labels[turns[i].SpeakerID].Valid() {
			out = append(out, turns[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func tail(turns []domain.Turn, n int) []domain.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
