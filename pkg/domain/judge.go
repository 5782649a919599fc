package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Violation is a style rule broken by a generated utterance.
type Violation string

const (
	ViolationTooLong          Violation = "too_long"
	ViolationTooManySentences Violation = "too_many_sentences"
	ViolationListDetected     Violation = "list_detected"
	ViolationPraiseUsed       Violation = "praise_used"
	ViolationLongIntro        Violation = "long_intro"
)

// Judgement is the result of JudgeText.
type Judgement struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations"`
}

// PraiseWords are flattering phrases banned by BanPraise.
var PraiseWords = []string{
	"素晴らしい", "すごい", "勉強になります", "最高", "素敵", "称賛", "感謝します", "素晴らしかった",
	"great point", "excellent point", "brilliant", "amazing insight", "wonderful",
}

var (
	longIntroPattern   = regexp.MustCompile(`^(?i:ところで|まず|ちなみに|さて|えっと|あのー|まずは|by the way|first of all|well|so)[、,]\s*`)
	listMarkerPattern  = regexp.MustCompile(`(?m)^(?:[-*・]|\d+\.)\s`)
	listStripPattern   = regexp.MustCompile(`(?m)^(?:[-*・]|\d+\.)\s*`)
	sentenceSplitRegex = regexp.MustCompile(`[。.!?！？]+`)
)

// CountSentences returns the number of non-empty sentences in text.
func CountSentences(text string) int {
	n := 0
	for _, s := range sentenceSplitRegex.Split(strings.TrimSpace(text), -1) {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

// JudgeText checks a generated utterance against the surface rules of a Directive.
// Non-positive limits disable the corresponding check.
func JudgeText(text string, maxChars, maxSentences int) Judgement {
	var v []Violation
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		v = append(v, ViolationTooLong)
	}
	if maxSentences > 0 && CountSentences(text) > maxSentences {
		v = append(v, ViolationTooManySentences)
	}
	if listMarkerPattern.MatchString(text) {
		v = append(v, ViolationListDetected)
	}
	lower := strings.ToLower(text)
	for _, w := range PraiseWords {
		if strings.Contains(lower, w) {
			v = append(v, ViolationPraiseUsed)
			break
		}
	}
	if longIntroPattern.MatchString(text) {
		v = append(v, ViolationLongIntro)
	}
	return Judgement{OK: len(v) == 0, Violations: v}
}

// AutoRepair removes the mechanical violations JudgeText detects and trims
// the text to maxChars runes.
func AutoRepair(text string, maxChars int) string {
	text = longIntroPattern.ReplaceAllString(text, "")
	text = listStripPattern.ReplaceAllString(text, "")
	for _, w := range PraiseWords {
		text = replaceFold(text, w, "")
	}
	text = strings.TrimSpace(text)
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		text = strings.TrimRight(string([]rune(text)[:maxChars]), "、, ")
	}
	return text
}

// replaceFold replaces old in s ignoring ASCII case.
func replaceFold(s, old, repl string) string {
	if old == "" {
		return s
	}
	var b strings.Builder
	lower := strings.ToLower(s)
	target := strings.ToLower(old)
	for {
		i := strings.Index(lower, target)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(repl)
		s = s[i+len(old):]
		lower = lower[i+len(target):]
	}
}
