package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/aretw0/director/pkg/domain"
)

var (
	relationEN = regexp.MustCompile(`\b([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)\s+(?:is|was)\s+the\s+([a-z]+(?:\s[a-z]+)?)\s+of\s+([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)`)
	relationJA = regexp.MustCompile(`([\p{Han}\p{Katakana}ー]{1,12})は([\p{Han}\p{Katakana}ー]{1,12})の(首都|首相|大統領|作者|創業者|首府|代表|社長|国王|作曲者|監督)`)

	numberPattern   = regexp.MustCompile(`\d`)
	citationPattern = regexp.MustCompile(`(?i)according to|said that|reported that|claims? that|によると|によれば|と言った|と述べ|と書い|[『「"][^』」"]{2,40}[』」"]`)
	comparePattern  = regexp.MustCompile(`(?i)\b(?:more|less|fewer|better|worse|larger|smaller|bigger|higher|lower|faster|slower|older|newer|cheaper)\s+than\b|\b(?:the\s+)?(?:most|least|best|worst|largest|biggest|smallest|highest|lowest|fastest|oldest|richest|poorest)\b|より(?:も)?[多少高低大小良悪早遅]|一番|最も|最大|最小|最高|最低|最多|世界一|日本一`)

	metricPattern     = regexp.MustCompile(`(?i)\d|percent|rate|ratio|population|gdp|income|score|number of|share|revenue|sales|人口|率|割合|数|量|売上|収入|得点|点数|GDP`)
	timeframePattern  = regexp.MustCompile(`(?i)\b(?:1[89]|20)\d{2}\b|\bin the (?:last|past)\b|\bsince\b|\btoday\b|\bcurrently\b|\bnow\b|\bthis year\b|\blast year\b|年|年代|現在|今年|昨年|去年|最近|近年`)
	populationPattern = regexp.MustCompile(`(?i)\bamong\b|\bin the world\b|\bof all\b|\bcountr(?:y|ies)\b|\bstudents\b|\bpeople\b|\bcompanies\b|\bcities\b|\bin (?-i:[A-Z][a-z]+)\b|世界|国内|の中で|全国|県内|市内|学生|人々|企業|都市`)

	eventJA  = regexp.MustCompile(`[\p{Han}]{2,10}の(?:変|乱|戦い|戦争|合戦)|[\p{Han}]{2,10}(?:事件|騒動|大戦|蜂起|革命)`)
	eventEN  = regexp.MustCompile(`\bBattle of [A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*|\b[A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*\s+(?:War|Revolution|Incident)\b`)
	orgEN    = regexp.MustCompile(`\b(?:[A-Z][\w&'-]*\s+)+(?:Inc|Corp|Corporation|University|Institute|Company|Ltd|Foundation|Association)\b\.?|\bUniversity of [A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*`)
	orgJA    = regexp.MustCompile(`株式会社[\p{Han}\p{Katakana}ー]+|[\p{Han}\p{Katakana}ー]{2,10}(?:大学|株式会社|研究所|新聞|省|庁)`)
	personEN = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	personJA = regexp.MustCompile(`([\p{Han}]{2,6})(?:さん|氏|公|卿|殿|様)[がはのをにとへ、。\s]`)
	kanjiJA  = regexp.MustCompile(`([\p{Han}]{2,6})[がはのをにとへ、。\s]`)
	katakana = regexp.MustCompile(`[\p{Katakana}ー]{3,}`)
)

// Heuristic is the pattern-based extractor. It is always available.
type Heuristic struct{}

// NewHeuristic returns the pattern-based extractor.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Extract never fails.
func (h *Heuristic) Extract(_ context.Context, in Input) Result {
	claims, entities := h.Candidates(in.Text)
	c, e := Finalize(claims, entities, in.Participants)
	return Result{Claims: c, Entities: e}
}

// Candidates returns the raw, unfiltered candidates found in text.
func (h *Heuristic) Candidates(text string) ([]domain.Claim, []domain.Entity) {
	return extractClaims(text), extractEntities(text)
}

func extractClaims(text string) []domain.Claim {
	var out []domain.Claim
	for _, s := range SplitSentences(text) {
		if runeLen(s) < minClaimRunes {
			continue
		}
		if c, ok := classify(s); ok {
			out = append(out, c)
		}
	}
	return out
}

// classify assigns the first matching type in priority order:
// statistic, citation, comparison, fact.
func classify(s string) (domain.Claim, bool) {
	c := domain.Claim{Text: s, Status: domain.VerdictUnknown}
	switch {
	case numberPattern.MatchString(s):
		c.Type = domain.ClaimStatistic
	case citationPattern.MatchString(s):
		c.Type = domain.ClaimCitation
	case comparePattern.MatchString(s):
		c.Type = domain.ClaimComparison
		c.MissingSlots = missingSlots(s)
	default:
		rel := parseRelation(s)
		if rel == nil {
			return c, false
		}
		c.Type = domain.ClaimFact
		c.Relation = rel
	}
	if c.Relation == nil {
		c.Relation = parseRelation(s)
	}
	return c, true
}

func parseRelation(s string) *domain.Relation {
	if m := relationEN.FindStringSubmatch(s); m != nil {
		return &domain.Relation{Subject: strings.TrimPrefix(m[1], "The "), Role: m[2], Object: m[3]}
	}
	if m := relationJA.FindStringSubmatch(s); m != nil {
		return &domain.Relation{Subject: m[1], Role: m[3], Object: m[2]}
	}
	return nil
}

// missingSlots lists the comparison slots a sentence leaves unspecified.
func missingSlots(s string) []string {
	var missing []string
	if !metricPattern.MatchString(s) {
		missing = append(missing, "metric")
	}
	if !timeframePattern.MatchString(s) {
		missing = append(missing, "timeframe")
	}
	if !populationPattern.MatchString(s) {
		missing = append(missing, "population")
	}
	return missing
}

func extractEntities(text string) []domain.Entity {
	var out []domain.Entity
	add := func(name string, t domain.EntityType) {
		name = strings.TrimSpace(name)
		if name != "" {
			out = append(out, domain.Entity{Name: name, Type: t, Status: domain.VerdictUnknown})
		}
	}

	for _, m := range eventJA.FindAllString(text, -1) {
		add(m, domain.EntityEvent)
	}
	for _, m := range eventEN.FindAllString(text, -1) {
		add(strings.TrimPrefix(m, "The "), domain.EntityEvent)
	}
	for _, m := range orgEN.FindAllString(text, -1) {
		add(strings.TrimPrefix(m, "The "), domain.EntityOrg)
	}
	for _, m := range orgJA.FindAllString(text, -1) {
		add(m, domain.EntityOrg)
	}
	for _, m := range personEN.FindAllString(text, -1) {
		name := strings.TrimPrefix(m, "The ")
		if strings.Contains(name, " ") {
			add(name, domain.EntityPerson)
		}
	}
	for _, m := range personJA.FindAllStringSubmatch(text, -1) {
		add(m[1], domain.EntityPerson)
	}
	if hasProminenceHint(text) {
		for _, m := range kanjiJA.FindAllStringSubmatch(text, -1) {
			add(m[1], domain.EntityGeneric)
		}
	}
	for _, m := range katakana.FindAllString(text, -1) {
		add(m, domain.EntityGeneric)
	}
	return out
}

// SplitSentences splits text after sentence terminators. A period only ends
// a sentence when followed by whitespace or the end of text, so decimals and
// abbreviations such as "3.5" stay intact.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i, r := range runes {
		switch r {
		case '。', '！', '？', '!', '?', '\n':
			flush(i + 1)
		case '.':
			if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				flush(i + 1)
			}
		}
	}
	flush(len(runes))
	return out
}
