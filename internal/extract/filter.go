package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/director/pkg/domain"
)

// stopEntities are generic words that are never worth verifying.
var stopEntities = map[string]struct{}{
	"負荷": {}, "時間": {}, "今日": {}, "明日": {}, "昨日": {}, "世界": {}, "社会": {}, "問題": {}, "方法": {}, "議論": {},
	"情報": {}, "研究": {}, "教育": {}, "経済": {}, "技術": {}, "文化": {}, "日本": {}, "人間": {}, "私": {}, "あなた": {},
	"AI": {}, "IT": {}, "SNS": {}, "CPU": {}, "GPU": {}, "OS": {}, "PC": {}, "NG": {}, "OK": {},
	"会話": {}, "議題": {}, "話題": {}, "テーマ": {}, "意見": {}, "考え": {}, "気持ち": {}, "全部": {}, "本当": {}, "自然": {},
	"数字": {}, "欲求": {}, "結局": {}, "本物": {}, "再現": {}, "データ": {}, "解釈": {},
	"The": {}, "This": {}, "That": {}, "I": {}, "We": {}, "You": {},
}

var (
	honorificSuffixes = []string{"さん", "ちゃん", "くん", "君", "様", "氏", "殿", "せんせい", "先生"}
	honorificPrefixes = []string{"mr.", "mrs.", "ms.", "dr.", "prof.", "mr ", "mrs ", "ms ", "dr ", "prof "}
	fictionKeywords   = []string{"キャラ", "VTuber", "ゆるキャラ", "マスコット", "アバター", "二次元", "推し", "擬人化"}
	orgSuffixes       = []string{"株式会社", "大学", "省", "庁", "政府", "内閣", "党", "新聞", "放送", "病院", "研究所", "学会", "博物館", "神社", "寺", "駅", "Inc", "Corp", "University", "Institute", "Company", "Ltd", "Foundation"}
	prominenceHints   = []string{"有名", "著名", "俳優", "女優", "歌手", "大統領", "首相", "CEO", "創業者", "ノーベル", "受賞", "famous", "president", "founder", "prize"}

	shortAcronym   = regexp.MustCompile(`^[A-Z]{1,3}$`)
	nicknameSuffix = regexp.MustCompile(`(ちゃん|たん|っち|にゃん)$`)
	longKatakana   = regexp.MustCompile(`^[\p{Katakana}ー]{5,}$`)
	alnumMix       = regexp.MustCompile(`[A-Za-z].*[0-9]|[0-9].*[A-Za-z]`)
	hanRun         = regexp.MustCompile(`\p{Han}`)
)

// passes applies the strict candidate filter. Non-person candidates need a
// strong proper-noun signal to be kept.
func passes(name string, t domain.EntityType) bool {
	if name == "" {
		return false
	}
	if _, stop := stopEntities[name]; stop {
		return false
	}
	if shortAcronym.MatchString(name) || nicknameSuffix.MatchString(name) {
		return false
	}
	for _, kw := range fictionKeywords {
		if strings.Contains(name, kw) {
			return false
		}
	}
	switch t {
	case domain.EntityPerson:
		return strings.Contains(name, " ") || (hanRun.MatchString(name) && utf8.RuneCountInString(name) >= 2)
	case domain.EntityEvent, domain.EntityOrg:
		return runeLen(name) >= 3
	}
	for _, suf := range orgSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return longKatakana.MatchString(name) || alnumMix.MatchString(name) || strings.Contains(name, " ")
}

// hasProminenceHint reports whether text hints that a name is notable.
func hasProminenceHint(text string) bool {
	lower := strings.ToLower(text)
	for _, h := range prominenceHints {
		if strings.Contains(lower, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

// NormalizeName strips parenthetical notes and honorifics from a name.
func NormalizeName(name string) string {
	s := strings.TrimSpace(name)
	if i := strings.IndexAny(s, "（("); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	lower := strings.ToLower(s)
	for _, p := range honorificPrefixes {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	for _, suf := range honorificSuffixes {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSuffix(s, suf)
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func participantBases(participants []domain.Participant) map[string]struct{} {
	out := make(map[string]struct{}, 2*len(participants))
	for _, p := range participants {
		for _, n := range []string{p.ID, p.DisplayName} {
			if b := NormalizeName(n); b != "" {
				out[b] = struct{}{}
			}
		}
	}
	return out
}

func isParticipant(name string, bases map[string]struct{}) bool {
	b := NormalizeName(name)
	if b == "" {
		return false
	}
	_, ok := bases[b]
	return ok
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
