// Package textutil holds the text helpers shared by the analysis stages.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// Len returns the length of s in runes.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

var tokenSeparators = strings.NewReplacer(
	"、", " ", "。", " ", ".", " ", ",", " ", "!", " ", "！", " ", "?", " ", "？", " ",
	"-", " ", ":", " ", "：", " ", "/", " ", "（", " ", "）", " ", "(", " ", ")", " ",
	"[", " ", "]", " ", "『", " ", "』", " ", "「", " ", "」", " ", "\"", " ", "'", " ",
	";", " ", "；", " ",
)

var stopTokens = map[string]struct{}{
	// Japanese function words
	"こと": {}, "もの": {}, "それ": {}, "これ": {}, "ため": {}, "よう": {}, "とか": {}, "から": {},
	"ので": {}, "です": {}, "ます": {}, "する": {}, "ある": {}, "いる": {}, "場合": {}, "思う": {}, "感じ": {},
	// English function words
	"the": {}, "and": {}, "but": {}, "for": {}, "with": {}, "that": {}, "this": {}, "are": {}, "was": {},
	"were": {}, "you": {}, "your": {}, "have": {}, "has": {}, "had": {}, "not": {}, "its": {}, "it's": {},
	"of": {}, "to": {}, "in": {}, "on": {}, "at": {}, "is": {}, "it": {}, "we": {}, "be": {}, "so": {},
	"an": {}, "or": {}, "as": {}, "by": {}, "do": {}, "if": {}, "my": {}, "me": {}, "about": {},
	"what": {}, "which": {}, "they": {}, "them": {}, "there": {}, "their": {}, "from": {}, "just": {},
	"really": {}, "think": {}, "like": {}, "also": {}, "very": {}, "much": {}, "more": {},
}

// KeyTokens splits s on punctuation and whitespace and keeps lowercase tokens
// of at least two runes that are not function words.
func KeyTokens(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.Fields(tokenSeparators.Replace(strings.ToLower(s)))
	out := fields[:0]
	for _, f := range fields {
		if Len(f) < 2 {
			continue
		}
		if _, stop := stopTokens[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ContainsAnyToken reports whether any token occurs inside text.
// text is compared in lower case; substring matching lets unsegmented
// scripts match their theme words.
func ContainsAnyToken(text string, tokens []string) bool {
	lower := strings.ToLower(text)
	for _, t := range tokens {
		if t != "" && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
