// Package tokenizer normalises forum and documentation text into index
// terms: lower-cased, split on anything that is not a letter or digit,
// stop-words dropped, and lightly stemmed.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {}, "i": {},
	"my": {}, "me": {}, "we": {}, "you": {}, "your": {}, "how": {},
	"there": {}, "any": {}, "should": {}, "would": {}, "does": {},
	"hi": {}, "hello": {}, "thanks": {}, "sir": {}, "please": {},
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

// Plural endings come off first, so a word and its plural share every later
// step. Singular words ending in ss, us or is are left alone.
var pluralRules = []suffixRule{
	{"sses", "ss", 2},
	{"ies", "y", 3},
	{"ches", "ch", 3},
	{"shes", "sh", 3},
	{"xes", "x", 2},
}

// Longest suffixes first; the first rule that leaves a long enough stem wins.
var suffixRules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ing", "", 3},
	{"ed", "", 3},
	{"ly", "", 3},
}

// Token is a normalised term with its position among the kept terms.
type Token struct {
	Term     string
	Position int
}

// Tokenize returns the index terms of text in order.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), isSeparator)
	tokens := make([]Token, 0, len(words)/2)
	for _, word := range words {
		term, ok := normalize(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: len(tokens)})
	}
	return tokens
}

// Terms returns the distinct terms of text with their frequencies.
func Terms(text string) map[string]int {
	freq := make(map[string]int)
	for _, t := range Tokenize(text) {
		freq[t.Term]++
	}
	return freq
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// normalize keeps single digits ("project 1") but drops other one-rune
// words and stop-words.
func normalize(word string) (string, bool) {
	if len([]rune(word)) < 2 && !isDigits(word) {
		return "", false
	}
	if _, stop := stopWords[word]; stop {
		return "", false
	}
	if isDigits(word) {
		return word, true
	}
	stemmed := stem(word)
	return stemmed, stemmed != ""
}

func isDigits(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return word != ""
}

// stem maps inflections of a word onto one term: plural first, then one
// derivational suffix, then a silent trailing e ("closes", "closed" and
// "closing" all become "clos").
func stem(word string) string {
	word = applyFirst(singular(word), suffixRules)
	if len(word) > 3 && strings.HasSuffix(word, "e") {
		word = word[:len(word)-1]
	}
	return word
}

func singular(word string) string {
	if w := applyFirst(word, pluralRules); w != word {
		return w
	}
	switch {
	case strings.HasSuffix(word, "ss"), strings.HasSuffix(word, "us"), strings.HasSuffix(word, "is"):
		return word
	case strings.HasSuffix(word, "s") && len(word) > 3:
		return word[:len(word)-1]
	}
	return word
}

func applyFirst(word string, rules []suffixRule) string {
	for _, rule := range rules {
		if !strings.HasSuffix(word, rule.suffix) {
			continue
		}
		if stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement; len(stemmed) >= rule.minLen {
			return stemmed
		}
	}
	return word
}
