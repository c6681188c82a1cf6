package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDropsStopWordsAndStems(t *testing.T) {
	tokens := Tokenize("What is the deadline for Project 1? Submissions are closing!")
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
		assert.Equal(t, i, tok.Position)
	}
	assert.Equal(t, []string{"deadlin", "project", "1", "submiss", "clos"}, terms)
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   ... the a !"))
}

func TestTerms(t *testing.T) {
	freq := Terms("docker docker Podman dockers")
	assert.Equal(t, 3, freq["docker"])
	assert.Equal(t, 1, freq["podman"])
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"running":    "runn",
		"queries":    "query",
		"class":      "class",
		"is":         "is",
		"relational": "relat",
		"status":     "status",
		"boxes":      "box",
	}
	for in, want := range cases {
		assert.Equal(t, want, stem(in), in)
	}
}

func TestStemSharedAcrossInflections(t *testing.T) {
	groups := [][]string{
		{"docker", "dockers"},
		{"submission", "submissions"},
		{"query", "queries"},
		{"class", "classes"},
		{"update", "updates", "updated", "updating"},
		{"close", "closes", "closed", "closing"},
		{"notebook", "notebooks"},
	}
	for _, words := range groups {
		want := stem(words[0])
		for _, w := range words[1:] {
			assert.Equal(t, want, stem(w), "%s vs %s", words[0], w)
		}
	}
}
