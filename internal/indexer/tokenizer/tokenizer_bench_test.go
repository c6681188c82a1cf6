package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "When is the deadline for project 1?",
	"medium": `The project 1 deadline has been extended to Feb 16. Submissions made
        through the portal before midnight are graded normally. If the evaluation
        script reports a timeout, rerun it once the queue clears and keep the
        screenshot of the error for the course team.`,
	"long": strings.Repeat(`Graded assignments open on Monday and close the following Sunday.
        Each question is evaluated automatically and the score is visible on the
        dashboard within a day. Docker and Podman are both accepted for the
        deployment tasks. Use the discourse thread for clarifications and search
        the existing posts before opening a new topic. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkStem(b *testing.B) {
	words := []string{
		"deadlines", "submitted", "graded", "evaluation",
		"assignments", "questions", "deploying",
		"screenshots", "extended", "clarifications",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			_ = stem(w)
		}
	}
}

func BenchmarkTermsVaryingSize(b *testing.B) {
	base := "project deadline graded assignment portal "
	for _, size := range []int{10, 100, 500, 1000, 5000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Terms(text)
			}
		})
	}
}
