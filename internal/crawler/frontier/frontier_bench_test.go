package frontier

import (
	"fmt"
	"testing"
)

// BenchmarkCrawlPattern mimics a forum crawl: every dequeued page links to
// a few new topics and many already-seen ones.
func BenchmarkCrawlPattern(b *testing.B) {
	links := make([]string, 5000)
	for i := range links {
		links[i] = fmt.Sprintf("https://forum.example/t/topic-%d", i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f := New(links[0])
		for n := 0; ; n++ {
			u, ok := f.Next()
			if !ok {
				break
			}
			_ = u
			for j := 0; j < 20; j++ {
				f.Push(links[(n*3+j)%len(links)])
			}
		}
	}
}

func BenchmarkPushDuplicates(b *testing.B) {
	f := New()
	for i := 0; i < 1000; i++ {
		f.Push(fmt.Sprintf("https://forum.example/t/%d", i))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Push("https://forum.example/t/500")
	}
}
