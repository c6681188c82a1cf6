package index

import "testing"

const benchText = "the project deadline is extended and submissions through the portal are graded normally"

func BenchmarkInvertedAdd(b *testing.B) {
	ix := NewInverted()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Add(i, benchText)
	}
}

func BenchmarkInvertedPostings(b *testing.B) {
	ix := NewInverted()
	for i := 0; i < 10000; i++ {
		ix.Add(i, benchText)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ix.Postings("project")
	}
}

func BenchmarkInvertedPostingsParallel(b *testing.B) {
	ix := NewInverted()
	for i := 0; i < 10000; i++ {
		ix.Add(i, benchText)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = ix.Postings("portal")
		}
	})
}
