package vector

import (
	"fmt"
	"math/rand"
	"testing"
)

func randomIndex(b *testing.B, n, dims int) (*Index, []float32) {
	b.Helper()
	r := rand.New(rand.NewSource(42))
	x := New(dims)
	for i := 0; i < n; i++ {
		v := make([]float32, dims)
		for j := range v {
			v[j] = r.Float32() - 0.5
		}
		if err := x.Add(i, v); err != nil {
			b.Fatal(err)
		}
	}
	q := make([]float32, dims)
	for j := range q {
		q[j] = r.Float32() - 0.5
	}
	return x, q
}

func BenchmarkSearch(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		x, q := randomIndex(b, n, 1536)
		b.Run(fmt.Sprintf("vectors_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := x.Search(q, 3); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	x, q := randomIndex(b, 5000, 1536)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = x.Search(q, 3)
		}
	})
}
