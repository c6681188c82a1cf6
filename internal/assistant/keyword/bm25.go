package keyword

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

type scoredDoc struct {
	doc   int
	score float64
}

// rank scores every document containing at least one query term and returns
// the best limit of them. Ties go to the earlier corpus position.
func rank(ix *index.Inverted, terms []string, limit int) []scoredDoc {
	total := int64(ix.DocCount())
	avg := ix.AvgDocLength()
	scores := make(map[int]float64)
	for _, term := range terms {
		postings := ix.Postings(term)
		if len(postings) == 0 {
			continue
		}
		idf := computeIDF(total, int64(len(postings)))
		for _, p := range postings {
			scores[p.Doc] += idf * computeTFNorm(float64(p.Frequency), float64(ix.DocLength(p.Doc)), avg)
		}
	}

	result := make([]scoredDoc, 0, len(scores))
	for doc, score := range scores {
		result = append(result, scoredDoc{doc: doc, score: math.Round(score*10000) / 10000})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].score != result[j].score {
			return result[i].score > result[j].score
		}
		return result[i].doc < result[j].doc
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func computeIDF(totalDocs, docFreq int64) float64 {
	return math.Log((float64(totalDocs)-float64(docFreq))/(float64(docFreq)+0.5) + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	return (termFreq * (k1 + 1)) / (termFreq + k1*(1-b+b*docLength/avgDocLength))
}
