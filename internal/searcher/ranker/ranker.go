// Package ranker orders matching documents by score and resolves the top
// results to URLs.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// DefaultK is the number of results returned when no limit is given.
const DefaultK = 5

// Documents resolves doc ids to URLs. *dictionary.Docs satisfies it.
type Documents interface {
	URL(id uint32) (string, bool)
}

type ScoredDoc struct {
	DocID uint32  `json:"doc_id"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Rank sorts postings by descending score, keeping input order among equal
// scores, and returns the first k resolved to URLs. k <= 0 means DefaultK.
// The input is not modified.
func Rank(postings index.PostingList, k int, docs Documents) ([]ScoredDoc, error) {
	if k <= 0 {
		k = DefaultK
	}
	sorted := make(index.PostingList, len(postings))
	copy(sorted, postings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight > sorted[j].Weight
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}

	result := make([]ScoredDoc, 0, len(sorted))
	for _, p := range sorted {
		url, ok := docs.URL(p.DocID)
		if !ok {
			return nil, apperrors.Corruptf("doc %d is not in the document dictionary", p.DocID)
		}
		result = append(result, ScoredDoc{
			DocID: p.DocID,
			URL:   url,
			Score: math.Round(p.Weight*1e5) / 1e5,
		})
	}
	return result, nil
}
