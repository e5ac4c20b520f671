// Package intersect combines doc-id-ascending posting lists with
// merge-join AND semantics.
package intersect

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
)

// All returns the postings whose doc id appears in every list, with scores
// summed across lists. A single list is returned unchanged. Lists are joined
// shortest first and the join stops as soon as the running result is empty.
// Inputs must be sorted by ascending doc id and are not modified.
func All(lists []index.PostingList) index.PostingList {
	switch len(lists) {
	case 0:
		return nil
	case 1:
		return lists[0]
	}
	ordered := make([]index.PostingList, len(lists))
	copy(ordered, lists)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) < len(ordered[j]) })

	result := ordered[0]
	for _, next := range ordered[1:] {
		if len(result) == 0 {
			break
		}
		result = Pair(result, next)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Pair merge-joins two lists, summing scores on equal doc ids.
func Pair(a, b index.PostingList) index.PostingList {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make(index.PostingList, 0, n)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocID == b[j].DocID:
			out = append(out, index.Posting{DocID: a[i].DocID, Weight: a[i].Weight + b[j].Weight})
			i++
			j++
		case a[i].DocID < b[j].DocID:
			i++
		default:
			j++
		}
	}
	return out
}
