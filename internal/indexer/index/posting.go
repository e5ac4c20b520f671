package index

// Posting pairs a document with a weight. During accumulation Weight holds
// the raw term frequency; after a flush it holds the TF-IDF score.
type Posting struct {
	DocID  uint32  `json:"doc_id"`
	Weight float64 `json:"weight"`
}

type PostingList []Posting

// TermEntry is one record of a segment or of the final index.
type TermEntry struct {
	TermID   uint32
	Postings PostingList
}

// Sorted reports whether doc ids are strictly ascending.
func (pl PostingList) Sorted() bool {
	for i := 1; i < len(pl); i++ {
		if pl[i-1].DocID >= pl[i].DocID {
			return false
		}
	}
	return true
}
