// Package resolver turns query text into the ids of indexed terms using the
// same normalizer that built the index.
package resolver

// Dictionary looks up term ids. *dictionary.Terms satisfies it.
type Dictionary interface {
	Lookup(term string) (uint32, bool)
}

// Normalizer splits text into index tokens.
type Normalizer func(text string) []string

// Resolution is the outcome of resolving one query.
type Resolution struct {
	Query   string
	Tokens  []string
	TermIDs []uint32
	Unknown []string
}

// Empty reports whether no query token is indexed.
func (r Resolution) Empty() bool {
	return len(r.TermIDs) == 0
}

type Resolver struct {
	dict      Dictionary
	normalize Normalizer
}

func New(dict Dictionary, normalize Normalizer) *Resolver {
	return &Resolver{dict: dict, normalize: normalize}
}

// Resolve returns the distinct known term ids of query in first-occurrence
// order. Unknown tokens are dropped; a query with no known tokens resolves
// to an empty set.
func (r *Resolver) Resolve(query string) Resolution {
	res := Resolution{Query: query, Tokens: r.normalize(query)}
	seen := make(map[uint32]struct{}, len(res.Tokens))
	for _, tok := range res.Tokens {
		id, ok := r.dict.Lookup(tok)
		if !ok {
			res.Unknown = append(res.Unknown, tok)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		res.TermIDs = append(res.TermIDs, id)
	}
	return res
}
