package resolver

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/tokenizer"
)

func TestResolve(t *testing.T) {
	terms := dictionary.NewTerms()
	terms.Assign("cat")
	terms.Assign("dog")
	r := New(terms, tokenizer.Tokenize)

	tests := []struct {
		query   string
		want    []uint32
		unknown []string
	}{
		{"cat", []uint32{0}, nil},
		{"Dogs and CATS", []uint32{1, 0}, []string{"and"}},
		{"cat cat cats", []uint32{0}, nil},
		{"bird", nil, []string{"bird"}},
		{"", nil, nil},
		{"   !!! ", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := r.Resolve(tt.query)
			if !reflect.DeepEqual(res.TermIDs, tt.want) {
				t.Errorf("TermIDs = %v, want %v", res.TermIDs, tt.want)
			}
			if !reflect.DeepEqual(res.Unknown, tt.unknown) {
				t.Errorf("Unknown = %v, want %v", res.Unknown, tt.unknown)
			}
			if res.Empty() != (len(tt.want) == 0) {
				t.Errorf("Empty = %v", res.Empty())
			}
		})
	}
}
