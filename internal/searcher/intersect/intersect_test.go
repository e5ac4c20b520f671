package intersect

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
)

func pl(pairs ...float64) index.PostingList {
	out := make(index.PostingList, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, index.Posting{DocID: uint32(pairs[i]), Weight: pairs[i+1]})
	}
	return out
}

func TestAll(t *testing.T) {
	tests := []struct {
		name  string
		lists []index.PostingList
		want  index.PostingList
	}{
		{
			name:  "two lists",
			lists: []index.PostingList{pl(1, 3, 2, 1, 5, 4), pl(2, 2, 5, 1, 9, 9)},
			want:  pl(2, 3, 5, 5),
		},
		{
			name:  "single list unchanged",
			lists: []index.PostingList{pl(4, 1, 7, 2)},
			want:  pl(4, 1, 7, 2),
		},
		{
			name:  "three lists",
			lists: []index.PostingList{pl(1, 1, 2, 1, 3, 1, 4, 1), pl(2, 1, 4, 1), pl(0, 1, 4, 2, 8, 1)},
			want:  pl(4, 4),
		},
		{
			name:  "disjoint",
			lists: []index.PostingList{pl(1, 1), pl(2, 1)},
			want:  nil,
		},
		{
			name:  "empty member",
			lists: []index.PostingList{pl(1, 1, 2, 2), nil},
			want:  nil,
		},
		{
			name:  "no lists",
			lists: nil,
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := All(tt.lists)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("All = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllDoesNotReorderInput(t *testing.T) {
	a, b := pl(1, 1, 2, 1, 3, 1), pl(2, 1)
	lists := []index.PostingList{a, b}
	All(lists)
	if len(lists[0]) != 3 {
		t.Error("input slice was reordered")
	}
}
