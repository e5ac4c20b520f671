package index

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// Records are text lines of the form
//
//	term_id : doc_id,score doc_id,score ...
//
// shared by segment files and the final index.

// AppendLine appends the encoded entry, including its trailing newline.
func AppendLine(dst []byte, e TermEntry) []byte {
	dst = strconv.AppendUint(dst, uint64(e.TermID), 10)
	dst = append(dst, " :"...)
	for _, p := range e.Postings {
		dst = append(dst, ' ')
		dst = strconv.AppendUint(dst, uint64(p.DocID), 10)
		dst = append(dst, ',')
		dst = strconv.AppendFloat(dst, p.Weight, 'f', -1, 64)
	}
	return append(dst, '\n')
}

// ParseLine decodes one record. Surrounding whitespace and a trailing
// newline are ignored.
func ParseLine(line []byte) (TermEntry, error) {
	line = bytes.TrimSpace(line)
	head, rest, ok := bytes.Cut(line, []byte{':'})
	if !ok {
		return TermEntry{}, apperrors.Corruptf("malformed record %q: missing ':'", truncate(line))
	}
	tid, err := strconv.ParseUint(string(bytes.TrimSpace(head)), 10, 32)
	if err != nil {
		return TermEntry{}, apperrors.Corruptf("malformed term id in %q: %v", truncate(line), err)
	}
	fields := bytes.Fields(rest)
	entry := TermEntry{
		TermID:   uint32(tid),
		Postings: make(PostingList, 0, len(fields)),
	}
	for _, f := range fields {
		d, w, ok := bytes.Cut(f, []byte{','})
		if !ok {
			return TermEntry{}, apperrors.Corruptf("malformed posting %q for term %d", f, tid)
		}
		docID, err := strconv.ParseUint(string(d), 10, 32)
		if err != nil {
			return TermEntry{}, apperrors.Corruptf("malformed doc id %q for term %d: %v", d, tid, err)
		}
		weight, err := strconv.ParseFloat(string(w), 64)
		if err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return TermEntry{}, apperrors.Corruptf("malformed score %q for term %d", w, tid)
		}
		entry.Postings = append(entry.Postings, Posting{DocID: uint32(docID), Weight: weight})
	}
	return entry, nil
}

func truncate(b []byte) string {
	const max = 64
	if len(b) > max {
		return fmt.Sprintf("%s...", b[:max])
	}
	return string(b)
}
