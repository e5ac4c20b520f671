package index

import (
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// TFIDF returns (1 + ln tf) * ln(n / df) rounded to five decimal places,
// where df and n are counted within one flush batch.
func TFIDF(tf, df, n int) (float64, error) {
	if tf < 1 {
		return 0, apperrors.Invalidf("term frequency must be >= 1, got %d", tf)
	}
	if df < 1 || df > n {
		return 0, apperrors.Invalidf("document frequency %d outside [1, %d]", df, n)
	}
	w := (1 + math.Log(float64(tf))) * math.Log(float64(n)/float64(df))
	return round5(w), nil
}

func round5(x float64) float64 {
	return math.Round(x*1e5) / 1e5
}
