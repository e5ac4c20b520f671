// Package repl runs the interactive query loop: one query per input line,
// up to Limit ranked URLs per answer.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
)

const (
	Prompt    = "Search term: "
	NoResults = "no documents found"
)

// maxLineBytes bounds a single query line.
const maxLineBytes = 1 << 20

// Searcher answers queries. Both *executor.Executor and *cache.QueryCache
// satisfy it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
}

type Options struct {
	Limit       int
	ShowTimings bool
	// Timeout bounds each query; zero means none.
	Timeout time.Duration
}

type REPL struct {
	searcher Searcher
	in       io.Reader
	out      io.Writer
	opts     Options
	logger   *slog.Logger
}

func New(s Searcher, in io.Reader, out io.Writer, opts Options) *REPL {
	return &REPL{
		searcher: s,
		in:       in,
		out:      out,
		opts:     opts,
		logger:   slog.Default().With("component", "repl"),
	}
}

// Run prompts, reads and answers queries until the input ends or ctx is
// cancelled. Query errors are reported and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		fmt.Fprint(r.out, Prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("reading queries: %w", err)
					}
				default:
				}
				return nil
			}
			r.answer(ctx, strings.TrimSpace(line))
		}
	}
}

func (r *REPL) answer(ctx context.Context, query string) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := r.searcher.Search(ctx, query, r.opts.Limit)
	elapsed := time.Since(start)
	if err != nil {
		r.logger.Error("query failed", "query", query, "error", err)
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	if res.Empty() {
		fmt.Fprintln(r.out, NoResults)
	} else {
		for i, d := range res.Results {
			fmt.Fprintf(r.out, "%d. %s\n", i+1, d.URL)
		}
	}
	if r.opts.ShowTimings {
		r.printTimings(res, elapsed)
	}
}

func (r *REPL) printTimings(res *executor.SearchResult, total time.Duration) {
	parts := make([]string, 0, len(executor.Stages)+1)
	for _, stage := range executor.Stages {
		if ms, ok := res.Timings[stage]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.3fms", stage, ms))
		}
	}
	parts = append(parts, fmt.Sprintf("total=%.3fms", float64(total.Microseconds())/1000))
	fmt.Fprintf(r.out, "(%d hits; %s)\n", res.TotalHits, strings.Join(parts, " "))
}
