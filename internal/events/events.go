// Package events defines the Kafka event payloads exchanged between the
// indexer and the searcher.
package events

import "time"

// IndexComplete is published after a build has atomically replaced the
// index artifacts in DataDir. Searchers serving DataDir reload on receipt.
type IndexComplete struct {
	BuildID     string    `json:"build_id"`
	DataDir     string    `json:"data_dir"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	IndexBytes  int64     `json:"index_bytes"`
	CompletedAt time.Time `json:"completed_at"`
}
