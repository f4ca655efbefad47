// Package filegc deletes stored files whose owning record no longer
// references them. Owners enqueue keys; a Sweeper removes them later.
package filegc

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/storage"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

type Job struct {
	ID        string `bson:"_id"`
	Key       string `bson:"fileKey"`
	Reason    string `bson:"reason"`
	Status    Status `bson:"status"`
	Attempts  int    `bson:"attempts"`
	LastError string `bson:"lastError"`
	CreatedAt int64  `bson:"createdAt"`
	UpdatedAt int64  `bson:"updatedAt"`
}

// Outbox is the queue of pending deletions.
type Outbox interface {
	Enqueue(ctx context.Context, reason string, keys ...string) error
	Pending(ctx context.Context, limit int) ([]Job, error)
	MarkDone(ctx context.Context, id string) error
	// MarkFailed records a failed attempt. giveUp moves the job out of
	// the pending set.
	MarkFailed(ctx context.Context, id string, cause error, giveUp bool) error
}

// Keys maps public upload URLs to unique blob keys, skipping empty and
// external URLs.
func Keys(urls ...string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		k := storage.KeyFromURL(u)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Orphans returns the URLs in before that are absent from after.
func Orphans(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, u := range after {
		keep[u] = struct{}{}
	}
	var out []string
	for _, u := range before {
		if u == "" {
			continue
		}
		if _, ok := keep[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}

var nowUnix = func() int64 { return time.Now().Unix() }
