package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ClaimFunc is a per-claim analysis step run by a batch. The at argument
// is the shared scan timestamp for the whole batch.
type ClaimFunc func(ctx context.Context, claimID int64, at time.Time) error

// ClaimJob runs one analysis step for one claim
type ClaimJob struct {
	ClaimID int64
	At      time.Time
	Fn      ClaimFunc
}

// Execute runs the analysis step and wraps its outcome
func (j *ClaimJob) Execute(ctx context.Context) Result {
	err := j.Fn(ctx, j.ClaimID, j.At)
	return &ClaimResult{ClaimID: j.ClaimID, Err: err}
}

// ClaimResult is the outcome of a per-claim job
type ClaimResult struct {
	ClaimID int64
	Err     error
}

// GetError returns the error from the claim result
func (r *ClaimResult) GetError() error {
	return r.Err
}

// BatchRunner fans a set of claims across a worker pool. One claim's
// failure does not stop the rest of the batch.
type BatchRunner struct {
	concurrency int
}

// NewBatchRunner creates a batch runner with the given concurrency
func NewBatchRunner(concurrency int) *BatchRunner {
	return &BatchRunner{concurrency: concurrency}
}

// Run executes fn for every claim concurrently, all sharing the same
// batch timestamp, and returns one result per claim
func (b *BatchRunner) Run(ctx context.Context, claimIDs []int64, at time.Time, fn ClaimFunc) []*ClaimResult {
	if len(claimIDs) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, id := range claimIDs {
		pool.Submit(&ClaimJob{ClaimID: id, At: at, Fn: fn})
	}

	results := pool.Wait()

	claimResults := make([]*ClaimResult, len(results))
	for i, result := range results {
		claimResults[i] = result.(*ClaimResult)
	}

	return claimResults
}

// RunFile reads claim IDs from a file and runs fn for each
func (b *BatchRunner) RunFile(ctx context.Context, filePath string, at time.Time, fn ClaimFunc) ([]*ClaimResult, error) {
	ids, err := ReadClaimIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claim IDs: %w", err)
	}

	return b.Run(ctx, ids, at, fn), nil
}

// Failed filters a batch's results down to the failures
func Failed(results []*ClaimResult) []*ClaimResult {
	var failed []*ClaimResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// ReadClaimIDsFromFile reads claim IDs from a file (one per line)
func ReadClaimIDsFromFile(filePath string) ([]int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []int64
	seen := make(map[int64]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse claim ID %q: %w", line, err)
		}

		// Deduplicate IDs
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
