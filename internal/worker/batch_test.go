package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

func TestBatchRunner_Run(t *testing.T) {
	runner := NewBatchRunner(2)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	seen := make(map[int64]time.Time)
	fn := func(ctx context.Context, claimID int64, batchAt time.Time) error {
		time.Sleep(10 * time.Millisecond) // Simulate analysis work
		mu.Lock()
		seen[claimID] = batchAt
		mu.Unlock()
		return nil
	}

	results := runner.Run(context.Background(), []int64{1, 2, 3}, at, fn)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Err != nil {
			t.Errorf("unexpected error for claim %d: %v", res.ClaimID, res.Err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected 3 claims processed, got %d", len(seen))
	}
	for id, batchAt := range seen {
		if !batchAt.Equal(at) {
			t.Errorf("claim %d got timestamp %v, expected shared %v", id, batchAt, at)
		}
	}
}

func TestBatchRunner_Run_ErrorIsolation(t *testing.T) {
	runner := NewBatchRunner(2)

	fn := func(ctx context.Context, claimID int64, at time.Time) error {
		if claimID == 2 {
			return errors.New("analysis error")
		}
		return nil
	}

	results := runner.Run(context.Background(), []int64{1, 2, 3}, time.Now(), fn)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	failed := Failed(results)
	if len(failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failed))
	}
	if failed[0].ClaimID != 2 {
		t.Errorf("expected claim 2 to fail, got %d", failed[0].ClaimID)
	}
}

func TestBatchRunner_Run_Empty(t *testing.T) {
	runner := NewBatchRunner(2)

	results := runner.Run(context.Background(), []int64{}, time.Now(), func(ctx context.Context, claimID int64, at time.Time) error {
		t.Error("fn should not be called for an empty batch")
		return nil
	})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestClaimResult_GetError(t *testing.T) {
	r1 := &ClaimResult{ClaimID: 1}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("analysis failed")
	r2 := &ClaimResult{ClaimID: 2, Err: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestReadClaimIDsFromFile(t *testing.T) {
	content := `17
# comment
42

105   `

	tmpfile, err := os.CreateTemp("", "claim_ids")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	ids, err := ReadClaimIDsFromFile(tmpfile.Name())
	if err != nil {
		t.Fatalf("ReadClaimIDsFromFile failed: %v", err)
	}

	expected := []int64{17, 42, 105}
	if len(ids) != len(expected) {
		t.Fatalf("expected %d IDs, got %d", len(expected), len(ids))
	}
	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("expected ID %d at index %d, got %d", expected[i], i, id)
		}
	}
}

func TestReadClaimIDsFromFile_Deduplication(t *testing.T) {
	content := "7\n7\n"

	tmpfile, err := os.CreateTemp("", "claim_ids_dedup")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	ids, err := ReadClaimIDsFromFile(tmpfile.Name())
	if err != nil {
		t.Fatalf("ReadClaimIDsFromFile failed: %v", err)
	}

	if len(ids) != 1 {
		t.Errorf("expected 1 ID after deduplication, got %d", len(ids))
	}
}

func TestReadClaimIDsFromFile_Invalid(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "claim_ids_bad")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write([]byte("not-a-number\n")); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = ReadClaimIDsFromFile(tmpfile.Name())
	if err == nil {
		t.Error("expected error for non-numeric line, got nil")
	}
}

func TestBatchRunner_RunFile(t *testing.T) {
	content := "1\n2\n# comment\n\n3\n"

	tmpfile, err := os.CreateTemp("", "batch_claims")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	runner := NewBatchRunner(2)
	results, err := runner.RunFile(context.Background(), tmpfile.Name(), time.Now(),
		func(ctx context.Context, claimID int64, at time.Time) error { return nil })
	if err != nil {
		t.Fatalf("RunFile failed: %v", err)
	}

	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchRunner_RunFile_NonExistent(t *testing.T) {
	runner := NewBatchRunner(2)

	_, err := runner.RunFile(context.Background(), "no_such_file.txt", time.Now(),
		func(ctx context.Context, claimID int64, at time.Time) error { return nil })
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
