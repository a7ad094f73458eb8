package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hyperifyio/gorestruct/internal/fidelity"
)

func TestRunFiveJobsOneFidelityFailure(t *testing.T) {
	jobs := make([]Job, 5)
	for i := range jobs {
		name := fmt.Sprintf("doc-%d", i)
		delay := time.Duration(5-i) * 5 * time.Millisecond
		failing := i == 2
		jobs[i] = Job{Name: name, Run: func(ctx context.Context) (Artifact, error) {
			time.Sleep(delay)
			if failing {
				return Artifact{}, fidelity.CheckTokens("Hello world", "Hello")
			}
			return Artifact{Path: name + ".xml"}, nil
		}}
	}

	results := Run(context.Background(), jobs, 2)
	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	for i, r := range results {
		if r.Index != i || r.Name != fmt.Sprintf("doc-%d", i) {
			t.Fatalf("result %d out of submission order: %+v", i, r)
		}
		if r.Elapsed <= 0 {
			t.Fatalf("result %d missing elapsed time", i)
		}
	}
	for i, r := range results {
		if i == 2 {
			if !errors.Is(r.Err, fidelity.ErrTokenMismatch) {
				t.Fatalf("expected fidelity error for job 2, got %v", r.Err)
			}
			continue
		}
		if r.Err != nil {
			t.Fatalf("job %d failed: %v", i, r.Err)
		}
		if r.Artifact.Path == "" {
			t.Fatalf("job %d missing artifact", i)
		}
	}
}

func TestRunBoundsParallelism(t *testing.T) {
	var active, peak int32
	jobs := make([]Job, 8)
	for i := range jobs {
		jobs[i] = Job{Run: func(ctx context.Context) (Artifact, error) {
			cur := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return Artifact{}, nil
		}}
	}

	Run(context.Background(), jobs, 2)
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("parallelism bound exceeded: peak %d", p)
	}
}

func TestRunCoercesParallelismBelowOne(t *testing.T) {
	var active, peak int32
	jobs := make([]Job, 3)
	for i := range jobs {
		jobs[i] = Job{Run: func(ctx context.Context) (Artifact, error) {
			cur := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return Artifact{}, nil
		}}
	}

	results := Run(context.Background(), jobs, 0)
	if p := atomic.LoadInt32(&peak); p != 1 {
		t.Fatalf("maxParallel 0 should run sequentially, peak %d", p)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("job failed: %v", r.Err)
		}
	}
}

func TestRunRecoversPanic(t *testing.T) {
	jobs := []Job{
		{Name: "ok", Run: func(ctx context.Context) (Artifact, error) {
			return Artifact{Path: "ok.xml"}, nil
		}},
		{Name: "boom", Run: func(ctx context.Context) (Artifact, error) {
			panic("directive index out of range")
		}},
		{Name: "also-ok", Run: func(ctx context.Context) (Artifact, error) {
			return Artifact{Path: "also-ok.xml"}, nil
		}},
	}

	results := Run(context.Background(), jobs, 3)
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("siblings affected by panic: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Fatal("panicking job reported success")
	}
	if !strings.Contains(results[1].Err.Error(), "panicked") {
		t.Fatalf("panic not wrapped: %v", results[1].Err)
	}
}

func TestRunAssignsJobIDs(t *testing.T) {
	jobs := []Job{
		{ID: "fixed", Run: func(ctx context.Context) (Artifact, error) { return Artifact{}, nil }},
		{Run: func(ctx context.Context) (Artifact, error) { return Artifact{}, nil }},
	}
	results := Run(context.Background(), jobs, 1)
	if results[0].JobID != "fixed" {
		t.Fatalf("provided ID replaced: %q", results[0].JobID)
	}
	if err := uuid.Validate(results[1].JobID); err != nil {
		t.Fatalf("generated ID not a UUID: %q (%v)", results[1].JobID, err)
	}
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})
	var entered int32

	jobs := []Job{{Name: "blocker", Run: func(ctx context.Context) (Artifact, error) {
		atomic.AddInt32(&entered, 1)
		close(started)
		<-ctx.Done()
		return Artifact{}, ctx.Err()
	}}}
	for i := 0; i < 2; i++ {
		jobs = append(jobs, Job{Name: fmt.Sprintf("queued-%d", i), Run: func(ctx context.Context) (Artifact, error) {
			if err := ctx.Err(); err != nil {
				return Artifact{}, err
			}
			atomic.AddInt32(&entered, 1)
			return Artifact{}, nil
		}})
	}

	go func() {
		<-started
		cancel()
	}()

	results := Run(ctx, jobs, 1)
	if n := atomic.LoadInt32(&entered); n != 1 {
		t.Fatalf("queued jobs did work after cancellation: %d", n)
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Fatalf("job %s err = %v, want context.Canceled", r.Name, r.Err)
		}
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")

	if err := WriteAtomic(path, []byte("<book/>"), 0o644); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "<book/>" {
		t.Fatalf("content = %q", data)
	}

	// Overwrite must replace content and leave no temp files behind.
	if err := WriteAtomic(path, []byte("<book>v2</book>"), 0o644); err != nil {
		t.Fatalf("WriteAtomic overwrite: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "<book>v2</book>" {
		t.Fatalf("overwrite content = %q", data)
	}
}
