package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/sixc/internal/model"
)

// MockRunner implements Runner
type MockRunner struct {
	ShouldError bool
}

func (m *MockRunner) RunDocument(ctx context.Context, path string) (*model.Report, error) {
	// Later paths in the list finish first
	time.Sleep(time.Duration(10-len(path)%5) * time.Millisecond)
	if m.ShouldError {
		return nil, errors.New("run error")
	}
	return &model.Report{Source: path}, nil
}

func TestBatchProcessor_ProcessPaths(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{}, 2, 0, 0)

	paths := []string{"a.txt", "bb.json", "ccc.pdf"}
	results := processor.ProcessPaths(context.Background(), paths)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Path, res.Error)
			continue
		}
		if res.Path != paths[i] {
			t.Errorf("result %d out of order: got %s, want %s", i, res.Path, paths[i])
		}
		if res.Report == nil || res.Report.Source != paths[i] {
			t.Errorf("expected report for %s", paths[i])
		}
	}
}

func TestBatchProcessor_ProcessPaths_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{ShouldError: true}, 2, 0, 0)

	results := processor.ProcessPaths(context.Background(), []string{"doc.txt"})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessPaths_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{}, 2, 0, 0)

	results := processor.ProcessPaths(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_RateLimited(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{}, 4, 1000, 1)

	results := processor.ProcessPaths(context.Background(), []string{"a", "b", "c"})
	for _, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Path, res.Error)
		}
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewBatchProcessor(&MockRunner{}, 2, 0, 0)
	results := processor.ProcessPaths(ctx, []string{"a", "b"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res == nil {
			t.Fatal("every path needs a result")
		}
	}
}

func TestReadListFile(t *testing.T) {
	content := `docs/a.pdf
# comment
docs/b.json
   
docs/a.pdf
docs/c.txt   `

	tmpfile, err := os.CreateTemp("", "docs")
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

	entries, err := ReadListFile(tmpfile.Name())
	if err != nil {
		t.Fatalf("ReadListFile failed: %v", err)
	}

	expected := []string{"docs/a.pdf", "docs/b.json", "docs/c.txt"}
	if strings.Join(entries, ",") != strings.Join(expected, ",") {
		t.Errorf("expected %v, got %v", expected, entries)
	}
}

func TestReadListFile_NonExistent(t *testing.T) {
	_, err := ReadListFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestDocumentResult_GetError(t *testing.T) {
	r1 := &DocumentResult{Path: "a.txt"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("run failed")
	r2 := &DocumentResult{Path: "a.txt", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	content := "a.txt\nb.txt\n# comment\n\nc.txt\n"

	tmpfile, err := os.CreateTemp("", "batch_docs")
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

	processor := NewBatchProcessor(&MockRunner{}, 2, 0, 0)

	results, err := processor.ProcessFile(context.Background(), tmpfile.Name())
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{}, 2, 0, 0)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
