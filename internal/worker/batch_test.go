package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/altwrite/internal/model"
)

// MockDrafter implements FigureDrafter
type MockDrafter struct {
	FailFor map[int64]bool
}

func (m *MockDrafter) DraftFigure(ctx context.Context, figureID int64) ([]model.GeneratedDescription, error) {
	time.Sleep(10 * time.Millisecond) // Simulate work
	if m.FailFor[figureID] {
		return nil, errors.New("draft error")
	}
	return []model.GeneratedDescription{
		{FigureID: figureID, Model: "gpt-4o-mini", Description: "A chart."},
	}, nil
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "figures.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessFigures(t *testing.T) {
	processor := NewBatchProcessor(&MockDrafter{}, 2, nil)

	results := processor.ProcessFigures(context.Background(), []int64{1, 2, 3})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	var ids []int64
	for _, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for figure %d: %v", res.FigureID, res.Error)
		}
		if len(res.Drafts) != 1 {
			t.Errorf("expected one draft for figure %d", res.FigureID)
		}
		ids = append(ids, res.FigureID)
	}

	if ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("expected results in input order, got %v", ids)
	}
}

func TestBatchProcessor_ProcessFigures_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockDrafter{FailFor: map[int64]bool{9: true}}, 2, nil)

	results := processor.ProcessFigures(context.Background(), []int64{9})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Drafts != nil {
		t.Error("expected no drafts on error")
	}
}

func TestBatchProcessor_ProcessFigures_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockDrafter{}, 2, nil)

	results := processor.ProcessFigures(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadFigureIDsFromFile(t *testing.T) {
	path := writeTempFile(t, "12\n# comment\n  7  \n\n12\n3\n")

	ids, err := ReadFigureIDsFromFile(path)
	if err != nil {
		t.Fatalf("ReadFigureIDsFromFile failed: %v", err)
	}

	expected := []int64{12, 7, 3}
	if len(ids) != len(expected) {
		t.Fatalf("expected %d ids, got %d", len(expected), len(ids))
	}
	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("expected id %d at index %d, got %d", expected[i], i, id)
		}
	}
}

func TestReadFigureIDsFromFile_Invalid(t *testing.T) {
	for _, content := range []string{"12\nabc\n", "-4\n", "0\n"} {
		if _, err := ReadFigureIDsFromFile(writeTempFile(t, content)); err == nil {
			t.Errorf("expected error for %q", content)
		}
	}
}

func TestReadFigureIDsFromFile_NonExistent(t *testing.T) {
	_, err := ReadFigureIDsFromFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestDraftResult_GetError(t *testing.T) {
	r1 := &DraftResult{FigureID: 1}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("draft failed")
	r2 := &DraftResult{FigureID: 1, Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTempFile(t, "1\n2\n# comment\n\n3\n")

	processor := NewBatchProcessor(&MockDrafter{}, 2, nil)
	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockDrafter{}, 2, nil)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
