package worker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ppiankov/altwrite/internal/model"
)

// FigureDrafter generates draft descriptions for one figure
type FigureDrafter interface {
	DraftFigure(ctx context.Context, figureID int64) ([]model.GeneratedDescription, error)
}

// DraftJob drafts every configured model for one figure
type DraftJob struct {
	FigureID int64
	Drafter  FigureDrafter
}

// Execute executes the draft job
func (j *DraftJob) Execute(ctx context.Context) Result {
	drafts, err := j.Drafter.DraftFigure(ctx, j.FigureID)
	return &DraftResult{
		FigureID: j.FigureID,
		Drafts:   drafts,
		Error:    err,
	}
}

// DraftResult represents the result of a draft job
type DraftResult struct {
	FigureID int64
	Drafts   []model.GeneratedDescription
	Error    error
}

// GetError returns the error from the draft result
func (r *DraftResult) GetError() error {
	return r.Error
}

// BatchProcessor drafts many figures concurrently
type BatchProcessor struct {
	drafter     FigureDrafter
	concurrency int
	logger      *slog.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(drafter FigureDrafter, concurrency int, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		drafter:     drafter,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessFigures drafts every figure and returns one result per figure, in input order
func (b *BatchProcessor) ProcessFigures(ctx context.Context, figureIDs []int64) []*DraftResult {
	if len(figureIDs) == 0 {
		return []*DraftResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for _, id := range figureIDs {
		pool.Submit(&DraftJob{FigureID: id, Drafter: b.drafter})
	}

	results := pool.Wait()

	draftResults := make([]*DraftResult, 0, len(results))
	for _, result := range results {
		r := result.(*DraftResult)
		if r.Error != nil {
			b.logger.Warn("draft failed", "figure_id", r.FigureID, "error", r.Error)
		}
		draftResults = append(draftResults, r)
	}

	return draftResults
}

// ProcessFile reads figure ids from a file and drafts them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*DraftResult, error) {
	ids, err := ReadFigureIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read figure ids: %w", err)
	}

	return b.ProcessFigures(ctx, ids), nil
}

// ReadFigureIDsFromFile reads figure ids from a file (one per line)
func ReadFigureIDsFromFile(filePath string) ([]int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []int64
	seen := make(map[int64]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("line %d: invalid figure id %q", lineNo, line)
		}

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
