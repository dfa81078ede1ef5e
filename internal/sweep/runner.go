package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/evaluation"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// BairroLister supplies the neighborhoods to sweep.
type BairroLister interface {
	ListBairros() ([]string, error)
}

// Answerer runs one query through the full pipeline.
type Answerer interface {
	AnswerForSweep(ctx context.Context, query string) (response string, confidence float64, tabularSources int, err error)
}

// Runner exercises the pipeline against every neighborhood with a
// fixed-size worker pool and reports aggregate health.
type Runner struct {
	lister      BairroLister
	answerer    Answerer
	scorer      *evaluation.Scorer
	concurrency int
}

func NewRunner(lister BairroLister, answerer Answerer, scorer *evaluation.Scorer, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Runner{
		lister:      lister,
		answerer:    answerer,
		scorer:      scorer,
		concurrency: concurrency,
	}
}

// Run sweeps all neighborhoods. Per-item failures are captured in the
// report, never aborting the run; ctx cancellation stops scheduling new
// items.
func (r *Runner) Run(ctx context.Context) (*models.SweepReport, error) {
	bairros, err := r.lister.ListBairros()
	if err != nil {
		return nil, fmt.Errorf("failed to list bairros for sweep: %w", err)
	}

	report := &models.SweepReport{
		RunID:     uuid.New().String(),
		Total:     len(bairros),
		Items:     make([]models.SweepItem, len(bairros)),
		StartedAt: time.Now(),
	}

	logger.Info("Sweep started",
		zap.String("run_id", report.RunID),
		zap.Int("bairros", len(bairros)),
		zap.Int("concurrency", r.concurrency),
	)

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < r.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report.Items[i] = r.sweepOne(ctx, bairros[i])
			}
		}()
	}

schedule:
	for i := range bairros {
		select {
		case <-ctx.Done():
			break schedule
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	report.FinishedAt = time.Now()
	aggregate(report)

	logger.Info("Sweep finished",
		zap.String("run_id", report.RunID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Float64("avg_confidence", report.AvgConfidence),
	)

	return report, nil
}

func (r *Runner) sweepOne(ctx context.Context, bairro string) models.SweepItem {
	item := models.SweepItem{Bairro: bairro}
	if bairro == "" {
		item.Error = "empty bairro"
		return item
	}

	query := fmt.Sprintf("Qual o regime urbanístico do bairro %s?", bairro)
	started := time.Now()

	response, confidence, tabular, err := r.answerer.AnswerForSweep(ctx, query)
	item.DurationMS = time.Since(started).Milliseconds()

	if err != nil {
		item.Error = err.Error()
		logger.Warn("Sweep item failed",
			zap.String("bairro", bairro),
			zap.Error(err),
		)
		return item
	}

	item.Confidence = confidence
	if r.scorer != nil {
		item.Quality = r.scorer.Score(evaluation.Input{
			Query:          query,
			Response:       response,
			Confidence:     confidence,
			TabularSources: tabular,
			NumbersIntact:  true,
		}).Overall
	}
	return item
}

func aggregate(report *models.SweepReport) {
	var sum float64
	for _, item := range report.Items {
		if item.Error != "" {
			report.Failed++
			continue
		}
		report.Succeeded++
		sum += item.Confidence
	}
	if report.Succeeded > 0 {
		report.AvgConfidence = sum / float64(report.Succeeded)
	}
}
