package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/evaluation"
	"github.com/chat-pd-poa/backend/internal/ingestion"
	"github.com/chat-pd-poa/backend/internal/metrics"
	"github.com/chat-pd-poa/backend/internal/sweep"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// AdminHandler serves the operational endpoints: corpus ingestion,
// neighborhood sweeps and standalone quality evaluation.
type AdminHandler struct {
	processor *ingestion.Processor
	runner    *sweep.Runner
	scorer    *evaluation.Scorer
}

func NewAdminHandler(processor *ingestion.Processor, runner *sweep.Runner, scorer *evaluation.Scorer) *AdminHandler {
	return &AdminHandler{
		processor: processor,
		runner:    runner,
		scorer:    scorer,
	}
}

// HandleIngest accepts either a URL to fetch or raw law text.
func (h *AdminHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		URL          string `json:"url,omitempty"`
		Text         string `json:"text,omitempty"`
		DocumentType string `json:"documentType"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.DocumentType != "LUOS" && req.DocumentType != "PDUS" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "documentType must be LUOS or PDUS",
		})
	}
	if req.URL == "" && req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Either url or text is required",
		})
	}

	var (
		report *ingestion.Report
		err    error
	)
	if req.URL != "" {
		report, err = h.processor.IngestURL(c.Context(), req.URL, req.DocumentType)
	} else {
		report, err = h.processor.IngestText(c.Context(), req.Text, req.DocumentType)
	}
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Ingestion failed",
		})
	}

	metrics.ArticlesIngested.Add(float64(report.Articles))

	return c.JSON(report)
}

// HandleSweep runs the full neighborhood sweep synchronously and
// returns the report. Long-running; meant for operators, not end users.
func (h *AdminHandler) HandleSweep(c *fiber.Ctx) error {
	startTime := time.Now()

	report, err := h.runner.Run(c.Context())
	if err != nil {
		logger.Error("Sweep failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Sweep failed",
		})
	}

	metrics.SweepDuration.Observe(time.Since(startTime).Seconds())
	metrics.SweepFailures.Set(float64(report.Failed))

	return c.JSON(report)
}

// HandleEvaluate scores a single query/response pair.
func (h *AdminHandler) HandleEvaluate(c *fiber.Ctx) error {
	var req struct {
		Query          string  `json:"query"`
		Response       string  `json:"response"`
		Confidence     float64 `json:"confidence"`
		TabularSources int     `json:"tabularSources"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Query == "" || req.Response == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query and response are required",
		})
	}

	breakdown := h.scorer.Score(evaluation.Input{
		Query:          req.Query,
		Response:       req.Response,
		Confidence:     req.Confidence,
		TabularSources: req.TabularSources,
		NumbersIntact:  true,
	})

	return c.JSON(breakdown)
}
