package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/metrics"
	"github.com/chat-pd-poa/backend/internal/query"
	"github.com/chat-pd-poa/backend/internal/synthesis"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

type QueryHandler struct {
	queryEngine *query.Engine
}

func NewQueryHandler(queryEngine *query.Engine) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req query.QueryRequest

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	startTime := time.Now()
	response, err := h.queryEngine.ProcessQuery(c.Context(), req)
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		metrics.QueryTotal.WithLabelValues("error", "").Inc()
		// The user still gets a well-formed answer body: the canned error
		// response with the institutional footer, confidence zero.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":      "Failed to process query",
			"response":   synthesis.ErrorResponse + synthesis.Footer,
			"confidence": 0.0,
		})
	}

	metrics.QueryTotal.WithLabelValues("success", response.Metadata.ResponseType).Inc()
	metrics.QueryDuration.WithLabelValues(response.Metadata.QueryType).Observe(time.Since(startTime).Seconds())
	metrics.ConfidenceScore.WithLabelValues().Observe(response.Confidence)
	if response.Cached {
		metrics.CacheHits.WithLabelValues("response").Inc()
	} else {
		metrics.CacheMisses.WithLabelValues("response").Inc()
	}
	if response.Metadata.ResponseType == "beta_fallback" {
		metrics.BetaResponses.Inc()
	}
	if response.Validation != nil && len(response.Validation.Contradictions) > 0 {
		metrics.ContradictionsFound.Inc()
	}

	return c.JSON(response)
}
