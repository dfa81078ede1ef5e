package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/gaps"
	"github.com/chat-pd-poa/backend/internal/metrics"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/internal/validation"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// GapStore is the read/resolve side of gap persistence used by the
// admin endpoints.
type GapStore interface {
	ListGaps(status string, limit int) ([]models.KnowledgeGap, error)
	ResolveGap(id string) error
}

type GapsHandler struct {
	service   *gaps.Service
	store     GapStore
	validator *validation.Validator
}

func NewGapsHandler(service *gaps.Service, store GapStore, validator *validation.Validator) *GapsHandler {
	return &GapsHandler{
		service:   service,
		store:     store,
		validator: validator,
	}
}

// HandleDetect records a failure reported by an external caller, such
// as a human reviewer flagging a bad answer.
func (h *GapsHandler) HandleDetect(c *fiber.Ctx) error {
	var req struct {
		Query      string  `json:"query"`
		Response   string  `json:"response"`
		Confidence float64 `json:"confidence"`
		Category   string  `json:"category,omitempty"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	gap, recorded, err := h.service.Detect(c.Context(), gaps.Failure{
		Query:      req.Query,
		Response:   req.Response,
		Confidence: req.Confidence,
		Category:   req.Category,
	})
	if err != nil {
		logger.Error("Gap detection failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to record gap",
		})
	}

	if !recorded {
		return c.JSON(fiber.Map{
			"success":     true,
			"gapDetected": false,
			"reason":      "confidence above gap threshold",
		})
	}

	metrics.GapsDetected.WithLabelValues(gap.Category, gap.Severity).Inc()

	return c.JSON(fiber.Map{
		"success":     true,
		"gapDetected": true,
		"gap":         gapView(gap),
	})
}

func (h *GapsHandler) HandleList(c *fiber.Ctx) error {
	status := c.Query("status")
	limit := c.QueryInt("limit", 50)

	gapList, err := h.store.ListGaps(status, limit)
	if err != nil {
		logger.Error("Failed to list gaps", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list gaps",
		})
	}

	views := make([]fiber.Map, 0, len(gapList))
	for i := range gapList {
		views = append(views, gapView(&gapList[i]))
	}

	return c.JSON(fiber.Map{
		"gaps":  views,
		"count": len(views),
	})
}

func (h *GapsHandler) HandleResolve(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Gap id is required",
		})
	}

	if err := h.store.ResolveGap(id); err != nil {
		logger.Error("Failed to resolve gap", zap.String("gap_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve gap",
		})
	}

	return c.JSON(fiber.Map{
		"resolved": true,
		"id":       id,
	})
}

// HandleValidate runs cross-validation over caller-supplied agent
// responses. Exposed so reviewers can probe the contradiction rules.
func (h *GapsHandler) HandleValidate(c *fiber.Ctx) error {
	var req struct {
		Query          string                     `json:"query"`
		AgentResponses []validation.AgentResponse `json:"agentResponses"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.AgentResponses) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one agent response is required",
		})
	}

	result := h.validator.Validate(req.AgentResponses)
	if len(result.Contradictions) > 0 {
		metrics.ContradictionsFound.Inc()
		logger.Warn("Contradictions in submitted agent responses",
			zap.String("query", req.Query),
			zap.Int("contradictions", len(result.Contradictions)),
		)
	}

	return c.JSON(fiber.Map{
		"validation": fiber.Map{
			"confidence":       result.Confidence,
			"status":           result.Status,
			"consistency":      result.Consistency,
			"issues":           result.Issues,
			"shouldReturnBeta": result.ShouldReturnBeta,
		},
		"metadata": fiber.Map{
			"contradictions": result.Contradictions,
		},
	})
}

func gapView(g *models.KnowledgeGap) fiber.Map {
	return fiber.Map{
		"id":                   g.ID,
		"category":             g.Category,
		"topic":                g.Topic,
		"severity":             g.Severity,
		"failedQuery":          g.FailedQuery,
		"confidenceAtFailure":  g.ConfidenceAtFailure,
		"suggestedAction":      g.SuggestedAction,
		"priority":             g.Priority,
		"status":               g.Status,
		"similarFailuresCount": g.SimilarFailuresCount,
		"escalated":            g.Escalated,
		"createdAt":            g.CreatedAt,
		"updatedAt":            g.UpdatedAt,
	}
}
