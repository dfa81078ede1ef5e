package gaps

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// Store is the persistence surface for gap records.
type Store interface {
	FindOpenGap(category, topic string) (*models.KnowledgeGap, error)
	InsertGap(g *models.KnowledgeGap) error
	UpdateGapOnRepeat(id string, priority int, suggestedAction, lastResponse string, confidence float64) error
}

// Drafter produces a remediation suggestion for a new gap. Optional.
type Drafter interface {
	DraftRemediation(ctx context.Context, category, topic, failedQuery string) (string, error)
}

// Service records knowledge gaps for low-confidence answers,
// deduplicating against open gaps on the same (category, topic).
type Service struct {
	store     Store
	drafter   Drafter
	threshold float64
}

func NewService(store Store, drafter Drafter, threshold float64) *Service {
	if threshold <= 0 {
		threshold = 0.60
	}
	return &Service{store: store, drafter: drafter, threshold: threshold}
}

func (s *Service) Threshold() float64 {
	return s.threshold
}

// Detect classifies a failure and persists it. Returns the gap and
// whether one was recorded (false when confidence clears the threshold).
func (s *Service) Detect(ctx context.Context, f Failure) (*models.KnowledgeGap, bool, error) {
	if f.Confidence >= s.threshold {
		return nil, false, nil
	}

	classification := Classify(f)

	existing, err := s.store.FindOpenGap(classification.Category, classification.Topic)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		// Repeat failure on an open gap: bump the counter instead of
		// creating a duplicate, and refresh the priority.
		priority := classification.Priority
		if priority < existing.Priority {
			priority = existing.Priority
		}
		err = s.store.UpdateGapOnRepeat(existing.ID, priority, classification.SuggestedAction, f.Response, f.Confidence)
		if err != nil {
			return nil, false, err
		}
		existing.SimilarFailuresCount++
		existing.Priority = priority
		existing.SuggestedAction = classification.SuggestedAction
		logger.Info("Knowledge gap repeated",
			zap.String("gap_id", existing.ID),
			zap.Int("similar_failures", existing.SimilarFailuresCount),
		)
		return existing, true, nil
	}

	action := classification.SuggestedAction
	if s.drafter != nil {
		if draft, err := s.drafter.DraftRemediation(ctx, classification.Category, classification.Topic, f.Query); err == nil && draft != "" {
			action = draft
		} else if err != nil {
			logger.Warn("Remediation draft failed", zap.Error(err))
		}
	}

	status := "detected"
	if classification.Escalate {
		status = "analyzing"
	}

	gap := &models.KnowledgeGap{
		ID:                   uuid.New().String(),
		Category:             classification.Category,
		Topic:                classification.Topic,
		Severity:             classification.Severity,
		FailedQuery:          f.Query,
		LastResponse:         f.Response,
		ConfidenceAtFailure:  f.Confidence,
		SuggestedAction:      action,
		Priority:             classification.Priority,
		Status:               status,
		SimilarFailuresCount: 1,
		Escalated:            classification.Escalate,
	}

	if err := s.store.InsertGap(gap); err != nil {
		return nil, false, err
	}

	return gap, true, nil
}
