package kb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/retrieval"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// fallbackConfidence sits below structured data but well above the
// pure-text last resort.
const fallbackConfidence = 0.85

type Store interface {
	SearchKBArticles(terms []string, limit int) ([]models.KBArticle, error)
}

// Agent is the last-resort keyword search over the curated knowledge
// base, invoked only when structured and semantic retrieval came back
// empty.
type Agent struct {
	store Store
	limit int
}

func New(store Store, limit int) *Agent {
	if limit <= 0 {
		limit = 5
	}
	return &Agent{store: store, limit: limit}
}

func (a *Agent) Name() string {
	return "kb_fallback"
}

func (a *Agent) Retrieve(ctx context.Context, intent *extractor.Intent) ([]retrieval.Result, error) {
	terms := intent.SignificantTerms
	if len(terms) == 0 {
		return nil, nil
	}

	articles, err := a.store.SearchKBArticles(terms, a.limit)
	if err != nil {
		return nil, fmt.Errorf("kb fallback search failed: %w", err)
	}

	// Retry with fewer terms before giving up; multi-term AND search is
	// strict and often misses by one word.
	if len(articles) == 0 && len(terms) > 2 {
		articles, err = a.store.SearchKBArticles(terms[:2], a.limit)
		if err != nil {
			return nil, fmt.Errorf("kb fallback retry failed: %w", err)
		}
	}

	var results []retrieval.Result
	for _, article := range articles {
		results = append(results, retrieval.Result{
			Kind:           retrieval.KindQAKnowledge,
			Text:           article.Content,
			RawScore:       fallbackConfidence,
			DocumentType:   article.DocumentType,
			HierarchyLevel: article.HierarchyLevel,
			ArticleNumber:  article.ArticleNumber,
		})
	}

	logger.Debug("KB fallback retrieval completed",
		zap.Int("terms", len(terms)),
		zap.Int("results", len(results)),
	)

	return results, nil
}
