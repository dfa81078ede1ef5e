package semantic

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/retrieval"
	"github.com/chat-pd-poa/backend/internal/vector/milvus"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// Embedder turns query text into a vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the vector-store surface the agent needs.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int, filter milvus.SearchFilter) ([]milvus.SearchResult, error)
}

// Agent runs similarity search over embedded plan documents.
type Agent struct {
	embedder Embedder
	searcher Searcher
	topK     int
}

func New(embedder Embedder, searcher Searcher, topK int) *Agent {
	if topK <= 0 {
		topK = 8
	}
	return &Agent{embedder: embedder, searcher: searcher, topK: topK}
}

func (a *Agent) Name() string {
	return "semantic"
}

func (a *Agent) Retrieve(ctx context.Context, intent *extractor.Intent) ([]retrieval.Result, error) {
	embedding, err := a.embedder.GenerateEmbedding(ctx, intent.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filter := milvus.SearchFilter{}
	if intent.DocumentType != "" {
		filter.DocumentType = intent.DocumentType
	}

	matches, err := a.searcher.Search(ctx, embedding, a.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]retrieval.Result, 0, len(matches))
	for _, m := range matches {
		kind := retrieval.KindRegimeChunk
		if m.DocumentType == "KB" {
			kind = retrieval.KindQAKnowledge
		} else if m.ArticleNumber > 0 {
			kind = retrieval.KindLegalArticle
		}

		results = append(results, retrieval.Result{
			Kind:              kind,
			Text:              m.Text,
			RawScore:          clamp01(float64(m.Score)),
			DocumentType:      m.DocumentType,
			HierarchyLevel:    m.HierarchyLevel,
			ArticleNumber:     int(m.ArticleNumber),
			Bairro:            m.Bairro,
			Zona:              m.Zona,
			HasCertification:  m.HasCertification,
			HasFourthDistrict: m.HasFourthDistrict,
		})
	}

	logger.Debug("Semantic retrieval completed",
		zap.Int("topK", a.topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
