package legal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/kg/neo4j"
	"github.com/chat-pd-poa/backend/internal/retrieval"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// Graph is the legal-hierarchy surface the agent needs.
type Graph interface {
	FindArticle(ctx context.Context, documentType string, number int) (*neo4j.ArticleNode, error)
	SearchLevel(ctx context.Context, documentType, level string, terms []string, limit int) ([]neo4j.ArticleNode, error)
	ArticleContext(ctx context.Context, documentType string, number int) (*neo4j.HierarchyPath, error)
}

// ArticleStore is the relational fallback when the graph has no match.
type ArticleStore interface {
	GetKBArticle(documentType string, articleNumber int) (*models.KBArticle, error)
	SearchKBArticles(terms []string, limit int) ([]models.KBArticle, error)
}

// hierarchyLevels orders the fallback sweep; each step down the list
// discounts confidence by 0.1 from the article baseline.
var hierarchyLevels = []string{"article", "section", "chapter", "title", "part"}

// Agent resolves legal questions: exact article lookup first, then a
// hierarchy-level sweep, then the relational article store.
type Agent struct {
	graph    Graph
	store    ArticleStore
	perLevel int
}

func New(graph Graph, store ArticleStore, perLevel int) *Agent {
	if perLevel <= 0 {
		perLevel = 3
	}
	return &Agent{graph: graph, store: store, perLevel: perLevel}
}

func (a *Agent) Name() string {
	return "legal"
}

func (a *Agent) Retrieve(ctx context.Context, intent *extractor.Intent) ([]retrieval.Result, error) {
	docType := intent.DocumentType
	if docType == "" {
		docType = "LUOS"
	}

	if intent.ArticleNumber > 0 {
		results, err := a.exactArticle(ctx, docType, intent.ArticleNumber)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			return results, nil
		}
	}

	results := a.sweepHierarchy(ctx, docType, intent.SignificantTerms)
	if len(results) > 0 {
		return results, nil
	}

	return a.storeFallback(intent)
}

func (a *Agent) exactArticle(ctx context.Context, docType string, number int) ([]retrieval.Result, error) {
	node, err := a.graph.FindArticle(ctx, docType, number)
	if err != nil {
		return nil, fmt.Errorf("article lookup failed: %w", err)
	}
	if node == nil {
		// The relational store may still hold the article text.
		article, err := a.store.GetKBArticle(docType, number)
		if err != nil {
			return nil, fmt.Errorf("article store lookup failed: %w", err)
		}
		if article == nil {
			return nil, nil
		}
		return []retrieval.Result{{
			Kind:           retrieval.KindLegalArticle,
			Text:           article.Content,
			RawScore:       0.9,
			DocumentType:   article.DocumentType,
			HierarchyLevel: "article",
			ArticleNumber:  article.ArticleNumber,
		}}, nil
	}

	text := node.Content
	if path, err := a.graph.ArticleContext(ctx, docType, number); err == nil && path != nil && len(path.Ancestors) > 0 {
		var crumbs []string
		for _, anc := range path.Ancestors {
			if anc.Title != "" {
				crumbs = append(crumbs, anc.Title)
			}
		}
		if len(crumbs) > 0 {
			text = strings.Join(crumbs, " > ") + "\n" + text
		}
	}

	logger.Debug("Exact article match",
		zap.String("document", docType),
		zap.Int("article", number),
	)

	return []retrieval.Result{{
		Kind:           retrieval.KindLegalArticle,
		Text:           text,
		RawScore:       1.0,
		DocumentType:   docType,
		HierarchyLevel: "article",
		ArticleNumber:  number,
	}}, nil
}

// sweepHierarchy walks article > section > chapter > title > part,
// keeping a few matches per level. Graph errors at one level degrade to
// the next level instead of aborting.
func (a *Agent) sweepHierarchy(ctx context.Context, docType string, terms []string) []retrieval.Result {
	if len(terms) == 0 {
		return nil
	}

	var results []retrieval.Result
	for i, level := range hierarchyLevels {
		nodes, err := a.graph.SearchLevel(ctx, docType, level, terms, a.perLevel)
		if err != nil {
			logger.Warn("Hierarchy level search failed",
				zap.String("level", level),
				zap.Error(err),
			)
			continue
		}
		confidence := 1.0 - 0.1*float64(i)
		for _, node := range nodes {
			results = append(results, retrieval.Result{
				Kind:           retrieval.KindLegalArticle,
				Text:           node.Content,
				RawScore:       confidence,
				DocumentType:   node.DocumentType,
				HierarchyLevel: level,
				ArticleNumber:  node.Number,
			})
		}
	}
	return results
}

func (a *Agent) storeFallback(intent *extractor.Intent) ([]retrieval.Result, error) {
	articles, err := a.store.SearchKBArticles(intent.SignificantTerms, a.perLevel)
	if err != nil {
		return nil, fmt.Errorf("article store search failed: %w", err)
	}

	var results []retrieval.Result
	for _, article := range articles {
		results = append(results, retrieval.Result{
			Kind:           retrieval.KindLegalArticle,
			Text:           article.Content,
			RawScore:       0.9,
			DocumentType:   article.DocumentType,
			HierarchyLevel: article.HierarchyLevel,
			ArticleNumber:  article.ArticleNumber,
		})
	}
	return results, nil
}
