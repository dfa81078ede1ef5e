package builder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/kg/neo4j"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/internal/storage/sqlite"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// Builder materializes the legal hierarchy graph from ingested articles.
type Builder struct {
	db       *sqlite.Client
	kgClient *neo4j.Client
}

func NewBuilder(db *sqlite.Client, kgClient *neo4j.Client) *Builder {
	return &Builder{
		db:       db,
		kgClient: kgClient,
	}
}

// BuildFromArticles upserts one graph node per article and hangs every
// article under its law's root node. Higher hierarchy levels (chapters,
// titles) arrive as their own KBArticle rows and are linked the same way.
func (b *Builder) BuildFromArticles(ctx context.Context, articles []models.KBArticle) error {
	roots := make(map[string]string)

	for _, article := range articles {
		rootID, ok := roots[article.DocumentType]
		if !ok {
			rootID = "law-" + article.DocumentType
			root := &neo4j.ArticleNode{
				ID:           rootID,
				DocumentType: article.DocumentType,
				Level:        "law",
				Title:        article.DocumentType,
			}
			if err := b.kgClient.UpsertNode(ctx, root, ""); err != nil {
				return fmt.Errorf("failed to upsert law root %s: %w", article.DocumentType, err)
			}
			roots[article.DocumentType] = rootID
		}

		level := article.HierarchyLevel
		if level == "" {
			level = "article"
		}

		node := &neo4j.ArticleNode{
			ID:           nodeID(article),
			DocumentType: article.DocumentType,
			Level:        level,
			Number:       article.ArticleNumber,
			Title:        article.Title,
			Content:      article.Content,
		}
		if err := b.kgClient.UpsertNode(ctx, node, rootID); err != nil {
			logger.Error("Failed to upsert legal node",
				zap.String("id", node.ID),
				zap.Error(err),
			)
			continue
		}
	}

	logger.Info("Legal hierarchy built",
		zap.Int("articles", len(articles)),
		zap.Int("documents", len(roots)),
	)

	return nil
}

// SyncFromStore rebuilds the graph from everything currently in the
// kb_articles table.
func (b *Builder) SyncFromStore(ctx context.Context, searchTerms []string) error {
	articles, err := b.db.SearchKBArticles(searchTerms, 10000)
	if err != nil {
		return fmt.Errorf("failed to load kb articles: %w", err)
	}
	return b.BuildFromArticles(ctx, articles)
}

func nodeID(article models.KBArticle) string {
	if article.ID != "" {
		return article.ID
	}
	if article.ArticleNumber > 0 {
		return fmt.Sprintf("%s-art-%d", article.DocumentType, article.ArticleNumber)
	}
	return uuid.New().String()
}
