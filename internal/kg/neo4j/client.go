package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/pkg/circuitbreaker"
	"github.com/chat-pd-poa/backend/pkg/logger"
	"github.com/chat-pd-poa/backend/pkg/retry"
)

type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

// ArticleNode is one node of the legal hierarchy. Level is one of
// article, section, chapter, title, part.
type ArticleNode struct {
	ID           string
	DocumentType string
	Level        string
	Number       int
	Title        string
	Content      string
}

// HierarchyPath situates an article inside its law: the chain of
// ancestor nodes from part down to the article itself.
type HierarchyPath struct {
	Article   ArticleNode
	Ancestors []ArticleNode
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// UpsertNode creates or refreshes a hierarchy node and links it to its
// parent when one is given.
func (c *Client) UpsertNode(ctx context.Context, node *ArticleNode, parentID string) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	query := `
		MERGE (n:LegalNode {id: $id})
		SET n.document_type = $document_type,
		    n.level = $level,
		    n.number = $number,
		    n.title = $title,
		    n.content = $content,
		    n.updated_at = timestamp()
	`
	params := map[string]interface{}{
		"id":            node.ID,
		"document_type": node.DocumentType,
		"level":         node.Level,
		"number":        node.Number,
		"title":         node.Title,
		"content":       node.Content,
	}

	_, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("failed to upsert node: %w", err)
	}

	if parentID != "" {
		linkQuery := `
			MATCH (p:LegalNode {id: $parent_id})
			MATCH (n:LegalNode {id: $id})
			MERGE (p)-[:CONTAINS]->(n)
		`
		_, err = session.Run(ctx, linkQuery, map[string]interface{}{
			"parent_id": parentID,
			"id":        node.ID,
		})
		if err != nil {
			return fmt.Errorf("failed to link node to parent: %w", err)
		}
	}

	logger.Debug("Legal node upserted",
		zap.String("id", node.ID),
		zap.String("level", node.Level),
		zap.Int("number", node.Number),
	)

	return nil
}

// FindArticle returns the article node for an exact (document, number)
// pair, or nil when the article is not in the graph.
func (c *Client) FindArticle(ctx context.Context, documentType string, number int) (*ArticleNode, error) {
	var found *ArticleNode

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (n:LegalNode {document_type: $document_type, level: 'article', number: $number})
			RETURN n.id, n.title, n.content
			LIMIT 1
		`
		result, err := session.Run(ctx, query, map[string]interface{}{
			"document_type": documentType,
			"number":        number,
		})
		if err != nil {
			return fmt.Errorf("failed to find article: %w", err)
		}

		if result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("n.id")
			title, _ := record.Get("n.title")
			content, _ := record.Get("n.content")
			found = &ArticleNode{
				ID:           asString(id),
				DocumentType: documentType,
				Level:        "article",
				Number:       number,
				Title:        asString(title),
				Content:      asString(content),
			}
		}
		return result.Err()
	})

	if err != nil {
		return nil, err
	}
	return found, nil
}

// SearchLevel finds nodes at one hierarchy level whose content mentions
// all given terms.
func (c *Client) SearchLevel(ctx context.Context, documentType, level string, terms []string, limit int) ([]ArticleNode, error) {
	if limit <= 0 {
		limit = 3
	}

	var nodes []ArticleNode

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (n:LegalNode {level: $level})
			WHERE ($document_type = '' OR n.document_type = $document_type)
			  AND ALL(term IN $terms WHERE toLower(n.content) CONTAINS toLower(term))
			RETURN n.id, n.document_type, n.number, n.title, n.content
			ORDER BY n.number
			LIMIT $limit
		`
		result, err := session.Run(ctx, query, map[string]interface{}{
			"document_type": documentType,
			"level":         level,
			"terms":         terms,
			"limit":         limit,
		})
		if err != nil {
			return fmt.Errorf("failed to search level %s: %w", level, err)
		}

		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("n.id")
			docType, _ := record.Get("n.document_type")
			number, _ := record.Get("n.number")
			title, _ := record.Get("n.title")
			content, _ := record.Get("n.content")

			nodes = append(nodes, ArticleNode{
				ID:           asString(id),
				DocumentType: asString(docType),
				Level:        level,
				Number:       asInt(number),
				Title:        asString(title),
				Content:      asString(content),
			})
		}
		return result.Err()
	})

	if err != nil {
		return nil, err
	}

	logger.Debug("Legal level search completed",
		zap.String("level", level),
		zap.Int("results", len(nodes)),
	)

	return nodes, nil
}

// ArticleContext walks the CONTAINS chain upward from an article so
// responses can cite the chapter and title it belongs to.
func (c *Client) ArticleContext(ctx context.Context, documentType string, number int) (*HierarchyPath, error) {
	var path *HierarchyPath

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (a:LegalNode {document_type: $document_type, level: 'article', number: $number})
			OPTIONAL MATCH chain = (root:LegalNode)-[:CONTAINS*]->(a)
			WITH a, chain
			ORDER BY length(chain) DESC
			LIMIT 1
			RETURN a.id, a.title, a.content,
			       [n IN nodes(chain) WHERE n <> a | {id: n.id, level: n.level, number: n.number, title: n.title}] AS ancestors
		`
		result, err := session.Run(ctx, query, map[string]interface{}{
			"document_type": documentType,
			"number":        number,
		})
		if err != nil {
			return fmt.Errorf("failed to get article context: %w", err)
		}

		if result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("a.id")
			title, _ := record.Get("a.title")
			content, _ := record.Get("a.content")
			rawAncestors, _ := record.Get("ancestors")

			path = &HierarchyPath{
				Article: ArticleNode{
					ID:           asString(id),
					DocumentType: documentType,
					Level:        "article",
					Number:       number,
					Title:        asString(title),
					Content:      asString(content),
				},
			}

			if list, ok := rawAncestors.([]interface{}); ok {
				for _, item := range list {
					if m, ok := item.(map[string]interface{}); ok {
						path.Ancestors = append(path.Ancestors, ArticleNode{
							ID:     asString(m["id"]),
							Level:  asString(m["level"]),
							Number: asInt(m["number"]),
							Title:  asString(m["title"]),
						})
					}
				}
			}
		}
		return result.Err()
	})

	if err != nil {
		return nil, err
	}
	return path, nil
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
