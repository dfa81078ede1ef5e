package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/pkg/logger"
	"github.com/chat-pd-poa/backend/pkg/utils"
)

// Entry is the cached envelope around a synthesized response.
type Entry struct {
	Payload    json.RawMessage `json:"payload"`
	Confidence float64         `json:"confidence"`
	Category   string          `json:"category"`
	StoredAt   time.Time       `json:"storedAt"`
	Hits       int64           `json:"hits"`
}

type Client struct {
	client *redis.Client
	policy Policy
}

func NewClient(host string, port int, password string, db int, policy Policy) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, policy: policy}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ResponseKey derives the cache key from the normalized query plus context.
func ResponseKey(query, contextStr string) string {
	return utils.HashString(utils.NormalizeQuery(query) + "|" + utils.NormalizeQuery(contextStr))
}

// SetResponse caches a synthesized response. Low-confidence and
// failure-looking payloads are silently skipped.
func (c *Client) SetResponse(ctx context.Context, query, contextStr string, payload interface{}, responseText string, confidence float64, category string) error {
	if !c.policy.Cacheable(confidence, responseText) {
		logger.Debug("Response not cacheable",
			zap.Float64("confidence", confidence),
			zap.String("category", category),
		)
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	entry := Entry{
		Payload:    raw,
		Confidence: confidence,
		Category:   category,
		StoredAt:   time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	ttl := c.policy.TTLFor(confidence, category)
	key := ResponseKey(query, contextStr)
	if err := c.client.Set(ctx, fmt.Sprintf("query:%s", key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set response cache: %w", err)
	}

	logger.Debug("Response cached",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
		zap.Float64("confidence", confidence),
	)
	return nil
}

// GetResponse retrieves a cached response into payload; returns false on miss.
func (c *Client) GetResponse(ctx context.Context, query, contextStr string, payload interface{}) (bool, error) {
	key := ResponseKey(query, contextStr)
	data, err := c.client.Get(ctx, fmt.Sprintf("query:%s", key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get response cache: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	if err := json.Unmarshal(entry.Payload, payload); err != nil {
		return false, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	c.client.Incr(ctx, fmt.Sprintf("query:%s:hits", key))

	logger.Debug("Response cache hit", zap.String("key", key))
	return true, nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}

// Invalidate drops all cached responses, used after content reingestion.
func (c *Client) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "query:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Response cache invalidated")
	return nil
}
