package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// Chunk is one embedded fragment of a plan document: a legal article, a
// regime explanation, or a curated Q&A entry.
type Chunk struct {
	ID               string
	Embedding        []float32
	Text             string
	DocumentType     string // LUOS, PDUS or KB
	HierarchyLevel   string // article, section, chapter, title, part
	ArticleNumber    int64
	Bairro           string
	Zona             string
	HasCertification bool
	HasFourthDistrict bool
	Timestamp        time.Time
}

type SearchResult struct {
	ChunkID          string
	Text             string
	DocumentType     string
	HierarchyLevel   string
	ArticleNumber    int64
	Bairro           string
	Zona             string
	HasCertification bool
	HasFourthDistrict bool
	Score            float32
}

// SearchFilter narrows a similarity search to a document partition or a
// hierarchy level. Empty fields are ignored.
type SearchFilter struct {
	DocumentType   string
	HierarchyLevel string
	ArticleNumber  int64
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Plano Diretor document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "document_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "hierarchy_level",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "article_number",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "bairro",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "zona",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "has_certification",
				DataType: entity.FieldTypeBool,
			},
			{
				Name:     "has_fourth_district",
				DataType: entity.FieldTypeBool,
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index definition: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	docTypes := make([]string, len(chunks))
	levels := make([]string, len(chunks))
	articles := make([]int64, len(chunks))
	bairros := make([]string, len(chunks))
	zonas := make([]string, len(chunks))
	certifications := make([]bool, len(chunks))
	fourthDistricts := make([]bool, len(chunks))
	timestamps := make([]int64, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		texts[i] = chunk.Text
		docTypes[i] = chunk.DocumentType
		levels[i] = chunk.HierarchyLevel
		articles[i] = chunk.ArticleNumber
		bairros[i] = chunk.Bairro
		zonas[i] = chunk.Zona
		certifications[i] = chunk.HasCertification
		fourthDistricts[i] = chunk.HasFourthDistrict
		timestamps[i] = chunk.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("document_type", docTypes),
		entity.NewColumnVarChar("hierarchy_level", levels),
		entity.NewColumnInt64("article_number", articles),
		entity.NewColumnVarChar("bairro", bairros),
		entity.NewColumnVarChar("zona", zonas),
		entity.NewColumnBool("has_certification", certifications),
		entity.NewColumnBool("has_fourth_district", fourthDistricts),
		entity.NewColumnInt64("timestamp", timestamps),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector DB", zap.Int("count", len(chunks)))

	return nil
}

// Search runs similarity search with optional partition filters. Scores
// are inner-product similarities over normalized embeddings, 0..1.
func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, filter SearchFilter) ([]SearchResult, error) {
	expr := ""
	if filter.DocumentType != "" {
		expr = fmt.Sprintf(`document_type == "%s"`, filter.DocumentType)
	}
	if filter.HierarchyLevel != "" {
		if expr != "" {
			expr += " && "
		}
		expr += fmt.Sprintf(`hierarchy_level == "%s"`, filter.HierarchyLevel)
	}
	if filter.ArticleNumber > 0 {
		if expr != "" {
			expr += " && "
		}
		expr += fmt.Sprintf(`article_number == %d`, filter.ArticleNumber)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "document_type", "hierarchy_level", "article_number", "bairro", "zona", "has_certification", "has_fourth_district"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			chunkIDCol := sr.Fields.GetColumn("chunk_id")
			textCol := sr.Fields.GetColumn("text")
			docTypeCol := sr.Fields.GetColumn("document_type")
			levelCol := sr.Fields.GetColumn("hierarchy_level")
			articleCol := sr.Fields.GetColumn("article_number")
			bairroCol := sr.Fields.GetColumn("bairro")
			zonaCol := sr.Fields.GetColumn("zona")
			certCol := sr.Fields.GetColumn("has_certification")
			fourthCol := sr.Fields.GetColumn("has_fourth_district")

			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			docType, _ := docTypeCol.Get(i)
			level, _ := levelCol.Get(i)
			article, _ := articleCol.Get(i)
			bairro, _ := bairroCol.Get(i)
			zona, _ := zonaCol.Get(i)
			cert, _ := certCol.Get(i)
			fourth, _ := fourthCol.Get(i)

			results = append(results, SearchResult{
				ChunkID:          chunkID.(string),
				Text:             text.(string),
				DocumentType:     docType.(string),
				HierarchyLevel:   level.(string),
				ArticleNumber:    article.(int64),
				Bairro:           bairro.(string),
				Zona:             zona.(string),
				HasCertification: cert.(bool),
				HasFourthDistrict: fourth.(bool),
				Score:            sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filters", expr),
	)

	return results, nil
}
