package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/kg/builder"
	"github.com/chat-pd-poa/backend/internal/llm"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/internal/storage/sqlite"
	"github.com/chat-pd-poa/backend/internal/vector/milvus"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// Processor ingests the legal corpus: fetches a law's HTML, splits it
// into articles, persists them, embeds the chunks and rebuilds the
// hierarchy graph.
type Processor struct {
	db         *sqlite.Client
	vectorDB   *milvus.Client
	llmClient  *llm.Client
	kgBuilder  *builder.Builder
	httpClient *http.Client
	chunkSize  int
}

// Report summarizes one ingestion run.
type Report struct {
	DocumentType string `json:"documentType"`
	Articles     int    `json:"articles"`
	Chunks       int    `json:"chunks"`
	GraphSynced  bool   `json:"graphSynced"`
}

var (
	articleHeaderRe  = regexp.MustCompile(`(?m)^\s*Art\.?\s*(\d+)[ºª°.]?\s*[-–—.]?\s*`)
	hierarchyHeaderRe = regexp.MustCompile(`(?m)^\s*(TÍTULO|CAPÍTULO|SEÇÃO|PARTE)\s+([IVXLC\d]+)`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

var hierarchyLevels = map[string]string{
	"TÍTULO":   "title",
	"CAPÍTULO": "chapter",
	"SEÇÃO":    "section",
	"PARTE":    "part",
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, llmClient *llm.Client, kgBuilder *builder.Builder) *Processor {
	return &Processor{
		db:        db,
		vectorDB:  vectorDB,
		llmClient: llmClient,
		kgBuilder: kgBuilder,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		chunkSize: 1500,
	}
}

// IngestURL fetches a law page and runs the full pipeline on its text.
// documentType is LUOS or PDUS.
func (p *Processor) IngestURL(ctx context.Context, url, documentType string) (*Report, error) {
	logger.Info("Ingesting legal document",
		zap.String("url", url),
		zap.String("document_type", documentType),
	)

	html, err := p.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}

	text := p.cleanHTML(html)
	if text == "" {
		return nil, fmt.Errorf("no content extracted from %s", url)
	}

	return p.IngestText(ctx, text, documentType)
}

// IngestText runs the parse/persist/embed/graph pipeline over raw law
// text that the caller already has.
func (p *Processor) IngestText(ctx context.Context, text, documentType string) (*Report, error) {
	articles := p.parseArticles(text, documentType)
	if len(articles) == 0 {
		return nil, fmt.Errorf("no articles found in document")
	}

	for i := range articles {
		if err := p.db.InsertKBArticle(&articles[i]); err != nil {
			logger.Error("Failed to persist article",
				zap.Int("article", articles[i].ArticleNumber),
				zap.Error(err),
			)
		}
	}

	chunks, err := p.embedArticles(ctx, articles)
	if err != nil {
		return nil, err
	}

	report := &Report{
		DocumentType: documentType,
		Articles:     len(articles),
		Chunks:       len(chunks),
	}

	if p.kgBuilder != nil {
		if err := p.kgBuilder.BuildFromArticles(ctx, articles); err != nil {
			logger.Warn("Hierarchy graph sync failed", zap.Error(err))
		} else {
			report.GraphSynced = true
		}
	}

	logger.Info("Legal document ingested",
		zap.String("document_type", documentType),
		zap.Int("articles", report.Articles),
		zap.Int("chunks", report.Chunks),
	)

	return report, nil
}

func (p *Processor) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "chat-pd-poa-ingester/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	html, err := doc.Html()
	if err != nil {
		return "", err
	}
	return html, nil
}

func (p *Processor) cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	// Keep paragraph boundaries: article headers only split correctly
	// when each <p> lands on its own line.
	var b strings.Builder
	doc.Find("body p, body h1, body h2, body h3, body li").Each(func(i int, s *goquery.Selection) {
		line := strings.TrimSpace(whitespaceRe.ReplaceAllString(s.Text(), " "))
		if line != "" {
			b.WriteString(line)
			b.WriteString("\n")
		}
	})

	text := b.String()
	if text == "" {
		text = strings.TrimSpace(whitespaceRe.ReplaceAllString(doc.Find("body").Text(), " "))
	}
	return text
}

// parseArticles splits the law text at "Art. N" headers, tracking the
// enclosing TÍTULO/CAPÍTULO/SEÇÃO so each article knows its position in
// the hierarchy.
func (p *Processor) parseArticles(text, documentType string) []models.KBArticle {
	var articles []models.KBArticle

	lines := strings.Split(text, "\n")
	currentHierarchy := ""
	var current *models.KBArticle

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(current.Content)
		if current.Content != "" {
			articles = append(articles, *current)
		}
		current = nil
	}

	for _, line := range lines {
		if m := hierarchyHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			currentHierarchy = hierarchyLevels[m[1]]
			articles = append(articles, models.KBArticle{
				ID:             uuid.New().String(),
				DocumentType:   documentType,
				Title:          strings.TrimSpace(line),
				Content:        strings.TrimSpace(line),
				HierarchyLevel: currentHierarchy,
				Keywords:       keywordsFor(line),
				CreatedAt:      time.Now(),
			})
			continue
		}

		if m := articleHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			number, _ := strconv.Atoi(m[1])
			current = &models.KBArticle{
				ID:             fmt.Sprintf("%s-art-%d", strings.ToLower(documentType), number),
				DocumentType:   documentType,
				ArticleNumber:  number,
				Title:          fmt.Sprintf("Art. %d", number),
				Content:        strings.TrimSpace(articleHeaderRe.ReplaceAllString(line, "")),
				HierarchyLevel: "article",
				CreatedAt:      time.Now(),
			}
			continue
		}

		if current != nil {
			current.Content += "\n" + line
		}
	}
	flush()

	for i := range articles {
		if articles[i].Keywords == "" {
			articles[i].Keywords = keywordsFor(articles[i].Content)
		}
	}

	return articles
}

// embedArticles chunks long articles at sentence boundaries, embeds the
// chunks in one batch and inserts them into the vector store.
func (p *Processor) embedArticles(ctx context.Context, articles []models.KBArticle) ([]milvus.Chunk, error) {
	var texts []string
	var chunks []milvus.Chunk

	for _, article := range articles {
		for i, piece := range p.chunkContent(article.Content) {
			texts = append(texts, piece)
			chunks = append(chunks, milvus.Chunk{
				ID:               fmt.Sprintf("%s_chunk_%d", article.ID, i),
				Text:             piece,
				DocumentType:     article.DocumentType,
				HierarchyLevel:   article.HierarchyLevel,
				ArticleNumber:    int64(article.ArticleNumber),
				HasCertification: containsAny(piece, "certificação", "sustentabilidade", "certificada"),
				HasFourthDistrict: containsAny(piece, "4º distrito", "quarto distrito"),
				Timestamp:        time.Now(),
			})
		}
	}

	if len(chunks) == 0 {
		return nil, nil
	}

	embeddings, err := p.llmClient.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := p.vectorDB.Insert(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}

	return chunks, nil
}

// chunkContent splits oversized article bodies at sentence boundaries.
// Short articles stay whole.
func (p *Processor) chunkContent(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= p.chunkSize {
		return []string{content}
	}

	doc, err := prose.NewDocument(content,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("Sentence segmentation failed, chunking by length", zap.Error(err))
		return chunkByLength(content, p.chunkSize)
	}

	var chunks []string
	var b strings.Builder
	for _, sentence := range doc.Sentences() {
		if b.Len()+len(sentence.Text) > p.chunkSize && b.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(b.String()))
			b.Reset()
		}
		b.WriteString(sentence.Text)
		b.WriteString(" ")
	}
	if b.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(b.String()))
	}
	return chunks
}

func chunkByLength(content string, size int) []string {
	words := strings.Fields(content)
	var chunks []string
	var b strings.Builder
	for _, word := range words {
		if b.Len()+len(word)+1 > size && b.Len() > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteString(word)
		b.WriteString(" ")
	}
	if b.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(b.String()))
	}
	return chunks
}

// keywordsFor extracts the salient nouns of a passage for the keyword
// column, falling back to the longest words when tagging fails.
func keywordsFor(text string) string {
	const limit = 10

	doc, err := prose.NewDocument(text, prose.WithExtraction(false))
	if err != nil {
		return fallbackKeywords(text, limit)
	}

	seen := make(map[string]bool)
	var words []string
	for _, tok := range doc.Tokens() {
		if !strings.HasPrefix(tok.Tag, "NN") {
			continue
		}
		w := strings.ToLower(tok.Text)
		if len([]rune(w)) <= 3 || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
		if len(words) >= limit {
			break
		}
	}
	if len(words) == 0 {
		return fallbackKeywords(text, limit)
	}
	return strings.Join(words, ",")
}

func fallbackKeywords(text string, limit int) string {
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:()[]§")
		if len([]rune(w)) <= 4 || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
		if len(words) >= limit {
			break
		}
	}
	return strings.Join(words, ",")
}

func containsAny(text string, terms ...string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
