package retrieval

import (
	"context"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/storage/models"
)

// SourceKind identifies which retrieval path produced a candidate fact.
type SourceKind string

const (
	KindStructuredTable SourceKind = "structured_table"
	KindRegimeChunk     SourceKind = "regime_chunk"
	KindLegalArticle    SourceKind = "legal_article"
	KindQAKnowledge     SourceKind = "qa_knowledge"
	KindTextualFallback SourceKind = "textual_fallback"
)

// Result is one candidate fact. Structured rows carry a 1.0 raw score;
// vector matches carry their similarity.
type Result struct {
	Kind     SourceKind
	Text     string
	RawScore float64

	Regime *models.RegimeRecord
	Risk   *models.RiskRecord
	Zot    *models.ZotInfo

	DocumentType      string
	HierarchyLevel    string
	ArticleNumber     int
	Bairro            string
	Zona              string
	HasCertification  bool
	HasFourthDistrict bool
}

// Agent is a retrieval source. Retrieve returns an empty slice for
// "no data"; errors are reserved for transport failure.
type Agent interface {
	Name() string
	Retrieve(ctx context.Context, intent *extractor.Intent) ([]Result, error)
}
