package models

import "time"

// RegimeRecord is one row of the urban-regime parameter table: the
// construction rules for one zone inside one neighborhood. A bairro can
// span several zones, so lookups by bairro return one record per zone.
type RegimeRecord struct {
	ID                         int
	Bairro                     string
	Zona                       string
	AlturaMaxima               *float64
	CoefAproveitamentoBasico   *float64
	CoefAproveitamentoMaximo   *float64
	AreaMinimaLote             *float64
	TestadaMinimaLote          *float64
	TaxaPermeabilidadeAcima1500 *float64
	TaxaPermeabilidadeAte1500  *float64
	RecuoJardim                *float64
	AfastamentoFrente          string
	AfastamentoLateral         string
	AfastamentoFundos          string
	ComercioVarejistaInocuo    string
	ComercioAtacadistaIA1      string
	ServicoInocuo              string
	IndustriaInocua            string
	NivelControleEntretenimento string
}

// ZotInfo summarizes the zone mix of one neighborhood.
type ZotInfo struct {
	ID                int
	Bairro            string
	Zona              string
	TotalZonasNoBairro int
	Caracteristicas   string
	Restricoes        string
	Incentivos        string
}

// RiskRecord is one disaster-risk entry for a neighborhood.
type RiskRecord struct {
	ID         int
	Bairro     string
	TipoRisco  string
	NivelRisco string
	Descricao  string
}

// KBArticle is a knowledge-base entry: a legal article or curated Q&A
// chunk searched by the fallback retrievers.
type KBArticle struct {
	ID            string
	DocumentType  string
	ArticleNumber int
	Title         string
	Content       string
	HierarchyLevel string
	Keywords      string
	CreatedAt     time.Time
}

// KnowledgeGap records a pipeline failure for content remediation.
type KnowledgeGap struct {
	ID                   string
	Category             string
	Topic                string
	Severity             string
	FailedQuery          string
	LastResponse         string
	ConfidenceAtFailure  float64
	SuggestedAction      string
	Priority             int
	Status               string
	SimilarFailuresCount int
	Escalated            bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SessionTurn is one exchange in a conversation session.
type SessionTurn struct {
	ID         int
	SessionID  string
	TurnNumber int
	Query      string
	Response   string
	Confidence float64
	CreatedAt  time.Time
}

// SweepItem is the per-neighborhood outcome of an administrative sweep.
type SweepItem struct {
	Bairro     string
	Confidence float64
	Quality    float64
	DurationMS int64
	Error      string
}

// SweepReport aggregates a full neighborhood sweep run.
type SweepReport struct {
	RunID         string
	Total         int
	Succeeded     int
	Failed        int
	AvgConfidence float64
	Items         []SweepItem
	StartedAt     time.Time
	FinishedAt    time.Time
}
