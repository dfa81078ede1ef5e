package gaps

import (
	"math"
	"strings"
)

// Failure is one low-confidence pipeline outcome to classify.
type Failure struct {
	Query      string
	Response   string
	Confidence float64
	// Category overrides the keyword inference when the caller already
	// knows the failure's domain.
	Category string
}

// Classification is the pure verdict over a failure: everything needed
// to create or update a gap record, with no storage involved.
type Classification struct {
	Category        string
	Topic           string
	Severity        string
	Escalate        bool
	Priority        int
	SuggestedAction string
}

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// categoryRules is ordered; the first category whose keyword matches
// wins.
var categoryRules = []struct {
	category string
	keywords []string
}{
	{"zoneamento", []string{"zoneamento", "zona", "zot", "uso do solo"}},
	{"coeficientes", []string{"coeficiente", "aproveitamento", "ocupação", "taxa"}},
	{"alturas", []string{"altura", "gabarito", "andar", "pavimento"}},
	{"bairros", []string{"bairro", "região", "localização", "onde fica"}},
	{"mobilidade", []string{"mobilidade", "transporte", "trânsito", "ciclovia"}},
	{"meio_ambiente", []string{"ambiental", "meio ambiente", "verde", "árvore"}},
	{"habitacao", []string{"habitação", "moradia", "zeis", "habitacional"}},
	{"patrimonio", []string{"patrimônio", "histórico", "tombamento", "cultural"}},
}

// topicRules is ordered the same way: first match wins.
var topicRules = []struct {
	topic    string
	keywords []string
}{
	{"coeficientes_urbanisticos", []string{"coeficiente", "aproveitamento"}},
	{"altura_edificacoes", []string{"altura", "gabarito", "pavimento"}},
	{"informacoes_bairros", []string{"bairro", "região"}},
	{"zonas_uso_solo", []string{"zona", "zot", "zoneamento"}},
	{"localizacao_espacial", []string{"onde", "localiza", "endereço"}},
}

// noAnswerMarkers identify responses that admit failure outright.
var noAnswerMarkers = []string{
	"não tenho", "não consigo", "não encontrei",
}

var escalationMarkers = []string{
	"não sei", "não tenho informações", "não consegui encontrar",
}

var suggestionsByCategory = map[string]string{
	"zoneamento":    "Revisar a cobertura das tabelas de zoneamento e a descrição das ZOTs",
	"coeficientes":  "Complementar os dados de coeficientes de aproveitamento no regime urbanístico",
	"alturas":       "Verificar os limites de altura cadastrados para as zonas citadas",
	"bairros":       "Conferir o cadastro de bairros e o mapeamento bairro-zona",
	"mobilidade":    "Adicionar conteúdo sobre mobilidade urbana do plano diretor",
	"meio_ambiente": "Adicionar conteúdo sobre diretrizes ambientais do plano",
	"habitacao":     "Adicionar conteúdo sobre política habitacional e ZEIS",
	"patrimonio":    "Adicionar conteúdo sobre patrimônio histórico e cultural",
	"geral":         "Analisar a pergunta e ampliar a base de conhecimento correspondente",
}

// Classify derives category, topic, severity, escalation and priority
// from a failure. Deterministic and storage-free.
func Classify(f Failure) Classification {
	lowerQuery := strings.ToLower(f.Query)
	lowerResponse := strings.ToLower(f.Response)

	category := f.Category
	if category == "" {
		category = inferCategory(lowerQuery)
	}

	topic := inferTopic(lowerQuery)
	severity := inferSeverity(f.Confidence, lowerResponse)
	escalate := severity == SeverityCritical ||
		f.Confidence < 0.30 ||
		containsAny(lowerResponse, escalationMarkers)

	priority := computePriority(severity, f.Confidence, escalate)
	if escalate {
		priority = 10
	}

	action := suggestionsByCategory[category]
	if action == "" {
		action = suggestionsByCategory["geral"]
	}

	return Classification{
		Category:        category,
		Topic:           topic,
		Severity:        severity,
		Escalate:        escalate,
		Priority:        priority,
		SuggestedAction: action,
	}
}

func inferCategory(lowerQuery string) string {
	for _, rule := range categoryRules {
		if containsAny(lowerQuery, rule.keywords) {
			return rule.category
		}
	}
	return "geral"
}

func inferTopic(lowerQuery string) string {
	for _, rule := range topicRules {
		if containsAny(lowerQuery, rule.keywords) {
			return rule.topic
		}
	}
	return "topico_geral"
}

func inferSeverity(confidence float64, lowerResponse string) string {
	switch {
	case confidence < 0.20, lowerResponse == "", containsAny(lowerResponse, noAnswerMarkers):
		return SeverityCritical
	case confidence < 0.40:
		return SeverityHigh
	case confidence < 0.60:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// computePriority: 1 + severity base + confidence deficit + escalation
// bump, capped at 10.
func computePriority(severity string, confidence float64, escalate bool) int {
	base := map[string]int{
		SeverityCritical: 8,
		SeverityHigh:     6,
		SeverityMedium:   4,
		SeverityLow:      2,
	}[severity]

	priority := 1 + base + int(math.Round((1-confidence)*3))
	if escalate {
		priority += 2
	}
	if priority > 10 {
		priority = 10
	}
	return priority
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
