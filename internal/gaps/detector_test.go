package gaps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCategoryAndTopic(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		category string
		topic    string
	}{
		{
			name:     "zoning query",
			query:    "Qual o zoneamento da avenida Ipiranga?",
			category: "zoneamento",
			topic:    "zonas_uso_solo",
		},
		{
			name:     "coefficient query",
			query:    "Qual o coeficiente de aproveitamento do terreno?",
			category: "coeficientes",
			topic:    "coeficientes_urbanisticos",
		},
		{
			name:     "height query",
			query:    "Quantos pavimentos posso construir?",
			category: "alturas",
			topic:    "altura_edificacoes",
		},
		{
			name:     "unmatched query",
			query:    "Quando o documento foi publicado?",
			category: "geral",
			topic:    "topico_geral",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(Failure{Query: tt.query, Response: "resposta parcial sobre o tema", Confidence: 0.5})
			assert.Equal(t, tt.category, c.Category)
			assert.Equal(t, tt.topic, c.Topic)
		})
	}
}

func TestClassifySeverityBands(t *testing.T) {
	response := "resposta parcial com algum conteúdo útil"

	assert.Equal(t, SeverityCritical, Classify(Failure{Query: "q", Response: response, Confidence: 0.10}).Severity)
	assert.Equal(t, SeverityHigh, Classify(Failure{Query: "q", Response: response, Confidence: 0.35}).Severity)
	assert.Equal(t, SeverityMedium, Classify(Failure{Query: "q", Response: response, Confidence: 0.50}).Severity)
	assert.Equal(t, SeverityLow, Classify(Failure{Query: "q", Response: response, Confidence: 0.65}).Severity)
}

func TestEmptyOrAdmittedFailureIsCritical(t *testing.T) {
	assert.Equal(t, SeverityCritical, Classify(Failure{Query: "q", Response: "", Confidence: 0.55}).Severity)
	assert.Equal(t, SeverityCritical, Classify(Failure{Query: "q", Response: "Não encontrei nada sobre isso.", Confidence: 0.55}).Severity)
}

func TestPriorityFormula(t *testing.T) {
	// medium severity, confidence 0.5: 1 + 4 + round(0.5*3) = 7.
	c := Classify(Failure{Query: "qual a altura", Response: "resposta parcial com algum conteúdo", Confidence: 0.5})
	assert.Equal(t, SeverityMedium, c.Severity)
	assert.False(t, c.Escalate)
	assert.Equal(t, 7, c.Priority)

	// low severity, confidence 0.65: 1 + 2 + round(0.35*3) = 4.
	c = Classify(Failure{Query: "qual a altura", Response: "resposta parcial com algum conteúdo", Confidence: 0.65})
	assert.Equal(t, 4, c.Priority)
}

func TestEscalationPinsPriorityAtTen(t *testing.T) {
	c := Classify(Failure{
		Query:      "qual o coeficiente da região",
		Response:   "não sei responder essa pergunta",
		Confidence: 0.15,
	})

	assert.True(t, c.Escalate)
	assert.Equal(t, 10, c.Priority)
	assert.Equal(t, SeverityCritical, c.Severity)
}

func TestExplicitCategoryOverridesInference(t *testing.T) {
	c := Classify(Failure{
		Query:      "qual a altura máxima do bairro",
		Response:   "resposta parcial com algum conteúdo",
		Confidence: 0.5,
		Category:   "mobilidade",
	})

	assert.Equal(t, "mobilidade", c.Category)
	assert.Equal(t, suggestionsByCategory["mobilidade"], c.SuggestedAction)
}
