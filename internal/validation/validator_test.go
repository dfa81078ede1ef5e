package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericalMismatchBetweenAgents(t *testing.T) {
	v := New(10, 0.4)

	result := v.Validate([]AgentResponse{
		{
			Agent:      "structured",
			Response:   "A altura máxima permitida no bairro é de 50 metros.",
			Confidence: 0.9,
			HasData:    true,
		},
		{
			Agent:      "semantic",
			Response:   "Segundo o plano, a altura máxima chega a 90 metros nessa zona.",
			Confidence: 0.8,
			HasData:    true,
		},
	})

	require.Len(t, result.Contradictions, 1)
	c := result.Contradictions[0]
	assert.Equal(t, "numerical_mismatch", c.Type)
	assert.Equal(t, []string{"structured", "semantic"}, c.Agents)
	assert.Equal(t, []string{"50", "90"}, c.Values)
	assert.Equal(t, "altura", c.Context)
	assert.Equal(t, StatusContradictory, result.Status)
}

func TestSmallDifferenceIsNotAContradiction(t *testing.T) {
	v := New(10, 0.4)

	result := v.Validate([]AgentResponse{
		{Agent: "structured", Response: "A altura máxima é de 50 metros no local.", Confidence: 0.9, HasData: true},
		{Agent: "semantic", Response: "A altura permitida fica em 55 metros aproximadamente.", Confidence: 0.8, HasData: true},
	})

	assert.Empty(t, result.Contradictions)
	assert.Equal(t, StatusValid, result.Status)
}

func TestNoSharedContextNoContradiction(t *testing.T) {
	v := New(10, 0.4)

	// 50 vs 90, but only one response mentions altura.
	result := v.Validate([]AgentResponse{
		{Agent: "structured", Response: "A altura máxima é de 50 metros no bairro.", Confidence: 0.9, HasData: true},
		{Agent: "semantic", Response: "Existem 90 bairros cadastrados na cidade de Porto Alegre.", Confidence: 0.8, HasData: true},
	})

	assert.Empty(t, result.Contradictions)
}

func TestErrorAndShortResponsesAreFlagged(t *testing.T) {
	v := New(10, 0.4)

	result := v.Validate([]AgentResponse{
		{Agent: "structured", Error: "connection refused"},
		{Agent: "semantic", Response: "ok"},
		{Agent: "legal", Response: "O artigo 81 trata dos limites de altura das edificações.", Confidence: 0.85, HasData: true},
	})

	require.Len(t, result.Issues, 2)
	assert.Equal(t, "agent_error", result.Issues[0].Reason)
	assert.Equal(t, "response_too_short", result.Issues[1].Reason)
	assert.Equal(t, StatusPartial, result.Status)
}

func TestBetaGateBelowThreshold(t *testing.T) {
	v := New(10, 0.4)

	// No data anywhere: mean confidence drops, then the no-data
	// dampeners push it under the beta threshold.
	result := v.Validate([]AgentResponse{
		{Agent: "structured", Response: "Não possuo dados estruturados disponíveis aqui.", Confidence: 0.2},
		{Agent: "semantic", Response: "Nenhum trecho relevante localizado para o tema.", Confidence: 0.2},
	})

	assert.True(t, result.ShouldReturnBeta)
	assert.Less(t, result.Confidence, 0.4)
}

func TestAgreementRaisesConfidence(t *testing.T) {
	v := New(10, 0.4)

	long := "A zona ZOT 08.3 - A do bairro Azenha admite altura máxima de 52 metros e coeficiente de aproveitamento básico de 3,6 conforme o regime urbanístico vigente."
	result := v.Validate([]AgentResponse{
		{Agent: "structured", Response: long, Confidence: 0.8, HasData: true},
		{Agent: "semantic", Response: long, Confidence: 0.8, HasData: true},
	})

	assert.False(t, result.ShouldReturnBeta)
	assert.Greater(t, result.Confidence, 0.8)
	// All four shared topic terms appear in both responses.
	assert.Equal(t, 1.0, result.Consistency)
}

func TestConsistencyZeroWithSingleAgent(t *testing.T) {
	v := New(10, 0.4)

	result := v.Validate([]AgentResponse{
		{Agent: "structured", Response: "A altura máxima na zona é de 52 metros.", Confidence: 0.9, HasData: true},
	})

	assert.Equal(t, 0.0, result.Consistency)
	assert.Empty(t, result.Contradictions)
}

func TestDescribeContradiction(t *testing.T) {
	c := Contradiction{
		Type:    "numerical_mismatch",
		Agents:  []string{"structured", "semantic"},
		Values:  []string{"50", "90"},
		Context: "altura",
	}

	assert.Equal(t, "numerical_mismatch: altura (structured=50, semantic=90)", Describe(c))
}
