package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/retrieval"
)

func certIntent() *extractor.Intent {
	return &extractor.Intent{
		Query:            "Como funciona a certificação em sustentabilidade ambiental?",
		QueryType:        extractor.TypeCertification,
		SignificantTerms: []string{"certificação", "sustentabilidade", "ambiental"},
	}
}

func TestCertificationBoostReordersResults(t *testing.T) {
	// A weaker raw match about certification must outrank a stronger raw
	// match that says nothing about it.
	results := []retrieval.Result{
		{Text: "Disposições gerais sobre parcelamento do solo urbano.", RawScore: 0.5},
		{Text: "A certificação em sustentabilidade ambiental concede acréscimos de altura.", RawScore: 0.3},
	}

	scored, _ := Score(results, certIntent())

	require.Len(t, scored, 2)
	assert.Contains(t, scored[0].Text, "certificação")
	assert.Greater(t, scored[0].ContextualScore, scored[1].ContextualScore)
	// 0.3 * (1+0.8) * (1+0.8) = 0.972 > 0.5 at base score.
	assert.InDelta(t, 0.972, scored[0].ContextualScore, 0.001)
	assert.InDelta(t, 0.5, scored[1].ContextualScore, 0.001)
}

func TestSpecificQueryLeavesNeutralChunksAtBaseScore(t *testing.T) {
	// The generic-terms penalty keys on the query, not the candidate: a
	// concrete construction question must not demote chunks that simply
	// lack the boost vocabulary.
	intent := &extractor.Intent{
		Query:            "Qual a altura máxima do bairro Azenha?",
		QueryType:        extractor.TypeConstruction,
		SignificantTerms: []string{"altura", "máxima", "azenha"},
	}
	results := []retrieval.Result{
		{Text: "Disposições transitórias do parcelamento do solo.", RawScore: 0.5},
	}

	scored, _ := Score(results, intent)

	require.Len(t, scored, 1)
	assert.InDelta(t, 0.5, scored[0].ContextualScore, 0.001)
	assert.NotContains(t, scored[0].Provenance, "generic_terms_penalty")
}

func TestBoilerplateQueryPenalizesAllCandidates(t *testing.T) {
	intent := &extractor.Intent{
		Query:            "O que a lei define sobre edificações?",
		QueryType:        extractor.TypeConstruction,
		SignificantTerms: []string{"define", "edificações"},
	}
	results := []retrieval.Result{
		{Text: "Disposições transitórias do parcelamento do solo.", RawScore: 0.5},
	}

	scored, _ := Score(results, intent)

	require.Len(t, scored, 1)
	// 0.5 * 0.3 generic-terms penalty.
	assert.InDelta(t, 0.15, scored[0].ContextualScore, 0.001)
	assert.Contains(t, scored[0].Provenance, "generic_terms_penalty")
}

func TestScoresAreClampedToOne(t *testing.T) {
	results := []retrieval.Result{
		{Text: "certificação sustentabilidade sustentável verde meio ambiente", RawScore: 0.9},
	}

	scored, metrics := Score(results, certIntent())

	require.Len(t, scored, 1)
	assert.Equal(t, 1.0, scored[0].ContextualScore)
	assert.Equal(t, 1.0, metrics.TopScore)
}

func TestHigherRawScoreNeverRanksLowerWithEqualBoosts(t *testing.T) {
	// Monotonicity: identical texts, different raw scores.
	results := []retrieval.Result{
		{Text: "regras de altura e coeficiente na zona", RawScore: 0.1},
		{Text: "regras de altura e coeficiente na zona", RawScore: 0.2},
	}
	intent := &extractor.Intent{
		QueryType:        extractor.TypeConstruction,
		SignificantTerms: []string{"altura", "coeficiente", "zona"},
	}

	scored, _ := Score(results, intent)

	require.Len(t, scored, 2)
	assert.Greater(t, scored[0].ContextualScore, scored[1].ContextualScore)
	assert.Equal(t, 0.2, scored[0].RawScore)
}

func TestThresholdFlagFollowsProfile(t *testing.T) {
	intent := &extractor.Intent{
		QueryType:        extractor.TypeFourthDistrict,
		SignificantTerms: []string{"quarto", "distrito", "economia"},
	}
	results := []retrieval.Result{
		{Text: "O quarto distrito recebe incentivos para economia criativa.", RawScore: 0.2},
		{Text: "Texto sem relação nenhuma.", RawScore: 0.2},
	}

	scored, metrics := Score(results, intent)

	require.Len(t, scored, 2)
	// 0.2 * (1+2.0) = 0.6, above the 0.30 threshold.
	assert.True(t, scored[0].PassesThreshold)
	assert.InDelta(t, 0.6, scored[0].ContextualScore, 0.001)
	// Unboosted 0.2 sits below 0.30.
	assert.False(t, scored[1].PassesThreshold)
	assert.Equal(t, 1, metrics.PassedThreshold)
}

func TestTooGenericQueryIsPenalized(t *testing.T) {
	vague := &extractor.Intent{
		QueryType:        extractor.TypeGeneric,
		SignificantTerms: []string{"cidade"},
	}
	results := []retrieval.Result{{Text: "A cidade se organiza em macrozonas.", RawScore: 0.5}}

	scored, _ := Score(results, vague)

	require.Len(t, scored, 1)
	assert.InDelta(t, 0.15, scored[0].ContextualScore, 0.001)
	assert.Contains(t, scored[0].Provenance, "too_generic_penalty")
}

func TestNeighborhoodProfileBoostsBairroMention(t *testing.T) {
	intent := &extractor.Intent{
		QueryType:        extractor.TypeNeighborhood,
		Bairros:          []string{"AZENHA"},
		SignificantTerms: []string{"azenha", "regime", "urbanístico"},
	}
	results := []retrieval.Result{
		{Text: "AZENHA (ZOT 08.3 - A), altura máxima 52 m", RawScore: 0.2},
		{Text: "Parâmetros gerais das macrozonas.", RawScore: 0.2},
	}

	scored, _ := Score(results, intent)

	require.Len(t, scored, 2)
	assert.Contains(t, scored[0].Text, "AZENHA")
	assert.Greater(t, scored[0].ContextualScore, scored[1].ContextualScore)
}

func TestConfigForUnknownTypeFallsBackToGeneric(t *testing.T) {
	cfg := ConfigFor(extractor.QueryType("does_not_exist"))
	assert.Equal(t, configs[extractor.TypeGeneric], cfg)
}
