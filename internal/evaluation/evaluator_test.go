package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreWeightsSumCorrectly(t *testing.T) {
	s := NewScorer()

	b := s.Score(Input{
		Query:          "Qual a altura máxima do bairro Azenha?",
		Response:       "No bairro Azenha, zona ZOT 08.3 - A, a altura máxima permitida é de 52 metros.\n- Fonte: regime urbanístico.",
		Confidence:     0.9,
		TabularSources: 2,
		NumbersIntact:  true,
	})

	expected := b.Relevance*0.3 + b.Completeness*0.3 + b.Accuracy*0.2 + b.Clarity*0.2
	assert.InDelta(t, expected, b.Overall, 1e-9)
	assert.Greater(t, b.Overall, 0.7)
}

func TestRelevanceMatchesQueryTerms(t *testing.T) {
	full := relevance("altura máxima bairro Azenha", "A altura máxima no bairro Azenha é 52 m.")
	none := relevance("altura máxima bairro Azenha", "Conteúdo sem relação.")

	assert.Equal(t, 1.0, full)
	assert.Equal(t, 0.0, none)
}

func TestBrokenNumbersCollapseAccuracy(t *testing.T) {
	s := NewScorer()

	intact := s.Score(Input{Query: "q", Response: "altura 52 m", Confidence: 0.9, NumbersIntact: true})
	broken := s.Score(Input{Query: "q", Response: "altura 52 m", Confidence: 0.9, NumbersIntact: false})

	assert.Greater(t, intact.Accuracy, broken.Accuracy)
	assert.InDelta(t, 0.27, broken.Accuracy, 0.001)
}

func TestCompletenessRewardsSubstance(t *testing.T) {
	rich := completeness("Uma resposta longa com dados concretos: a altura máxima é de 52 metros e o coeficiente básico é 3,6 para a zona indicada.", 2)
	thin := completeness("Sim.", 0)

	assert.Equal(t, 1.0, rich)
	assert.Equal(t, 0.0, thin)
}
