package gaps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chat-pd-poa/backend/internal/storage/models"
)

type memoryStore struct {
	gaps map[string]*models.KnowledgeGap
}

func newMemoryStore() *memoryStore {
	return &memoryStore{gaps: make(map[string]*models.KnowledgeGap)}
}

func (m *memoryStore) FindOpenGap(category, topic string) (*models.KnowledgeGap, error) {
	for _, g := range m.gaps {
		if g.Category == category && g.Topic == topic && g.Status != "resolved" {
			copied := *g
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) InsertGap(g *models.KnowledgeGap) error {
	copied := *g
	m.gaps[g.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateGapOnRepeat(id string, priority int, suggestedAction, lastResponse string, confidence float64) error {
	g, ok := m.gaps[id]
	if !ok {
		return errors.New("gap not found")
	}
	g.SimilarFailuresCount++
	g.Priority = priority
	g.SuggestedAction = suggestedAction
	g.LastResponse = lastResponse
	g.ConfidenceAtFailure = confidence
	return nil
}

type fixedDrafter struct {
	draft string
	err   error
}

func (f *fixedDrafter) DraftRemediation(ctx context.Context, category, topic, failedQuery string) (string, error) {
	return f.draft, f.err
}

func TestHighConfidenceSkipsDetection(t *testing.T) {
	svc := NewService(newMemoryStore(), nil, 0.60)

	gap, recorded, err := svc.Detect(context.Background(), Failure{
		Query:      "Qual a altura máxima do Centro?",
		Response:   "A altura máxima é de 52 metros.",
		Confidence: 0.85,
	})

	require.NoError(t, err)
	assert.False(t, recorded)
	assert.Nil(t, gap)
}

func TestLowConfidenceCreatesGap(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, 0.60)

	gap, recorded, err := svc.Detect(context.Background(), Failure{
		Query:      "Qual o coeficiente da Vila Esperança?",
		Response:   "resposta incompleta sobre o tema",
		Confidence: 0.45,
	})

	require.NoError(t, err)
	require.True(t, recorded)
	require.NotNil(t, gap)
	assert.Equal(t, "coeficientes", gap.Category)
	assert.Equal(t, 1, gap.SimilarFailuresCount)
	assert.Equal(t, "detected", gap.Status)
	assert.Len(t, store.gaps, 1)
}

func TestRepeatedFailureIncrementsCounterInsteadOfDuplicating(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, 0.60)

	failure := Failure{
		Query:      "Qual o coeficiente da Vila Esperança?",
		Response:   "resposta incompleta sobre o tema",
		Confidence: 0.45,
	}

	first, recorded, err := svc.Detect(context.Background(), failure)
	require.NoError(t, err)
	require.True(t, recorded)

	second, recorded, err := svc.Detect(context.Background(), failure)
	require.NoError(t, err)
	require.True(t, recorded)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.SimilarFailuresCount)
	assert.Len(t, store.gaps, 1)
}

func TestRepeatKeepsHighestPriority(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, 0.60)

	// First failure is severe.
	first, _, err := svc.Detect(context.Background(), Failure{
		Query:      "Qual o coeficiente do terreno?",
		Response:   "resposta incompleta sobre o tema",
		Confidence: 0.25,
	})
	require.NoError(t, err)

	// A milder repeat must not lower the priority.
	second, _, err := svc.Detect(context.Background(), Failure{
		Query:      "Qual o coeficiente do lote vizinho?",
		Response:   "resposta incompleta sobre o tema",
		Confidence: 0.55,
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, second.Priority, first.Priority)
}

func TestEscalatedGapStartsAnalyzing(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, 0.60)

	gap, recorded, err := svc.Detect(context.Background(), Failure{
		Query:      "Qual a altura do prédio permitida?",
		Response:   "não sei responder",
		Confidence: 0.10,
	})

	require.NoError(t, err)
	require.True(t, recorded)
	assert.Equal(t, "analyzing", gap.Status)
	assert.True(t, gap.Escalated)
	assert.Equal(t, 10, gap.Priority)
}

func TestDrafterSuppliesSuggestedAction(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, &fixedDrafter{draft: "Cadastrar os coeficientes da região leste"}, 0.60)

	gap, _, err := svc.Detect(context.Background(), Failure{
		Query:      "Qual o coeficiente da região leste?",
		Response:   "resposta incompleta sobre o tema",
		Confidence: 0.45,
	})

	require.NoError(t, err)
	assert.Equal(t, "Cadastrar os coeficientes da região leste", gap.SuggestedAction)
}

func TestDrafterFailureFallsBackToCannedSuggestion(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, &fixedDrafter{err: errors.New("llm down")}, 0.60)

	gap, _, err := svc.Detect(context.Background(), Failure{
		Query:      "Qual o coeficiente da região leste?",
		Response:   "resposta incompleta sobre o tema",
		Confidence: 0.45,
	})

	require.NoError(t, err)
	assert.Equal(t, suggestionsByCategory["coeficientes"], gap.SuggestedAction)
}
