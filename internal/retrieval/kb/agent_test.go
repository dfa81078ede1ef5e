package kb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/retrieval"
	"github.com/chat-pd-poa/backend/internal/storage/models"
)

type stubStore struct {
	byTermCount map[int][]models.KBArticle
	calls       [][]string
	err         error
}

func (s *stubStore) SearchKBArticles(terms []string, limit int) ([]models.KBArticle, error) {
	s.calls = append(s.calls, terms)
	if s.err != nil {
		return nil, s.err
	}
	return s.byTermCount[len(terms)], nil
}

func TestRetrieveMapsArticlesToResults(t *testing.T) {
	store := &stubStore{byTermCount: map[int][]models.KBArticle{
		2: {{
			ID: "luos-art-81", DocumentType: "LUOS", ArticleNumber: 81,
			Content:        "A certificação em sustentabilidade ambiental concede acréscimos de altura.",
			HierarchyLevel: "article",
		}},
	}}
	a := New(store, 5)

	results, err := a.Retrieve(context.Background(), &extractor.Intent{
		SignificantTerms: []string{"certificação", "altura"},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, retrieval.KindQAKnowledge, results[0].Kind)
	assert.Equal(t, 81, results[0].ArticleNumber)
	assert.Equal(t, "LUOS", results[0].DocumentType)
	assert.InDelta(t, 0.85, results[0].RawScore, 0.001)
}

func TestRetrieveRetriesWithFewerTerms(t *testing.T) {
	store := &stubStore{byTermCount: map[int][]models.KBArticle{
		2: {{ID: "pdus-art-9", DocumentType: "PDUS", Content: "Conteúdo."}},
	}}
	a := New(store, 5)

	results, err := a.Retrieve(context.Background(), &extractor.Intent{
		SignificantTerms: []string{"outorga", "onerosa", "contrapartida", "cálculo"},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, store.calls, 2)
	assert.Equal(t, []string{"outorga", "onerosa", "contrapartida", "cálculo"}, store.calls[0])
	assert.Equal(t, []string{"outorga", "onerosa"}, store.calls[1])
}

func TestRetrieveWithoutTermsSkipsSearch(t *testing.T) {
	store := &stubStore{}
	a := New(store, 5)

	results, err := a.Retrieve(context.Background(), &extractor.Intent{})

	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Empty(t, store.calls)
}

func TestRetrievePropagatesStoreError(t *testing.T) {
	a := New(&stubStore{err: errors.New("db closed")}, 5)

	_, err := a.Retrieve(context.Background(), &extractor.Intent{
		SignificantTerms: []string{"altura"},
	})

	assert.Error(t, err)
}
