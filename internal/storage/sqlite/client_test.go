package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chat-pd-poa/backend/internal/storage/models"
)

func f64(v float64) *float64 { return &v }

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func seedRegimes(t *testing.T, c *Client) {
	t.Helper()
	rows := []models.RegimeRecord{
		{Bairro: "AZENHA", Zona: "ZOT 08.3 - A", AlturaMaxima: f64(52), CoefAproveitamentoBasico: f64(3.6)},
		{Bairro: "AZENHA", Zona: "ZOT 07", AlturaMaxima: f64(42), CoefAproveitamentoBasico: f64(2.4)},
		{Bairro: "CENTRO HISTÓRICO", Zona: "ZOT 08.1", AlturaMaxima: f64(130), CoefAproveitamentoBasico: f64(5)},
		{Bairro: "BELÉM NOVO", Zona: "ZOT 01", AlturaMaxima: f64(9), CoefAproveitamentoBasico: f64(1)},
	}
	for i := range rows {
		require.NoError(t, c.InsertRegimeRecord(&rows[i]))
	}
}

func TestGetRegimeByBairroReturnsOneRowPerZone(t *testing.T) {
	c := newTestClient(t)
	seedRegimes(t, c)

	records, err := c.GetRegimeByBairro("azenha")

	require.NoError(t, err)
	require.Len(t, records, 2)
	// Ordered by zone code.
	assert.Equal(t, "ZOT 07", records[0].Zona)
	assert.Equal(t, "ZOT 08.3 - A", records[1].Zona)
	require.NotNil(t, records[1].AlturaMaxima)
	assert.Equal(t, 52.0, *records[1].AlturaMaxima)
}

func TestGetRegimeByZonaMatchesExactCode(t *testing.T) {
	c := newTestClient(t)
	seedRegimes(t, c)

	records, err := c.GetRegimeByZona("zot 08.1")

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CENTRO HISTÓRICO", records[0].Bairro)
}

func TestGetExtremeRegimeOrdersByField(t *testing.T) {
	c := newTestClient(t)
	seedRegimes(t, c)

	highest, err := c.GetExtremeRegime("altura_maxima", true, 2)
	require.NoError(t, err)
	require.Len(t, highest, 2)
	assert.Equal(t, "CENTRO HISTÓRICO", highest[0].Bairro)
	assert.Equal(t, 130.0, *highest[0].AlturaMaxima)

	lowest, err := c.GetExtremeRegime("altura_maxima", false, 1)
	require.NoError(t, err)
	require.Len(t, lowest, 1)
	assert.Equal(t, "BELÉM NOVO", lowest[0].Bairro)
}

func TestGetExtremeRegimeRejectsUnknownField(t *testing.T) {
	c := newTestClient(t)

	_, err := c.GetExtremeRegime("bairro; DROP TABLE regime_urbanistico", true, 1)

	assert.Error(t, err)
}

func TestListBairrosIsDistinctAndSorted(t *testing.T) {
	c := newTestClient(t)
	seedRegimes(t, c)

	bairros, err := c.ListBairros()

	require.NoError(t, err)
	assert.Equal(t, []string{"AZENHA", "BELÉM NOVO", "CENTRO HISTÓRICO"}, bairros)
}

func TestInsertRegimeUpsertsOnBairroZona(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.InsertRegimeRecord(&models.RegimeRecord{Bairro: "CRISTAL", Zona: "ZOT 05", AlturaMaxima: f64(33)}))
	require.NoError(t, c.InsertRegimeRecord(&models.RegimeRecord{Bairro: "CRISTAL", Zona: "ZOT 05", AlturaMaxima: f64(42)}))

	records, err := c.GetRegimeByBairro("CRISTAL")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 42.0, *records[0].AlturaMaxima)
}

func TestGapRoundTripWithRepeat(t *testing.T) {
	c := newTestClient(t)

	gap := &models.KnowledgeGap{
		ID:                   "gap-1",
		Category:             "zoneamento",
		Topic:                "zonas_uso_solo",
		Severity:             "high",
		FailedQuery:          "Qual a ZOT do bairro X?",
		ConfidenceAtFailure:  0.2,
		SuggestedAction:      "Revisar cobertura de zoneamento",
		Priority:             8,
		Status:               "detected",
		SimilarFailuresCount: 1,
	}
	require.NoError(t, c.InsertGap(gap))

	found, err := c.FindOpenGap("zoneamento", "zonas_uso_solo")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "gap-1", found.ID)
	assert.Equal(t, 1, found.SimilarFailuresCount)

	require.NoError(t, c.UpdateGapOnRepeat("gap-1", 9, "Nova ação", "resposta fraca", 0.15))

	found, err = c.FindOpenGap("zoneamento", "zonas_uso_solo")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2, found.SimilarFailuresCount)
	assert.Equal(t, 9, found.Priority)
	assert.Equal(t, "Nova ação", found.SuggestedAction)
	assert.Equal(t, 0.15, found.ConfidenceAtFailure)
}

func TestResolvedGapsAreInvisibleToFindOpenGap(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.InsertGap(&models.KnowledgeGap{
		ID: "gap-2", Category: "alturas", Topic: "limites_altura",
		Severity: "medium", FailedQuery: "q", ConfidenceAtFailure: 0.5,
		Priority: 6, Status: "detected", SimilarFailuresCount: 1,
	}))
	require.NoError(t, c.ResolveGap("gap-2"))

	found, err := c.FindOpenGap("alturas", "limites_altura")
	require.NoError(t, err)
	assert.Nil(t, found)

	resolved, err := c.ListGaps("resolved", 10)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "gap-2", resolved[0].ID)
}

func TestResolveUnknownGapFails(t *testing.T) {
	c := newTestClient(t)

	assert.Error(t, c.ResolveGap("missing"))
}

func TestListGapsOrdersByPriority(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.InsertGap(&models.KnowledgeGap{
		ID: "low", Category: "geral", Topic: "a", Severity: "low",
		FailedQuery: "q", ConfidenceAtFailure: 0.6, Priority: 3,
		Status: "detected", SimilarFailuresCount: 1,
	}))
	require.NoError(t, c.InsertGap(&models.KnowledgeGap{
		ID: "urgent", Category: "alturas", Topic: "b", Severity: "critical",
		FailedQuery: "q", ConfidenceAtFailure: 0.1, Priority: 10,
		Status: "analyzing", SimilarFailuresCount: 3,
	}))

	gaps, err := c.ListGaps("", 10)
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Equal(t, "urgent", gaps[0].ID)
}

func TestSessionTurnsComeBackOldestFirst(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.AppendSessionTurn("s1", "primeira pergunta", "r1", 0.9))
	require.NoError(t, c.AppendSessionTurn("s1", "segunda pergunta", "r2", 0.8))
	require.NoError(t, c.AppendSessionTurn("s1", "terceira pergunta", "r3", 0.7))
	require.NoError(t, c.AppendSessionTurn("outra", "não deve aparecer", "r", 0.5))

	turns, err := c.GetSessionTurns("s1", 2)

	require.NoError(t, err)
	require.Len(t, turns, 2)
	// Limit keeps the most recent turns but returns them oldest first.
	assert.Equal(t, "segunda pergunta", turns[0].Query)
	assert.Equal(t, "terceira pergunta", turns[1].Query)
	assert.Equal(t, 2, turns[0].TurnNumber)
	assert.Equal(t, 3, turns[1].TurnNumber)
}

func TestKBArticleSearchRequiresAllTerms(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.InsertKBArticle(&models.KBArticle{
		ID: "luos-art-81", DocumentType: "LUOS", ArticleNumber: 81,
		Title:   "Da Certificação em Sustentabilidade Ambiental",
		Content: "A certificação em sustentabilidade ambiental concede acréscimos de altura.",
		HierarchyLevel: "article", Keywords: "certificação,sustentabilidade,altura",
	}))

	hits, err := c.SearchKBArticles([]string{"certificação", "altura"}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 81, hits[0].ArticleNumber)

	miss, err := c.SearchKBArticles([]string{"certificação", "inexistente"}, 5)
	require.NoError(t, err)
	assert.Empty(t, miss)
}
