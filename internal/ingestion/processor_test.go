package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLaw = `TÍTULO I
DAS DISPOSIÇÕES GERAIS
Art. 1º Esta Lei institui o regime de uso e ocupação do solo.
Parágrafo único. Aplicam-se as definições do Plano Diretor.
CAPÍTULO II
DO REGIME VOLUMÉTRICO
Art. 81 - A certificação em sustentabilidade ambiental concede acréscimos de altura.
§ 1º O acréscimo depende de análise do órgão competente.
Art. 82. A altura máxima observa os limites da zona.`

func TestParseArticlesSplitsOnHeaders(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil)

	articles := p.parseArticles(sampleLaw, "LUOS")

	// Two hierarchy headers plus three articles.
	require.Len(t, articles, 5)

	assert.Equal(t, "title", articles[0].HierarchyLevel)
	assert.Equal(t, "TÍTULO I", articles[0].Title)

	art1 := articles[1]
	assert.Equal(t, "article", art1.HierarchyLevel)
	assert.Equal(t, 1, art1.ArticleNumber)
	assert.Equal(t, "luos-art-1", art1.ID)
	assert.Contains(t, art1.Content, "institui o regime")
	assert.Contains(t, art1.Content, "Parágrafo único")

	assert.Equal(t, "chapter", articles[2].HierarchyLevel)

	art81 := articles[3]
	assert.Equal(t, 81, art81.ArticleNumber)
	assert.Equal(t, "luos-art-81", art81.ID)
	assert.Contains(t, art81.Content, "certificação em sustentabilidade")
	assert.Contains(t, art81.Content, "§ 1º")

	assert.Equal(t, 82, articles[4].ArticleNumber)
	assert.NotEmpty(t, articles[4].Keywords)
}

func TestParseArticlesHandlesHeaderPunctuationVariants(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil)

	for _, header := range []string{
		"Art. 10. Texto do artigo.",
		"Art 10 - Texto do artigo.",
		"Art. 10º Texto do artigo.",
	} {
		articles := p.parseArticles(header, "PDUS")
		require.Len(t, articles, 1, "header: %s", header)
		assert.Equal(t, 10, articles[0].ArticleNumber)
		assert.Equal(t, "Texto do artigo.", articles[0].Content)
	}
}

func TestParseArticlesIgnoresPreambleText(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil)

	articles := p.parseArticles("O PREFEITO DE PORTO ALEGRE\nfaz saber que a Câmara decretou.", "LUOS")

	assert.Empty(t, articles)
}

func TestChunkContentKeepsShortArticlesWhole(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil)

	chunks := p.chunkContent("A altura máxima é de 52 metros.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "A altura máxima é de 52 metros.", chunks[0])
}

func TestChunkContentSplitsLongArticles(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil)

	sentence := "O regime urbanístico define os limites de altura e aproveitamento para cada zona da cidade. "
	long := strings.Repeat(sentence, 40)

	chunks := p.chunkContent(long)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), p.chunkSize+len(sentence))
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestChunkByLengthNeverExceedsBudgetByMuch(t *testing.T) {
	chunks := chunkByLength(strings.Repeat("palavra ", 500), 100)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 110)
	}
}

func TestCleanHTMLDropsChromeAndKeepsParagraphs(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil)

	html := `<html><head><style>p{}</style></head><body>
		<nav>menu</nav>
		<p>Art. 1º Esta Lei institui o regime.</p>
		<p>Art. 2º Aplicam-se as definições.</p>
		<script>alert(1)</script>
		<footer>rodapé</footer>
	</body></html>`

	text := p.cleanHTML(html)

	assert.NotContains(t, text, "menu")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "rodapé")
	// Each paragraph on its own line so article headers split correctly.
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Art. 1º Esta Lei institui o regime.", lines[0])
}

func TestFallbackKeywordsSkipsShortWords(t *testing.T) {
	kw := fallbackKeywords("A altura máxima da zona é de 52 metros, conforme regime.", 5)

	assert.Contains(t, kw, "altura")
	assert.Contains(t, kw, "máxima")
	assert.NotContains(t, kw, ",zona,")
}

func TestContainsAnyIsCaseInsensitive(t *testing.T) {
	assert.True(t, containsAny("Certificação em Sustentabilidade", "certificação"))
	assert.True(t, containsAny("área do 4º Distrito", "4º distrito"))
	assert.False(t, containsAny("regime volumétrico", "certificação"))
}
