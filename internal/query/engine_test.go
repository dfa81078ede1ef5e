package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/retrieval"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/internal/synthesis"
	"github.com/chat-pd-poa/backend/internal/validation"
)

type stubAgent struct {
	name    string
	results []retrieval.Result
	err     error
	calls   int
}

func (s *stubAgent) Name() string { return s.name }

func (s *stubAgent) Retrieve(ctx context.Context, intent *extractor.Intent) ([]retrieval.Result, error) {
	s.calls++
	return s.results, s.err
}

func f64(v float64) *float64 { return &v }

func regimeRow(bairro, zona string, altura float64) retrieval.Result {
	return retrieval.Result{
		Kind:     retrieval.KindStructuredTable,
		Text:     bairro + ", altura máxima 52 m (" + zona + ")",
		RawScore: 1.0,
		Regime:   &models.RegimeRecord{Bairro: bairro, Zona: zona, AlturaMaxima: f64(altura)},
		Bairro:   bairro,
		Zona:     zona,
	}
}

func newTestEngine(structured, semantic, legal, fallback retrieval.Agent) *Engine {
	return NewEngine(
		extractor.New(),
		structured, semantic, legal, fallback,
		synthesis.New(nil),
		validation.New(10, 0.4),
		nil, // gap service
		nil, // cache
		nil, // sessions
		Options{},
	)
}

func TestProcessQueryUsesStructuredData(t *testing.T) {
	structured := &stubAgent{name: "structured", results: []retrieval.Result{regimeRow("AZENHA", "ZOT 08.3 - A", 52)}}
	semantic := &stubAgent{name: "semantic"}
	legal := &stubAgent{name: "legal"}
	fallback := &stubAgent{name: "kb"}

	e := newTestEngine(structured, semantic, legal, fallback)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{Query: "Qual o regime urbanístico do bairro Azenha?"})

	require.NoError(t, err)
	assert.Equal(t, 1, structured.calls)
	assert.Equal(t, 1, semantic.calls)
	assert.Equal(t, 1, legal.calls)
	assert.Equal(t, "regime_table", resp.Metadata.ResponseType)
	assert.Contains(t, resp.Response.Response, "ZOT 08.3 - A")
	assert.NotEmpty(t, resp.ID)
	assert.False(t, resp.Cached)
	// Structured and semantic both answered nothing conceptual, so the
	// fallback stayed idle.
	assert.Equal(t, 0, fallback.calls)
}

func TestFallbackRunsOnlyWhenPrimariesAreEmpty(t *testing.T) {
	structured := &stubAgent{name: "structured"}
	semantic := &stubAgent{name: "semantic"}
	legal := &stubAgent{name: "legal"}
	fallback := &stubAgent{name: "kb", results: []retrieval.Result{{
		Kind:     retrieval.KindQAKnowledge,
		Text:     "A outorga onerosa permite construir acima do coeficiente básico mediante contrapartida.",
		RawScore: 0.85,
	}}}

	e := newTestEngine(structured, semantic, legal, fallback)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{Query: "Como funciona a outorga onerosa?"})

	require.NoError(t, err)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, "conceptual", resp.Metadata.ResponseType)
	assert.Contains(t, resp.Response.Response, "outorga onerosa")
}

func TestClarificationSkipsRetrieval(t *testing.T) {
	structured := &stubAgent{name: "structured"}
	semantic := &stubAgent{name: "semantic"}
	legal := &stubAgent{name: "legal"}

	e := newTestEngine(structured, semantic, legal, &stubAgent{name: "kb"})

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{Query: "O que posso construir na Rua Luiz Voelcker?"})

	require.NoError(t, err)
	assert.Equal(t, 0, structured.calls)
	assert.Equal(t, 0, semantic.calls)
	assert.Equal(t, 0, legal.calls)
	assert.Equal(t, 1.0, resp.Confidence)
	assert.True(t, resp.Metadata.NeedsUserInput)
	assert.Contains(t, resp.Response.Response, "bairro")
}

func TestFailingAgentDoesNotAbortPipeline(t *testing.T) {
	structured := &stubAgent{name: "structured", results: []retrieval.Result{regimeRow("CRISTAL", "ZOT 05", 33)}}
	semantic := &stubAgent{name: "semantic", err: assertAnError}
	legal := &stubAgent{name: "legal"}

	e := newTestEngine(structured, semantic, legal, &stubAgent{name: "kb"})

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{Query: "Regime do bairro Cristal"})

	require.NoError(t, err)
	assert.Equal(t, "regime_table", resp.Metadata.ResponseType)
}

func TestValidationAttachedWhenTwoAgentsAnswer(t *testing.T) {
	structured := &stubAgent{name: "structured", results: []retrieval.Result{regimeRow("AZENHA", "ZOT 08.3 - A", 52)}}
	semantic := &stubAgent{name: "semantic", results: []retrieval.Result{{
		Kind:     retrieval.KindRegimeChunk,
		Text:     "No bairro Azenha a altura máxima das edificações é de 52 metros na zona principal.",
		RawScore: 0.8,
	}}}
	legal := &stubAgent{name: "legal"}

	e := newTestEngine(structured, semantic, legal, &stubAgent{name: "kb"})

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{Query: "Qual a altura máxima do bairro Azenha?"})

	require.NoError(t, err)
	require.NotNil(t, resp.Validation)
	assert.Empty(t, resp.Validation.Contradictions)
	assert.False(t, resp.Validation.ShouldReturnBeta)
}

func TestNothingFoundReturnsLowConfidence(t *testing.T) {
	e := newTestEngine(
		&stubAgent{name: "structured"},
		&stubAgent{name: "semantic"},
		&stubAgent{name: "legal"},
		&stubAgent{name: "kb"},
	)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{Query: "Qual a altura máxima do Bairro Inexistente123?"})

	require.NoError(t, err)
	assert.LessOrEqual(t, resp.Confidence, 0.3)
	assert.Equal(t, "not_found", resp.Metadata.ResponseType)
	assert.Nil(t, resp.Validation)
}

var assertAnError = errAgent("vector store offline")

type errAgent string

func (e errAgent) Error() string { return string(e) }
