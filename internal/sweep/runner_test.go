package sweep

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chat-pd-poa/backend/internal/evaluation"
)

type fixedLister struct {
	bairros []string
	err     error
}

func (f *fixedLister) ListBairros() ([]string, error) {
	return f.bairros, f.err
}

type fakeAnswerer struct {
	mu         sync.Mutex
	inFlight   int32
	maxInFlight int32
	failFor    map[string]bool
	queries    []string
}

func (f *fakeAnswerer) AnswerForSweep(ctx context.Context, query string) (string, float64, int, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if current <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, current) {
			break
		}
	}

	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	for bairro := range f.failFor {
		if strings.Contains(query, bairro) {
			return "", 0, 0, errors.New("pipeline unavailable")
		}
	}
	return "No bairro consultado a altura máxima é de 42 metros.", 0.8, 1, nil
}

func TestSweepAggregatesReport(t *testing.T) {
	lister := &fixedLister{bairros: []string{"AZENHA", "CRISTAL", "PETRÓPOLIS", "MOINHOS DE VENTO"}}
	answerer := &fakeAnswerer{failFor: map[string]bool{"CRISTAL": true}}

	r := NewRunner(lister, answerer, evaluation.NewScorer(), 4)
	report, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.InDelta(t, 0.8, report.AvgConfidence, 0.001)
	require.Len(t, report.Items, 4)

	// Items stay in neighborhood order regardless of worker scheduling.
	assert.Equal(t, "AZENHA", report.Items[0].Bairro)
	assert.Equal(t, "CRISTAL", report.Items[1].Bairro)
	assert.NotEmpty(t, report.Items[1].Error)
	assert.Zero(t, report.Items[1].Confidence)
	assert.Greater(t, report.Items[0].Quality, 0.0)
}

func TestSweepRunsAllNeighborhoods(t *testing.T) {
	bairros := make([]string, 20)
	for i := range bairros {
		bairros[i] = "BAIRRO " + string(rune('A'+i))
	}
	answerer := &fakeAnswerer{}

	r := NewRunner(&fixedLister{bairros: bairros}, answerer, nil, 4)
	report, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 20, report.Succeeded)
	assert.Len(t, answerer.queries, 20)
	// The pool never exceeds its configured width.
	assert.LessOrEqual(t, answerer.maxInFlight, int32(4))
}

func TestSweepListerFailure(t *testing.T) {
	r := NewRunner(&fixedLister{err: errors.New("db closed")}, &fakeAnswerer{}, nil, 4)

	report, err := r.Run(context.Background())

	assert.Error(t, err)
	assert.Nil(t, report)
}

func TestSweepDefaultsConcurrency(t *testing.T) {
	r := NewRunner(&fixedLister{}, &fakeAnswerer{}, nil, 0)
	assert.Equal(t, 4, r.concurrency)
}
