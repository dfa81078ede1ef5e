package structured

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
	regimesByBairro map[string][]models.RegimeRecord
	regimesByZona   map[string][]models.RegimeRecord
	extreme         []models.RegimeRecord
	extremeField    string
	zots            map[string][]models.ZotInfo
	risksByBairro   map[string][]models.RiskRecord
	allRisks        []models.RiskRecord
	err             error
}

func (s *stubStore) GetRegimeByBairro(bairro string) ([]models.RegimeRecord, error) {
	return s.regimesByBairro[bairro], s.err
}

func (s *stubStore) GetRegimeByZona(zona string) ([]models.RegimeRecord, error) {
	return s.regimesByZona[zona], s.err
}

func (s *stubStore) GetExtremeRegime(field string, descending bool, limit int) ([]models.RegimeRecord, error) {
	s.extremeField = field
	return s.extreme, s.err
}

func (s *stubStore) GetZotsByBairro(bairro string) ([]models.ZotInfo, error) {
	return s.zots[bairro], s.err
}

func (s *stubStore) GetRisksByBairro(bairro string) ([]models.RiskRecord, error) {
	return s.risksByBairro[bairro], s.err
}

func (s *stubStore) GetAllRisks() ([]models.RiskRecord, error) {
	return s.allRisks, s.err
}

func f64(v float64) *float64 { return &v }

func TestRetrieveByBairroReturnsRegimeAndZones(t *testing.T) {
	store := &stubStore{
		regimesByBairro: map[string][]models.RegimeRecord{
			"AZENHA": {
				{Bairro: "AZENHA", Zona: "ZOT 08.3 - A", AlturaMaxima: f64(52), CoefAproveitamentoBasico: f64(3.6)},
			},
		},
		zots: map[string][]models.ZotInfo{
			"AZENHA": {{Bairro: "AZENHA", Zona: "ZOT 08.3 - A", TotalZonasNoBairro: 2}},
		},
	}
	a := New(store)

	results, err := a.Retrieve(context.Background(), &extractor.Intent{Bairros: []string{"AZENHA"}})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, retrieval.KindStructuredTable, results[0].Kind)
	assert.Contains(t, results[0].Text, "altura máxima 52 m")
	assert.Contains(t, results[0].Text, "CA básico 3.6")
	assert.NotNil(t, results[0].Regime)
	assert.Contains(t, results[1].Text, "abrange 2 zonas")
	assert.NotNil(t, results[1].Zot)
}

func TestRetrieveExtremeValueUsesRequestedField(t *testing.T) {
	store := &stubStore{
		extreme: []models.RegimeRecord{
			{Bairro: "AZENHA", Zona: "ZOT 08.3 - A", AlturaMaxima: f64(130)},
			{Bairro: "CENTRO HISTÓRICO", Zona: "ZOT 08.1", AlturaMaxima: f64(100)},
		},
	}
	a := New(store)

	results, err := a.Retrieve(context.Background(), &extractor.Intent{
		IsExtremeValue:   true,
		ExtremeDirection: "max",
		ExtremeField:     "altura_maxima",
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "altura_maxima", store.extremeField)
	assert.Contains(t, results[0].Text, "130 m")
}

func TestRetrieveRisksForBairro(t *testing.T) {
	store := &stubStore{
		risksByBairro: map[string][]models.RiskRecord{
			"SARANDI": {{Bairro: "SARANDI", TipoRisco: "inundação", NivelRisco: "alto"}},
		},
	}
	a := New(store)

	results, err := a.Retrieve(context.Background(), &extractor.Intent{
		IsRisk:  true,
		Bairros: []string{"SARANDI"},
	})

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Text, "risco de inundação")
	assert.NotNil(t, results[0].Risk)
}

func TestRetrieveAllRisksWithoutBairro(t *testing.T) {
	store := &stubStore{
		allRisks: []models.RiskRecord{
			{Bairro: "SARANDI", TipoRisco: "inundação", NivelRisco: "alto"},
			{Bairro: "ARQUIPÉLAGO", TipoRisco: "inundação", NivelRisco: "muito alto"},
		},
	}
	a := New(store)

	results, err := a.Retrieve(context.Background(), &extractor.Intent{IsRisk: true})

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestStoreErrorPropagates(t *testing.T) {
	a := New(&stubStore{err: errors.New("db closed")})

	_, err := a.Retrieve(context.Background(), &extractor.Intent{Bairros: []string{"AZENHA"}})

	assert.Error(t, err)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "130", FormatNumber(130))
	assert.Equal(t, "52", FormatNumber(52.0))
	assert.Equal(t, "3.6", FormatNumber(3.6))
	assert.Equal(t, "1.25", FormatNumber(1.25))
	assert.Equal(t, "0", FormatNumber(0))
}
