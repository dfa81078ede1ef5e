package structured

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/retrieval"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// Store is the read surface the agent needs from the relational client.
type Store interface {
	GetRegimeByBairro(bairro string) ([]models.RegimeRecord, error)
	GetRegimeByZona(zona string) ([]models.RegimeRecord, error)
	GetExtremeRegime(field string, descending bool, limit int) ([]models.RegimeRecord, error)
	GetZotsByBairro(bairro string) ([]models.ZotInfo, error)
	GetRisksByBairro(bairro string) ([]models.RiskRecord, error)
	GetAllRisks() ([]models.RiskRecord, error)
}

// Agent answers from the regime, zone and risk tables. All queries go
// through allow-listed accessors; nothing here interpolates user text
// into SQL.
type Agent struct {
	store Store
}

func New(store Store) *Agent {
	return &Agent{store: store}
}

func (a *Agent) Name() string {
	return "structured"
}

func (a *Agent) Retrieve(ctx context.Context, intent *extractor.Intent) ([]retrieval.Result, error) {
	var results []retrieval.Result

	if intent.IsExtremeValue {
		rows, err := a.store.GetExtremeRegime(intent.ExtremeField, intent.ExtremeDirection == "max", 3)
		if err != nil {
			return nil, fmt.Errorf("extreme-value lookup failed: %w", err)
		}
		for i := range rows {
			results = append(results, regimeResult(&rows[i]))
		}
		logger.Debug("Structured extreme-value lookup",
			zap.String("field", intent.ExtremeField),
			zap.String("direction", intent.ExtremeDirection),
			zap.Int("rows", len(rows)),
		)
		return results, nil
	}

	if intent.IsRisk {
		risks, err := a.retrieveRisks(intent)
		if err != nil {
			return nil, err
		}
		results = append(results, risks...)
	}

	for _, bairro := range intent.Bairros {
		rows, err := a.store.GetRegimeByBairro(bairro)
		if err != nil {
			return nil, fmt.Errorf("regime lookup for bairro %s failed: %w", bairro, err)
		}
		for i := range rows {
			results = append(results, regimeResult(&rows[i]))
		}

		zots, err := a.store.GetZotsByBairro(bairro)
		if err != nil {
			return nil, fmt.Errorf("zot lookup for bairro %s failed: %w", bairro, err)
		}
		for i := range zots {
			results = append(results, zotResult(&zots[i]))
		}
	}

	for _, zona := range intent.Zonas {
		rows, err := a.store.GetRegimeByZona(zona)
		if err != nil {
			return nil, fmt.Errorf("regime lookup for zona %s failed: %w", zona, err)
		}
		for i := range rows {
			results = append(results, regimeResult(&rows[i]))
		}
	}

	logger.Debug("Structured retrieval completed",
		zap.Int("results", len(results)),
		zap.Strings("bairros", intent.Bairros),
		zap.Strings("zonas", intent.Zonas),
	)

	return results, nil
}

func (a *Agent) retrieveRisks(intent *extractor.Intent) ([]retrieval.Result, error) {
	var records []models.RiskRecord
	var err error

	if len(intent.Bairros) > 0 {
		for _, bairro := range intent.Bairros {
			var rows []models.RiskRecord
			rows, err = a.store.GetRisksByBairro(bairro)
			if err != nil {
				return nil, fmt.Errorf("risk lookup for bairro %s failed: %w", bairro, err)
			}
			records = append(records, rows...)
		}
	} else {
		records, err = a.store.GetAllRisks()
		if err != nil {
			return nil, fmt.Errorf("risk lookup failed: %w", err)
		}
	}

	var results []retrieval.Result
	for i := range records {
		r := &records[i]
		results = append(results, retrieval.Result{
			Kind:     retrieval.KindStructuredTable,
			Text:     fmt.Sprintf("%s: risco de %s (nível %s)", r.Bairro, r.TipoRisco, r.NivelRisco),
			RawScore: 1.0,
			Risk:     r,
			Bairro:   r.Bairro,
		})
	}
	return results, nil
}

func regimeResult(r *models.RegimeRecord) retrieval.Result {
	return retrieval.Result{
		Kind:     retrieval.KindStructuredTable,
		Text:     RenderRegime(r),
		RawScore: 1.0,
		Regime:   r,
		Bairro:   r.Bairro,
		Zona:     r.Zona,
	}
}

func zotResult(z *models.ZotInfo) retrieval.Result {
	text := fmt.Sprintf("%s pertence à zona %s", z.Bairro, z.Zona)
	if z.TotalZonasNoBairro > 1 {
		text += fmt.Sprintf(" (o bairro abrange %d zonas)", z.TotalZonasNoBairro)
	}
	return retrieval.Result{
		Kind:     retrieval.KindStructuredTable,
		Text:     text,
		RawScore: 1.0,
		Zot:      z,
		Bairro:   z.Bairro,
		Zona:     z.Zona,
	}
}

// RenderRegime produces the one-line textual form of a regime row. The
// numbers here are the canonical values the synthesizer must preserve.
func RenderRegime(r *models.RegimeRecord) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s (%s)", r.Bairro, r.Zona))
	if r.AlturaMaxima != nil {
		parts = append(parts, fmt.Sprintf("altura máxima %s m", FormatNumber(*r.AlturaMaxima)))
	}
	if r.CoefAproveitamentoBasico != nil {
		parts = append(parts, fmt.Sprintf("CA básico %s", FormatNumber(*r.CoefAproveitamentoBasico)))
	}
	if r.CoefAproveitamentoMaximo != nil {
		parts = append(parts, fmt.Sprintf("CA máximo %s", FormatNumber(*r.CoefAproveitamentoMaximo)))
	}
	if r.AreaMinimaLote != nil {
		parts = append(parts, fmt.Sprintf("área mínima do lote %s m²", FormatNumber(*r.AreaMinimaLote)))
	}
	return strings.Join(parts, ", ")
}

// FormatNumber renders values without a trailing ".0" so "130" stays
// "130" in responses.
func FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
