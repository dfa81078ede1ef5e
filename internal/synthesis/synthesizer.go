package synthesis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/retrieval/structured"
	"github.com/chat-pd-poa/backend/internal/scoring"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// Merger is the optional LLM used to weave prose around tabular data.
type Merger interface {
	MergeTabularSemantic(ctx context.Context, query, tabularContext, semanticContext string) (string, error)
}

// Sources counts how many facts of each class fed a response.
type Sources struct {
	Tabular    int `json:"tabular"`
	Conceptual int `json:"conceptual"`
}

// Metadata describes which code path produced the response.
type Metadata struct {
	ResponseType    string   `json:"responseType"`
	DataPoints      int      `json:"dataPoints"`
	QueryType       string   `json:"queryType"`
	Pipeline        string   `json:"pipeline"`
	RequestedFields []string `json:"requestedFields,omitempty"`
	AntiFabrication bool     `json:"antiFabrication"`
	NeedsUserInput  bool     `json:"needsUserInput,omitempty"`
}

// Response is the user-facing result of one pipeline run.
type Response struct {
	Response   string   `json:"response"`
	Confidence float64  `json:"confidence"`
	Sources    Sources  `json:"sources"`
	Metadata   Metadata `json:"metadata"`
}

const pipelineName = "agentic-rag-hybrid"

var numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// Synthesizer merges scored tabular and conceptual results into one
// answer. Numbers in the output always come verbatim from retrieved
// structured rows; the LLM only ever adds prose around them.
type Synthesizer struct {
	merger Merger
}

func New(merger Merger) *Synthesizer {
	return &Synthesizer{merger: merger}
}

func (s *Synthesizer) Synthesize(ctx context.Context, intent *extractor.Intent, tabular, semantic []scoring.ScoredResult) *Response {
	if intent.NeedsClarification {
		return s.clarification(intent)
	}

	passedTabular := passing(tabular)
	passedSemantic := passing(semantic)

	if intent.IsExtremeValue {
		if resp := s.extremeValue(intent, passedTabular); resp != nil {
			return resp
		}
	}

	regimeRows, riskRows, zotRows := splitStructured(passedTabular)

	if intent.IsRisk && len(riskRows) > 0 && len(regimeRows) == 0 {
		return s.riskSummary(intent, riskRows)
	}

	if len(regimeRows) > 0 || len(zotRows) > 0 {
		resp := s.regimeAnswer(intent, regimeRows, zotRows, len(passedSemantic))
		if s.merger != nil && intent.IsSemantic && len(passedSemantic) > 0 {
			s.tryMerge(ctx, intent, resp, passedSemantic)
		}
		return resp
	}

	if len(passedSemantic) > 0 {
		return s.conceptualAnswer(intent, passedSemantic)
	}

	return s.notFound(intent)
}

func (s *Synthesizer) clarification(intent *extractor.Intent) *Response {
	return &Response{
		Response:   intent.ClarificationMessage + Footer,
		Confidence: 1.0,
		Metadata: Metadata{
			ResponseType:    "clarification",
			QueryType:       string(intent.QueryType),
			Pipeline:        pipelineName,
			AntiFabrication: true,
			NeedsUserInput:  true,
		},
	}
}

// extremeValue renders the top rows ordered by the target field. Returns
// nil when no structured data arrived, so the caller falls through.
func (s *Synthesizer) extremeValue(intent *extractor.Intent, tabular []scoring.ScoredResult) *Response {
	rows := regimeRecords(tabular)
	if len(rows) == 0 {
		return nil
	}

	field := intent.ExtremeField
	sort.SliceStable(rows, func(i, j int) bool {
		vi, oki := fieldValue(rows[i], field)
		vj, okj := fieldValue(rows[j], field)
		if !oki {
			return false
		}
		if !okj {
			return true
		}
		if intent.ExtremeDirection == "min" {
			return vi < vj
		}
		return vi > vj
	})

	top := rows[0]
	value, ok := fieldValue(top, field)
	if !ok {
		return nil
	}

	direction := "maior"
	if intent.ExtremeDirection == "min" {
		direction = "menor"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A %s %s de Porto Alegre é **%s** — bairro %s, zona %s.\n\n",
		direction, fieldLabel(field), formatFieldValue(field, value), top.Bairro, top.Zona)

	b.WriteString("| Bairro | Zona | " + fieldHeader(field) + " |\n|---|---|---|\n")
	limit := len(rows)
	if limit > 3 {
		limit = 3
	}
	for _, r := range rows[:limit] {
		v, ok := fieldValue(r, field)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", r.Bairro, r.Zona, formatFieldValue(field, v))
	}

	return &Response{
		Response:   b.String() + Footer,
		Confidence: 0.95,
		Sources:    Sources{Tabular: len(rows)},
		Metadata: Metadata{
			ResponseType:    "extreme_value",
			DataPoints:      len(rows),
			QueryType:       string(intent.QueryType),
			Pipeline:        pipelineName,
			AntiFabrication: true,
		},
	}
}

func (s *Synthesizer) riskSummary(intent *extractor.Intent, risks []*models.RiskRecord) *Response {
	byType := make(map[string][]string)
	var order []string
	for _, r := range risks {
		if _, ok := byType[r.TipoRisco]; !ok {
			order = append(order, r.TipoRisco)
		}
		byType[r.TipoRisco] = append(byType[r.TipoRisco], r.Bairro)
	}

	var b strings.Builder
	b.WriteString("**Áreas de risco identificadas:**\n\n")
	for _, tipo := range order {
		bairros := dedupe(byType[tipo])
		fmt.Fprintf(&b, "- **%s** (%d bairros): %s\n", tipo, len(bairros), strings.Join(bairros, ", "))
	}

	return &Response{
		Response:   b.String() + Footer,
		Confidence: 0.9,
		Sources:    Sources{Tabular: len(risks)},
		Metadata: Metadata{
			ResponseType:    "risk_summary",
			DataPoints:      len(risks),
			QueryType:       string(intent.QueryType),
			Pipeline:        pipelineName,
			AntiFabrication: true,
		},
	}
}

func (s *Synthesizer) regimeAnswer(intent *extractor.Intent, regimes []*models.RegimeRecord, zots []*models.ZotInfo, conceptualCount int) *Response {
	var b strings.Builder
	confidence := 0.99
	responseType := "regime_table"

	if len(intent.RequestedFields) > 0 && len(regimes) > 0 {
		confidence = 0.95
		responseType = "specific_fields"
		for _, r := range regimes {
			fmt.Fprintf(&b, "**%s — %s:**\n", r.Bairro, r.Zona)
			for _, field := range intent.RequestedFields {
				b.WriteString("- " + renderField(r, field) + "\n")
			}
			b.WriteString("\n")
		}
	} else if len(regimes) > 0 {
		b.WriteString("| Zona | Altura Máx | CA Básico | CA Máximo | Área Mín. Lote | Testada Mín. |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, r := range regimes {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				r.Zona,
				numOrDash(r.AlturaMaxima, " m"),
				numOrDash(r.CoefAproveitamentoBasico, ""),
				numOrDash(r.CoefAproveitamentoMaximo, ""),
				numOrDash(r.AreaMinimaLote, " m²"),
				numOrDash(r.TestadaMinimaLote, " m"),
			)
		}
		b.WriteString(siglasGlossary + "\n")
	}

	if len(zots) > 0 && len(regimes) == 0 {
		responseType = "zone_list"
		confidence = 0.95
		fmt.Fprintf(&b, "**Zonas do bairro %s:**\n", zots[0].Bairro)
		for _, z := range zots {
			fmt.Fprintf(&b, "- %s\n", z.Zona)
		}
	}

	return &Response{
		Response:   b.String() + Footer,
		Confidence: confidence,
		Sources:    Sources{Tabular: len(regimes) + len(zots), Conceptual: conceptualCount},
		Metadata: Metadata{
			ResponseType:    responseType,
			DataPoints:      len(regimes) + len(zots),
			QueryType:       string(intent.QueryType),
			Pipeline:        pipelineName,
			RequestedFields: intent.RequestedFields,
			AntiFabrication: true,
		},
	}
}

// tryMerge asks the LLM to blend conceptual context into the tabular
// answer. The merge is discarded unless every numeric token of the
// tabular rendering survives verbatim.
func (s *Synthesizer) tryMerge(ctx context.Context, intent *extractor.Intent, resp *Response, semantic []scoring.ScoredResult) {
	tabularBlock := strings.TrimSuffix(resp.Response, Footer)

	var conceptual []string
	limit := len(semantic)
	if limit > 3 {
		limit = 3
	}
	for _, sr := range semantic[:limit] {
		conceptual = append(conceptual, sr.Text)
	}

	merged, err := s.merger.MergeTabularSemantic(ctx, intent.Query, tabularBlock, strings.Join(conceptual, "\n---\n"))
	if err != nil {
		logger.Warn("Tabular-semantic merge failed, keeping tabular rendering", zap.Error(err))
		return
	}

	if !NumbersPreserved(tabularBlock, merged) {
		logger.Warn("Merge altered tabular numbers, discarding",
			zap.String("query", intent.Query),
		)
		return
	}

	resp.Response = merged + Footer
	resp.Metadata.ResponseType = "hybrid"
	resp.Sources.Conceptual = limit
}

func (s *Synthesizer) conceptualAnswer(intent *extractor.Intent, semantic []scoring.ScoredResult) *Response {
	top := semantic[0]
	confidence := top.ContextualScore
	if confidence > 0.8 {
		confidence = 0.8
	}

	var b strings.Builder
	b.WriteString(top.Text)
	if top.ArticleNumber > 0 && top.DocumentType != "" {
		fmt.Fprintf(&b, "\n\n_Fonte: Art. %d, %s._", top.ArticleNumber, top.DocumentType)
	}

	return &Response{
		Response:   b.String() + Footer,
		Confidence: confidence,
		Sources:    Sources{Conceptual: len(semantic)},
		Metadata: Metadata{
			ResponseType:    "conceptual",
			DataPoints:      len(semantic),
			QueryType:       string(intent.QueryType),
			Pipeline:        pipelineName,
			AntiFabrication: true,
		},
	}
}

func (s *Synthesizer) notFound(intent *extractor.Intent) *Response {
	return &Response{
		Response:   NotFoundResponse + Footer,
		Confidence: 0.1,
		Metadata: Metadata{
			ResponseType:    "not_found",
			QueryType:       string(intent.QueryType),
			Pipeline:        pipelineName,
			AntiFabrication: true,
		},
	}
}

// NumbersPreserved checks that every numeric token of the source block
// appears verbatim in the candidate text.
func NumbersPreserved(source, candidate string) bool {
	for _, number := range numberRe.FindAllString(source, -1) {
		if !strings.Contains(candidate, number) {
			return false
		}
	}
	return true
}

func passing(results []scoring.ScoredResult) []scoring.ScoredResult {
	var out []scoring.ScoredResult
	for _, r := range results {
		if r.PassesThreshold {
			out = append(out, r)
		}
	}
	return out
}

func splitStructured(results []scoring.ScoredResult) ([]*models.RegimeRecord, []*models.RiskRecord, []*models.ZotInfo) {
	var regimes []*models.RegimeRecord
	var risks []*models.RiskRecord
	var zots []*models.ZotInfo
	for _, r := range results {
		switch {
		case r.Regime != nil:
			regimes = append(regimes, r.Regime)
		case r.Risk != nil:
			risks = append(risks, r.Risk)
		case r.Zot != nil:
			zots = append(zots, r.Zot)
		}
	}
	return regimes, risks, zots
}

func regimeRecords(results []scoring.ScoredResult) []*models.RegimeRecord {
	var rows []*models.RegimeRecord
	for _, r := range results {
		if r.Regime != nil {
			rows = append(rows, r.Regime)
		}
	}
	return rows
}

func fieldValue(r *models.RegimeRecord, field string) (float64, bool) {
	var p *float64
	switch field {
	case "altura_maxima":
		p = r.AlturaMaxima
	case "coef_aproveitamento_basico":
		p = r.CoefAproveitamentoBasico
	case "coef_aproveitamento_maximo":
		p = r.CoefAproveitamentoMaximo
	case "area_minima_lote":
		p = r.AreaMinimaLote
	case "testada_minima_lote":
		p = r.TestadaMinimaLote
	case "recuo_jardim":
		p = r.RecuoJardim
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

func fieldLabel(field string) string {
	switch field {
	case "altura_maxima":
		return "altura máxima"
	case "coef_aproveitamento_basico":
		return "coeficiente de aproveitamento básico"
	case "coef_aproveitamento_maximo":
		return "coeficiente de aproveitamento máximo"
	case "area_minima_lote":
		return "área mínima de lote"
	case "testada_minima_lote":
		return "testada mínima de lote"
	case "recuo_jardim":
		return "recuo de jardim"
	default:
		return strings.ReplaceAll(field, "_", " ")
	}
}

func fieldHeader(field string) string {
	switch field {
	case "altura_maxima":
		return "Altura Máx"
	case "coef_aproveitamento_basico":
		return "CA Básico"
	case "coef_aproveitamento_maximo":
		return "CA Máximo"
	case "area_minima_lote":
		return "Área Mín. Lote"
	case "testada_minima_lote":
		return "Testada Mín."
	default:
		return fieldLabel(field)
	}
}

func formatFieldValue(field string, v float64) string {
	unit := ""
	switch field {
	case "altura_maxima", "testada_minima_lote", "recuo_jardim":
		unit = " m"
	case "area_minima_lote":
		unit = " m²"
	}
	return structured.FormatNumber(v) + unit
}

func renderField(r *models.RegimeRecord, field string) string {
	switch field {
	case "afastamento_frente":
		return "Afastamento de frente: " + orDash(r.AfastamentoFrente)
	case "afastamento_lateral":
		return "Afastamento lateral: " + orDash(r.AfastamentoLateral)
	case "afastamento_fundos":
		return "Afastamento de fundos: " + orDash(r.AfastamentoFundos)
	case "comercio_varejista_inocuo":
		return "Comércio varejista inócuo: " + orDash(r.ComercioVarejistaInocuo)
	case "comercio_atacadista_ia1":
		return "Comércio atacadista IA-1: " + orDash(r.ComercioAtacadistaIA1)
	case "servico_inocuo":
		return "Serviço inócuo: " + orDash(r.ServicoInocuo)
	case "industria_inocua":
		return "Indústria inócua: " + orDash(r.IndustriaInocua)
	case "taxa_permeabilidade_acima_1500":
		return "Taxa de permeabilidade (acima de 1.500 m²): " + numOrDash(r.TaxaPermeabilidadeAcima1500, "%")
	default:
		if v, ok := fieldValue(r, field); ok {
			return capitalize(fieldLabel(field)) + ": " + formatFieldValue(field, v)
		}
		return capitalize(fieldLabel(field)) + ": não disponível"
	}
}

func numOrDash(p *float64, unit string) string {
	if p == nil {
		return "—"
	}
	return structured.FormatNumber(*p) + unit
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

func dedupe(items []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
