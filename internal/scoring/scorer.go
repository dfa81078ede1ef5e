package scoring

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/retrieval"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// ScoredResult carries a candidate through the boost/penalty pass.
// Provenance lists which rules fired, for debugging ranking surprises.
type ScoredResult struct {
	retrieval.Result
	ContextualScore float64
	Threshold       float64
	PassesThreshold bool
	Provenance      []string
}

// QualityMetrics summarizes one scoring pass.
type QualityMetrics struct {
	AverageScore    float64
	TopScore        float64
	PassedThreshold int
}

var constructionMatchTerms = []string{
	"altura", "gabarito", "coeficiente", "aproveitamento", "zona", "zot",
	"construção", "edificação", "recuo", "afastamento",
}

var boilerplateQueryTerms = []string{"plano", "diretor", "porto", "alegre", "lei"}

var specificQueryRe = regexp.MustCompile(`\b(altura|coeficiente|zona|bairro|art\.|artigo)\b`)

// queryIsBoilerplate reports whether the query only name-drops the plan
// itself (plano, diretor, lei...) without asking about anything
// concrete. The generic-terms penalty fires on every candidate of such
// a query.
func queryIsBoilerplate(query string) bool {
	q := strings.ToLower(query)
	mentioned := false
	for _, term := range boilerplateQueryTerms {
		if strings.Contains(q, term) {
			mentioned = true
			break
		}
	}
	return mentioned && !specificQueryRe.MatchString(q)
}

// Score reranks candidates with the query type's profile. Boosts stack
// multiplicatively as score *= (1+boost); penalties multiply down; the
// final score is clamped to [0,1]. All entries are returned sorted by
// final score (stable), flagged with whether they pass the threshold —
// dropping failures is the synthesizer's call, not the scorer's.
func Score(results []retrieval.Result, intent *extractor.Intent) ([]ScoredResult, QualityMetrics) {
	cfg := ConfigFor(intent.QueryType)
	boilerplate := queryIsBoilerplate(intent.Query)

	scored := make([]ScoredResult, 0, len(results))
	for _, r := range results {
		s := scoreOne(r, intent, cfg, boilerplate)
		scored = append(scored, s)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].ContextualScore > scored[j].ContextualScore
	})

	metrics := computeMetrics(scored)

	logger.Debug("Contextual scoring completed",
		zap.String("query_type", string(intent.QueryType)),
		zap.Int("candidates", len(scored)),
		zap.Float64("top_score", metrics.TopScore),
		zap.Int("passed", metrics.PassedThreshold),
	)

	return scored, metrics
}

func scoreOne(r retrieval.Result, intent *extractor.Intent, cfg Config, boilerplate bool) ScoredResult {
	text := strings.ToLower(r.Text)
	score := r.RawScore
	var provenance []string

	for _, tb := range cfg.Boosts {
		phrase := strings.ReplaceAll(tb.Term, "_", " ")
		if strings.Contains(text, phrase) {
			score *= 1 + tb.Boost
			provenance = append(provenance, "term_boost:"+tb.Term)
		}
	}

	if cfg.BairroBoost > 0 {
		matches := 0
		for _, bairro := range intent.Bairros {
			if strings.Contains(text, strings.ToLower(bairro)) {
				matches++
			}
		}
		if matches > 0 {
			score *= 1 + cfg.BairroBoost
			provenance = append(provenance, fmt.Sprintf("bairro_match:%d", matches))
		}
	}

	if cfg.ConstructionBoost > 0 {
		for _, term := range constructionMatchTerms {
			if strings.Contains(text, term) {
				score *= 1 + cfg.ConstructionBoost
				provenance = append(provenance, "construction:"+term)
			}
		}
	}

	if cfg.ExactArticleBoost > 0 && intent.ArticleNumber > 0 {
		number := fmt.Sprintf("%d", intent.ArticleNumber)
		switch {
		case strings.Contains(text, "art. "+number) || strings.Contains(text, "artigo "+number):
			score *= 1 + cfg.ExactArticleBoost
			provenance = append(provenance, "exact_article_match")
		case strings.Contains(text, number):
			score *= 1 + cfg.ArticleNumberBoost
			provenance = append(provenance, "article_number_match")
		}
		if strings.Contains(text, "inciso") {
			score *= 1 + cfg.IncisoBoost
			provenance = append(provenance, "inciso_match")
		}
		if strings.Contains(text, "parágrafo") || strings.Contains(text, "§") {
			score *= 1 + cfg.ParagraphBoost
			provenance = append(provenance, "paragraph_match")
		}
	}

	if cfg.GenericPenalty > 0 && boilerplate {
		score *= cfg.GenericPenalty
		provenance = append(provenance, "generic_terms_penalty")
	}

	if cfg.TooGenericPenalty > 0 && len(intent.SignificantTerms) <= 2 {
		score *= cfg.TooGenericPenalty
		provenance = append(provenance, "too_generic_penalty")
	}

	score = clamp01(score)

	return ScoredResult{
		Result:          r,
		ContextualScore: score,
		Threshold:       cfg.Threshold,
		PassesThreshold: score >= cfg.Threshold,
		Provenance:      provenance,
	}
}

func computeMetrics(scored []ScoredResult) QualityMetrics {
	var m QualityMetrics
	if len(scored) == 0 {
		return m
	}
	var sum float64
	for _, s := range scored {
		sum += s.ContextualScore
		if s.ContextualScore > m.TopScore {
			m.TopScore = s.ContextualScore
		}
		if s.PassesThreshold {
			m.PassedThreshold++
		}
	}
	m.AverageScore = sum / float64(len(scored))
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
