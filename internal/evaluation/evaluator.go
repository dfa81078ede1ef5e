package evaluation

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/pkg/logger"
)

// Breakdown is a weighted quality assessment of one response:
// relevance and completeness weigh 0.3 each, accuracy and clarity 0.2.
type Breakdown struct {
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Clarity      float64 `json:"clarity"`
	Overall      float64 `json:"overall"`
}

// Input is everything the scorer needs about a pipeline run.
type Input struct {
	Query          string
	Response       string
	Confidence     float64
	TabularSources int
	// NumbersIntact is the anti-fabrication verdict from synthesis.
	NumbersIntact bool
}

var numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// Scorer grades responses deterministically, without an LLM judge, so
// sweep runs can afford to grade every neighborhood.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

func (s *Scorer) Score(in Input) Breakdown {
	b := Breakdown{
		Relevance:    relevance(in.Query, in.Response),
		Completeness: completeness(in.Response, in.TabularSources),
		Accuracy:     accuracy(in),
		Clarity:      clarity(in.Response),
	}
	b.Overall = b.Relevance*0.3 + b.Completeness*0.3 + b.Accuracy*0.2 + b.Clarity*0.2

	logger.Debug("Response quality scored",
		zap.Float64("overall", b.Overall),
		zap.Float64("relevance", b.Relevance),
	)

	return b
}

// relevance: fraction of the query's content words echoed in the
// response.
func relevance(query, response string) float64 {
	lowerResponse := strings.ToLower(response)
	words := strings.Fields(strings.ToLower(query))

	total, matched := 0, 0
	for _, w := range words {
		if len([]rune(w)) <= 3 {
			continue
		}
		total++
		if strings.Contains(lowerResponse, w) {
			matched++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(matched) / float64(total)
}

// completeness rewards substance: length, concrete numbers, structured
// sources behind the answer.
func completeness(response string, tabularSources int) float64 {
	score := 0.0
	if len(response) > 100 {
		score += 0.4
	} else if len(response) > 30 {
		score += 0.2
	}
	if len(numberRe.FindAllString(response, -1)) > 0 {
		score += 0.3
	}
	if tabularSources > 0 {
		score += 0.3
	}
	return clamp01(score)
}

// accuracy leans on the pipeline's own signals: confidence and the
// number-preservation check.
func accuracy(in Input) float64 {
	score := in.Confidence
	if !in.NumbersIntact {
		score *= 0.3
	}
	return clamp01(score)
}

// clarity rewards structure (tables, lists) and penalizes walls of text.
func clarity(response string) float64 {
	score := 0.5
	if strings.Contains(response, "|") || strings.Contains(response, "- ") {
		score += 0.3
	}
	if strings.Contains(response, "\n") {
		score += 0.2
	}
	if len(response) > 4000 {
		score -= 0.3
	}
	return clamp01(score)
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
