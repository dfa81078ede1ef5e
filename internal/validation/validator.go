package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/pkg/logger"
)

// AgentResponse is one independently-produced answer to reconcile.
type AgentResponse struct {
	Agent      string  `json:"agent"`
	Response   string  `json:"response"`
	Confidence float64 `json:"confidence"`
	HasData    bool    `json:"data"`
	Error      string  `json:"error,omitempty"`
}

// Contradiction flags a numeric disagreement between two agents.
type Contradiction struct {
	Type      string     `json:"type"`
	Agents    []string   `json:"agents"`
	Values    []string   `json:"values"`
	AllValues [][]string `json:"allValues,omitempty"`
	Context   string     `json:"context"`
}

type Issue struct {
	Agent  string `json:"agent"`
	Reason string `json:"reason"`
}

// Result is the reconciliation verdict over all agent responses.
type Result struct {
	Confidence       float64         `json:"confidence"`
	Status           string          `json:"status"`
	Consistency      float64         `json:"consistency"`
	Issues           []Issue         `json:"issues"`
	Contradictions   []Contradiction `json:"contradictions"`
	ShouldReturnBeta bool            `json:"shouldReturnBeta"`
}

const (
	StatusValid         = "valid"
	StatusPartial       = "partial"
	StatusContradictory = "contradictory"
)

var sharedTopicTerms = []string{"bairro", "zona", "altura", "coeficiente"}

var contradictionContexts = []string{"altura", "coeficiente"}

var numberTokenRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Validator cross-checks agent answers for validity, consistency and
// numeric contradictions.
type Validator struct {
	// ContradictionDelta is the absolute difference beyond which two
	// numbers in the same context count as a contradiction.
	ContradictionDelta float64
	// BetaThreshold is the aggregate confidence below which the canned
	// Beta response replaces the answer.
	BetaThreshold float64
}

func New(contradictionDelta, betaThreshold float64) *Validator {
	if contradictionDelta <= 0 {
		contradictionDelta = 10
	}
	if betaThreshold <= 0 {
		betaThreshold = 0.4
	}
	return &Validator{
		ContradictionDelta: contradictionDelta,
		BetaThreshold:      betaThreshold,
	}
}

func (v *Validator) Validate(responses []AgentResponse) *Result {
	result := &Result{Status: StatusValid}

	var validAgents []AgentResponse
	for _, r := range responses {
		if reason := invalidReason(r); reason != "" {
			result.Issues = append(result.Issues, Issue{Agent: r.Agent, Reason: reason})
			continue
		}
		if r.Confidence < 0.3 {
			result.Issues = append(result.Issues, Issue{Agent: r.Agent, Reason: "low_confidence"})
		}
		validAgents = append(validAgents, r)
	}

	result.Consistency = consistency(validAgents)
	result.Contradictions = v.findContradictions(validAgents)
	result.Confidence = v.aggregateConfidence(responses, validAgents, result.Contradictions)

	switch {
	case len(result.Contradictions) > 0:
		result.Status = StatusContradictory
	case len(result.Issues) > 0 && len(validAgents) < len(responses):
		result.Status = StatusPartial
	}

	result.ShouldReturnBeta = result.Confidence < v.BetaThreshold

	logger.Debug("Cross-validation completed",
		zap.String("status", result.Status),
		zap.Float64("confidence", result.Confidence),
		zap.Int("contradictions", len(result.Contradictions)),
	)

	return result
}

func invalidReason(r AgentResponse) string {
	if r.Error != "" {
		return "agent_error"
	}
	if len(strings.TrimSpace(r.Response)) < 10 {
		return "response_too_short"
	}
	return ""
}

// consistency is the fraction of shared topic terms mentioned by at
// least two agents. Zero when fewer than two agents answered.
func consistency(agents []AgentResponse) float64 {
	if len(agents) < 2 {
		return 0
	}
	matched := 0
	for _, term := range sharedTopicTerms {
		count := 0
		for _, a := range agents {
			if strings.Contains(strings.ToLower(a.Response), term) {
				count++
			}
		}
		if count >= 2 {
			matched++
		}
	}
	return float64(matched) / float64(len(sharedTopicTerms))
}

// findContradictions compares numeric tokens pairwise. Only the FIRST
// number of each response is compared — matching the historical
// behavior; all extracted numbers are attached for inspection.
func (v *Validator) findContradictions(agents []AgentResponse) []Contradiction {
	var contradictions []Contradiction

	for i := 0; i < len(agents); i++ {
		for j := i + 1; j < len(agents); j++ {
			a, b := agents[i], agents[j]
			context := sharedContext(a.Response, b.Response)
			if context == "" {
				continue
			}

			numsA := numberTokenRe.FindAllString(a.Response, -1)
			numsB := numberTokenRe.FindAllString(b.Response, -1)
			if len(numsA) == 0 || len(numsB) == 0 {
				continue
			}

			va, errA := strconv.ParseFloat(numsA[0], 64)
			vb, errB := strconv.ParseFloat(numsB[0], 64)
			if errA != nil || errB != nil {
				continue
			}

			if diff := va - vb; diff > v.ContradictionDelta || diff < -v.ContradictionDelta {
				contradictions = append(contradictions, Contradiction{
					Type:      "numerical_mismatch",
					Agents:    []string{a.Agent, b.Agent},
					Values:    []string{numsA[0], numsB[0]},
					AllValues: [][]string{numsA, numsB},
					Context:   context,
				})
			}
		}
	}

	return contradictions
}

func sharedContext(textA, textB string) string {
	lowerA := strings.ToLower(textA)
	lowerB := strings.ToLower(textB)
	for _, term := range contradictionContexts {
		if strings.Contains(lowerA, term) && strings.Contains(lowerB, term) {
			return term
		}
	}
	return ""
}

// aggregateConfidence starts from the mean of per-agent confidences and
// applies availability/agreement adjustments, then the contradiction and
// missing-data dampeners.
func (v *Validator) aggregateConfidence(all, valid []AgentResponse, contradictions []Contradiction) float64 {
	if len(all) == 0 {
		return 0
	}

	var sum float64
	for _, r := range all {
		sum += r.Confidence
	}
	confidence := sum / float64(len(all))

	anyData := false
	longResponse := false
	structuredData := false
	for _, r := range valid {
		if r.HasData {
			anyData = true
		}
		if len(r.Response) > 100 {
			longResponse = true
		}
		if r.HasData && (r.Agent == "structured" || r.Agent == "urban") {
			structuredData = true
		}
	}

	if anyData {
		confidence += 0.2
	} else {
		confidence -= 0.2
	}
	if len(valid) > 1 {
		confidence += 0.1
	}
	if longResponse {
		confidence += 0.1
	}
	if structuredData {
		confidence += 0.1
	}

	if len(contradictions) > 0 {
		confidence *= 0.7
	}
	if !anyData {
		confidence *= 0.5
	}

	return clamp01(confidence)
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

// Describe renders a contradiction for logs and gap records.
func Describe(c Contradiction) string {
	return fmt.Sprintf("%s: %s (%s=%s, %s=%s)",
		c.Type, c.Context, c.Agents[0], c.Values[0], c.Agents[1], c.Values[1])
}
