package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/cache/redis"
	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/gaps"
	"github.com/chat-pd-poa/backend/internal/retrieval"
	"github.com/chat-pd-poa/backend/internal/scoring"
	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/internal/synthesis"
	"github.com/chat-pd-poa/backend/internal/validation"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

// SessionStore persists conversation turns for follow-up context.
type SessionStore interface {
	AppendSessionTurn(sessionID, query, response string, confidence float64) error
	GetSessionTurns(sessionID string, limit int) ([]models.SessionTurn, error)
}

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	SubQueryTimeout time.Duration
	MemoryTurns     int
}

// Engine orchestrates the full pipeline: extract, fan out to the
// retrieval agents, score, synthesize, cross-validate, record gaps.
type Engine struct {
	extractor   *extractor.Extractor
	structured  retrieval.Agent
	semantic    retrieval.Agent
	legal       retrieval.Agent
	fallback    retrieval.Agent
	synthesizer *synthesis.Synthesizer
	validator   *validation.Validator
	gapService  *gaps.Service
	cache       *redis.Client
	sessions    SessionStore
	timeout     time.Duration
	memoryTurns int
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
}

// QueryResponse wraps the synthesized answer with pipeline bookkeeping.
type QueryResponse struct {
	ID string `json:"id"`
	synthesis.Response
	Validation *validation.Result `json:"validation,omitempty"`
	Cached     bool               `json:"cached"`
	LatencyMS  int64              `json:"latencyMs"`
}

func NewEngine(
	ext *extractor.Extractor,
	structured, semantic, legal, fallback retrieval.Agent,
	synthesizer *synthesis.Synthesizer,
	validator *validation.Validator,
	gapService *gaps.Service,
	cache *redis.Client,
	sessions SessionStore,
	opts Options,
) *Engine {
	timeout := opts.SubQueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	memoryTurns := opts.MemoryTurns
	if memoryTurns <= 0 {
		memoryTurns = 5
	}
	return &Engine{
		extractor:   ext,
		structured:  structured,
		semantic:    semantic,
		legal:       legal,
		fallback:    fallback,
		synthesizer: synthesizer,
		validator:   validator,
		gapService:  gapService,
		cache:       cache,
		sessions:    sessions,
		timeout:     timeout,
		memoryTurns: memoryTurns,
	}
}

type agentOutcome struct {
	name    string
	results []retrieval.Result
	err     error
}

func (e *Engine) ProcessQuery(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	startTime := time.Now()
	queryID := uuid.New().String()

	logger.Info("Processing query",
		zap.String("query_id", queryID),
		zap.String("query", req.Query),
		zap.String("session_id", req.SessionID),
	)

	contextStr := e.sessionContext(req.SessionID)

	if cached := e.lookupCache(ctx, req.Query, contextStr); cached != nil {
		cached.ID = queryID
		cached.Cached = true
		cached.LatencyMS = time.Since(startTime).Milliseconds()
		logger.Info("Cache hit",
			zap.String("query_id", queryID),
			zap.Float64("confidence", cached.Confidence),
		)
		return cached, nil
	}

	intent := e.extractor.Extract(req.Query)

	// A street without a neighborhood or zone cannot be resolved against
	// the regime table; ask instead of guessing.
	if intent.NeedsClarification {
		resp := e.synthesizer.Synthesize(ctx, intent, nil, nil)
		return e.finish(ctx, queryID, req, resp, nil, startTime), nil
	}

	outcomes := e.fanOut(ctx, intent)

	tabular, conceptual := e.scoreOutcomes(outcomes, intent)
	resp := e.synthesizer.Synthesize(ctx, intent, tabular, conceptual)

	validationResult := e.crossValidate(outcomes, tabular, conceptual)
	if validationResult != nil && validationResult.ShouldReturnBeta {
		logger.Warn("Validation gated the response",
			zap.String("query_id", queryID),
			zap.String("status", validationResult.Status),
			zap.Float64("confidence", validationResult.Confidence),
		)
		resp = &synthesis.Response{
			Response:   synthesis.BetaResponse,
			Confidence: validationResult.Confidence,
			Metadata: synthesis.Metadata{
				ResponseType:    "beta_fallback",
				QueryType:       string(intent.QueryType),
				Pipeline:        resp.Metadata.Pipeline,
				AntiFabrication: true,
			},
		}
	}

	return e.finish(ctx, queryID, req, resp, validationResult, startTime), nil
}

// AnswerForSweep runs a query with no session or cache involvement and
// returns the fields the sweep's quality scorer needs.
func (e *Engine) AnswerForSweep(ctx context.Context, query string) (string, float64, int, error) {
	intent := e.extractor.Extract(query)
	outcomes := e.fanOut(ctx, intent)
	tabular, conceptual := e.scoreOutcomes(outcomes, intent)
	resp := e.synthesizer.Synthesize(ctx, intent, tabular, conceptual)
	return resp.Response, resp.Confidence, resp.Sources.Tabular, nil
}

// fanOut runs the three primary agents in parallel. A failing agent is
// logged and contributes nothing; the KB fallback runs only when both
// the structured and semantic paths came back empty.
func (e *Engine) fanOut(ctx context.Context, intent *extractor.Intent) map[string]agentOutcome {
	subCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	agents := []retrieval.Agent{e.structured, e.semantic, e.legal}

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make(map[string]agentOutcome, len(agents)+1)

	for _, agent := range agents {
		if agent == nil {
			continue
		}
		wg.Add(1)
		go func(a retrieval.Agent) {
			defer wg.Done()
			results, err := a.Retrieve(subCtx, intent)
			if err != nil {
				logger.Warn("Retrieval agent failed",
					zap.String("agent", a.Name()),
					zap.Error(err),
				)
			}
			mu.Lock()
			outcomes[a.Name()] = agentOutcome{name: a.Name(), results: results, err: err}
			mu.Unlock()
		}(agent)
	}
	wg.Wait()

	if e.fallback != nil &&
		len(outcomes[e.structured.Name()].results) == 0 &&
		len(outcomes[e.semantic.Name()].results) == 0 {
		results, err := e.fallback.Retrieve(subCtx, intent)
		if err != nil {
			logger.Warn("Fallback retrieval failed", zap.Error(err))
		}
		outcomes[e.fallback.Name()] = agentOutcome{name: e.fallback.Name(), results: results, err: err}
	}

	return outcomes
}

// scoreOutcomes reranks the structured results as the tabular class and
// everything else as the conceptual class.
func (e *Engine) scoreOutcomes(outcomes map[string]agentOutcome, intent *extractor.Intent) ([]scoring.ScoredResult, []scoring.ScoredResult) {
	var tabularRaw, conceptualRaw []retrieval.Result
	for name, o := range outcomes {
		if name == e.structured.Name() {
			tabularRaw = append(tabularRaw, o.results...)
		} else {
			conceptualRaw = append(conceptualRaw, o.results...)
		}
	}

	tabular, _ := scoring.Score(tabularRaw, intent)
	conceptual, _ := scoring.Score(conceptualRaw, intent)
	return tabular, conceptual
}

// crossValidate reconciles per-agent answers. Needs at least two agents
// with data to be meaningful.
func (e *Engine) crossValidate(outcomes map[string]agentOutcome, tabular, conceptual []scoring.ScoredResult) *validation.Result {
	var responses []validation.AgentResponse
	for _, o := range outcomes {
		resp := validation.AgentResponse{Agent: o.name}
		if o.err != nil {
			resp.Error = o.err.Error()
		}
		if len(o.results) > 0 {
			resp.HasData = true
			resp.Response = renderOutcome(o.results)
			resp.Confidence = topConfidence(o.name, tabular, conceptual)
		}
		responses = append(responses, resp)
	}

	withData := 0
	for _, r := range responses {
		if r.HasData {
			withData++
		}
	}
	if withData < 2 {
		return nil
	}

	return e.validator.Validate(responses)
}

func renderOutcome(results []retrieval.Result) string {
	var parts []string
	limit := len(results)
	if limit > 3 {
		limit = 3
	}
	for _, r := range results[:limit] {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n")
}

func topConfidence(agentName string, tabular, conceptual []scoring.ScoredResult) float64 {
	pool := conceptual
	if agentName == "structured" {
		pool = tabular
	}
	if len(pool) == 0 {
		return 0
	}
	return pool[0].ContextualScore
}

// finish handles the response-side bookkeeping: gap detection, caching
// and session memory. All of it is best-effort.
func (e *Engine) finish(ctx context.Context, queryID string, req QueryRequest, resp *synthesis.Response, validationResult *validation.Result, startTime time.Time) *QueryResponse {
	contextStr := e.sessionContext(req.SessionID)

	if e.gapService != nil && !resp.Metadata.NeedsUserInput {
		go e.detectGap(req.Query, resp)
	}

	if e.cache != nil {
		err := e.cache.SetResponse(ctx, req.Query, contextStr, resp, resp.Response, resp.Confidence, cacheCategory(resp.Metadata.QueryType))
		if err != nil {
			logger.Warn("Cache write failed", zap.Error(err))
		}
	}

	if e.sessions != nil && req.SessionID != "" {
		if err := e.sessions.AppendSessionTurn(req.SessionID, req.Query, resp.Response, resp.Confidence); err != nil {
			logger.Warn("Session persistence failed", zap.Error(err))
		}
	}

	latency := time.Since(startTime).Milliseconds()
	logger.Info("Query processed",
		zap.String("query_id", queryID),
		zap.String("response_type", resp.Metadata.ResponseType),
		zap.Float64("confidence", resp.Confidence),
		zap.Int64("latency_ms", latency),
	)

	return &QueryResponse{
		ID:         queryID,
		Response:   *resp,
		Validation: validationResult,
		LatencyMS:  latency,
	}
}

func (e *Engine) detectGap(query string, resp *synthesis.Response) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, recorded, err := e.gapService.Detect(ctx, gaps.Failure{
		Query:      query,
		Response:   resp.Response,
		Confidence: resp.Confidence,
	})
	if err != nil {
		logger.Warn("Gap detection failed", zap.Error(err))
		return
	}
	if recorded {
		logger.Info("Knowledge gap recorded", zap.String("query", query))
	}
}

func (e *Engine) lookupCache(ctx context.Context, query, contextStr string) *QueryResponse {
	if e.cache == nil {
		return nil
	}
	var resp synthesis.Response
	hit, err := e.cache.GetResponse(ctx, query, contextStr, &resp)
	if err != nil {
		logger.Warn("Cache lookup failed", zap.Error(err))
		return nil
	}
	if !hit {
		return nil
	}
	return &QueryResponse{Response: resp}
}

// sessionContext folds the session's recent queries into the cache key,
// so follow-ups with pronouns do not collide across conversations.
func (e *Engine) sessionContext(sessionID string) string {
	if e.sessions == nil || sessionID == "" {
		return ""
	}
	turns, err := e.sessions.GetSessionTurns(sessionID, e.memoryTurns)
	if err != nil {
		logger.Warn("Session lookup failed", zap.Error(err))
		return ""
	}
	var queries []string
	for _, t := range turns {
		queries = append(queries, t.Query)
	}
	return strings.Join(queries, "|")
}

func cacheCategory(queryType string) string {
	switch extractor.QueryType(queryType) {
	case extractor.TypeArticle:
		return "legal"
	case extractor.TypeConstruction, extractor.TypeCertification:
		return "construction"
	case extractor.TypeNeighborhood, extractor.TypeFourthDistrict:
		return "zoning"
	default:
		return "general"
	}
}
